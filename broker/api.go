package broker

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serverless/function-gateway/internal/httpapi"
)

// Status is returned by the status endpoint.
type Status struct {
	Clients  []ClientInfo  `json:"clients"`
	Channels []ChannelInfo `json:"channels"`
}

// NewAPI returns the broker HTTP surface: websocket endpoint at "/", status, channel management and metrics.
func NewAPI(broker *Broker, websocket http.Handler) http.Handler {
	router := httprouter.New()
	router.Handler(http.MethodGet, "/", websocket)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/status", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&Status{Clients: broker.Clients(), Channels: broker.Channels()})
	})
	router.GET("/channels/:name", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		name := params.ByName("name")
		members, err := broker.Members(name)
		if err != nil {
			httpapi.WriteError(w, http.StatusNotFound, err)
			return
		}
		subscribers, _ := broker.Subscribers(name)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"members": members, "subscribers": subscribers})
	})
	router.PUT("/channels/:name", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		err := broker.AddChannel(params.ByName("name"), r.URL.Query().Get("kind"))
		switch err.(type) {
		case nil:
			w.WriteHeader(http.StatusCreated)
		case *ErrChannelExists:
			httpapi.WriteError(w, http.StatusConflict, err)
		default:
			httpapi.WriteError(w, http.StatusBadRequest, err)
		}
	})
	router.DELETE("/channels/:name", func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		if err := broker.DestroyChannel(params.ByName("name")); err != nil {
			httpapi.WriteError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return router
}
