package router

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/function"
	"github.com/serverless/function-gateway/internal/httpapi"
)

// Status is returned by the admin status endpoint.
type Status struct {
	Version      string `json:"version"`
	Draining     bool   `json:"draining"`
	Applications int    `json:"applications"`
	Functions    int    `json:"functions"`
}

func (router *Router) newAdmin() http.Handler {
	admin := httprouter.New()
	admin.GET("/admin/status", router.adminStatus)
	admin.GET("/admin/applications", router.adminApplications)
	admin.GET("/admin/applications/:userId/:functionName", router.adminFunction)
	admin.GET("/admin/session", router.adminSession)
	admin.Handler(http.MethodGet, "/admin/metrics", promhttp.Handler())
	return admin
}

func (router *Router) adminStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, &Status{
		Version:      router.version,
		Draining:     router.IsDraining(),
		Applications: len(router.registry.Applications()),
		Functions:    len(router.registry.Definitions()),
	})
}

func (router *Router) adminApplications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, router.registry.Applications())
}

func (router *Router) adminFunction(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	userID := params.ByName("userId")
	functionName := params.ByName("functionName")

	defs := router.registry.Lookup(userID, functionName)
	if len(defs) == 0 {
		httpapi.WriteError(w, http.StatusNotFound, &function.ErrFunctionNotFound{UserID: userID, FunctionName: functionName})
		return
	}
	writeJSON(w, defs)
}

func (router *Router) adminSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if router.session == nil {
		writeJSON(w, &bus.Status{State: bus.Disconnected.String()})
		return
	}
	writeJSON(w, router.session.Status())
}

func writeJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}
