package broker

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
)

// Handler upgrades HTTP requests to websocket connections served by the broker.
type Handler struct {
	broker   *Broker
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler for the broker.
func NewHandler(broker *Broker, log *zap.Logger) *Handler {
	return &Handler{
		broker: broker,
		log:    log.Named("broker.websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ServeHTTP blocks until the connection is closed.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed.", zap.String("remoteAddr", r.RemoteAddr), zap.Error(err))
		return
	}

	conn := bus.NewWebsocketConn(ws)
	ws.SetReadDeadline(time.Now().Add(bus.PongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(bus.PongWait))
		return nil
	})
	h.log.Debug("Client connected.", zap.String("remoteAddr", conn.RemoteAddr()))

	done := make(chan struct{})
	go h.keepAlive(conn, done)

	h.broker.Serve(conn)
	close(done)
}

func (h *Handler) keepAlive(conn *bus.WebsocketConn, done <-chan struct{}) {
	ticker := time.NewTicker(bus.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				conn.Close()
				return
			}
		}
	}
}
