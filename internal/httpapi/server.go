package httpapi

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server is a context-aware http server.
type Server struct {
	Config
	HTTPHandler *http.Server
}

// Start creates a server for the handler and runs it in the background. The server is
// registered with the shutdown guard and onShutdown, if not nil, runs after it stopped.
func Start(config Config, name string, handler http.Handler, onShutdown func()) Server {
	server := Server{
		Config: config,
		HTTPHandler: &http.Server{
			Addr:              config.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	config.ShutdownGuard.Add(1)
	go func() {
		defer config.ShutdownGuard.Done()
		config.Log.Info(name+" server started.", zap.String("addr", config.Addr()), zap.Bool("tls", config.TLS()))
		server.Listen()
		if onShutdown != nil {
			onShutdown()
		}
	}()

	return server
}

// Listen sets up a graceful shutdown mechanism and runs the http.Server.
func (s Server) Listen() {
	go func() {
		<-s.Config.ShutdownGuard.ShuttingDown
		s.HTTPHandler.Shutdown(context.Background())
	}()

	var err error

	if s.Config.TLS() {
		s.HTTPHandler.TLSConfig = tlsConf
		s.HTTPHandler.TLSNextProto = map[string]func(*http.Server, *tls.Conn, http.Handler){}

		err = s.HTTPHandler.ListenAndServeTLS(s.Config.TLSCrt, s.Config.TLSKey)
	} else {
		err = s.HTTPHandler.ListenAndServe()
	}
	if err != http.ErrServerClosed {
		s.Config.Log.Error("HTTP server failed.", zap.Error(err))
	}

	s.Config.ShutdownGuard.InitiateShutdown()
}
