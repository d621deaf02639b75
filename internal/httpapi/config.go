package httpapi

import (
	"crypto/tls"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/serverless/function-gateway/internal/sync"
)

// Config contains information for an http listener to interact with its environment.
type Config struct {
	Log *zap.Logger
	// Hostname to bind to. Empty or "*" binds to all interfaces.
	Hostname      string
	Port          uint
	TLSCrt        string
	TLSKey        string
	ShutdownGuard *sync.ShutdownGuard
}

// Addr returns the address the listener binds to.
func (c Config) Addr() string {
	host := c.Hostname
	if host == "*" {
		host = ""
	}
	return net.JoinHostPort(host, strconv.Itoa(int(c.Port)))
}

// TLS returns true when both certificate and key are configured.
func (c Config) TLS() bool {
	return c.TLSCrt != "" && c.TLSKey != ""
}

var tlsConf = &tls.Config{
	MinVersion:               tls.VersionTLS12,
	CurvePreferences:         []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256},
	PreferServerCipherSuites: true,
	CipherSuites: []uint16{
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_256_CBC_SHA,
		tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_RSA_WITH_AES_256_CBC_SHA,
	},
}
