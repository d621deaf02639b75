package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/serverless/function-gateway/bus"
	"github.com/serverless/function-gateway/function"
	ihttp "github.com/serverless/function-gateway/internal/http"
	istrings "github.com/serverless/function-gateway/internal/strings"
	"github.com/serverless/function-gateway/registry"
)

const (
	// DirectoryToken is the path segment serving the registry listing.
	DirectoryToken = "_directory"
	// AdminToken is the first path segment of the admin surface.
	AdminToken = "admin"
	// DefaultChannel is the channel requests are dispatched on.
	DefaultChannel = "invocation"
	// DefaultMaxBodySize bounds request bodies so that the invocation request, with its body
	// base64 encoded twice on the way to the worker, fits in a bus message.
	DefaultMaxBodySize = bus.MaxMessageSize / 2
)

const (
	msgFunctionNotFound    = "Function not found"
	msgInternalServerError = "Internal server error"
	msgBodyTooLarge        = "Request body too large"
)

// Dispatcher sends a request to a worker and waits for its reply.
type Dispatcher interface {
	SendSync(ctx context.Context, channel string, payload []byte) ([]byte, error)
}

// SessionStatus reports the state of the gateway's message bus session.
type SessionStatus interface {
	Status() bus.Status
}

// Config of a Router.
type Config struct {
	Registry   *registry.Registry
	Dispatcher Dispatcher
	// Session, if set, is reported by the admin surface.
	Session SessionStatus
	// Channel requests are dispatched on. Defaults to DefaultChannel.
	Channel string
	Version string
	// MaxBodySize of requests dispatched to functions. Defaults to DefaultMaxBodySize.
	MaxBodySize int64
	// Debug logs every inbound request.
	Debug bool
	Log   *zap.Logger
}

// Router matches inbound requests against function triggers and dispatches them to workers.
type Router struct {
	sync.Mutex
	registry   *registry.Registry
	matcher    *Matcher
	dispatcher Dispatcher
	session    SessionStatus
	channel    string
	version    string
	maxBody    int64
	debug      bool
	admin      http.Handler
	log        *zap.Logger
	drain      chan struct{}
}

// New instantiates a new Router
func New(config Config) *Router {
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Log == nil {
		config.Log = zap.NewNop()
	}

	router := &Router{
		registry:   config.Registry,
		matcher:    NewMatcher(config.Registry.Definitions()),
		dispatcher: config.Dispatcher,
		session:    config.Session,
		channel:    config.Channel,
		version:    config.Version,
		maxBody:    config.MaxBodySize,
		debug:      config.Debug,
		log:        config.Log.Named("router"),
		drain:      make(chan struct{}),
	}
	router.admin = router.newAdmin()
	return router
}

// Handler returns the router wrapped with CORS support and request metrics.
func (router *Router) Handler() http.Handler {
	return cors.Default().Handler(metricsReporter{Handler: router})
}

func (router *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// if we're draining requests, spit back a 503
	if router.IsDraining() {
		writePlain(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			router.log.Error("Handling request panicked.", zap.String("path", r.URL.Path), zap.Any("panic", rec))
			writeFailure(w, fmt.Errorf("%v", rec))
		}
	}()

	if router.debug {
		router.log.Info("Request received.", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.String("remote", r.RemoteAddr))
	}

	segments := istrings.SplitPath(r.URL.Path)
	switch {
	case len(segments) == 0:
		router.landing(w)
	case len(segments) == 1 && segments[0] == DirectoryToken:
		router.directory(w)
	case segments[0] == AdminToken:
		router.admin.ServeHTTP(w, r)
	case len(segments) < 2:
		err := &ErrMalformedPath{Path: r.URL.Path}
		writePlain(w, http.StatusBadRequest, err.Error())
	default:
		router.dispatch(w, r, segments[0], segments[1])
	}
}

func (router *Router) directory(w http.ResponseWriter) {
	writeJSON(w, router.registry.Applications())
}

func (router *Router) dispatch(w http.ResponseWriter, r *http.Request, userID, functionName string) {
	if r.Body == nil {
		r.Body = http.NoBody
	}
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, r.Body, router.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			router.log.Info("Request body too large.", zap.String("path", r.URL.Path), zap.Int64("limit", tooLarge.Limit))
			writePlain(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		router.log.Warn("Unable to read request body.", zap.Error(err))
		writeDefault(w)
		return
	}

	query := ihttp.FlattenQuery(r.URL.Query())
	headers := ihttp.FlattenHeader(r.Header)

	result := router.matcher.Match(Candidate{
		UserID:       userID,
		FunctionName: functionName,
		Method:       r.Method,
		Headers:      ihttp.Keys(headers),
		QueryKeys:    ihttp.Keys(query),
		IsTLS:        r.TLS != nil,
		HasBody:      len(body) > 0,
	})
	if err := result.Err(); err != nil {
		router.log.Debug("Request not matched.", zap.String("path", r.URL.Path), zap.Stringer("result", result.Kind))
		writePlain(w, http.StatusNotFound, msgFunctionNotFound)
		return
	}

	sourceIP, sourcePort := ihttp.SourceAddr(r)
	req := function.NewRequest(result.Definition, &function.HTTPParameters{
		SourceIP:           sourceIP,
		SourcePort:         sourcePort,
		Ssl:                r.TLS != nil,
		FullURL:            ihttp.FullURL(r),
		RawURL:             r.URL.RequestURI(),
		RawURLWithoutQuery: r.URL.EscapedPath(),
		Method:             strings.ToLower(r.Method),
		Querystring:        query,
		Headers:            headers,
		ContentLength:      int64(len(body)),
		Data:               body,
	})

	payload, err := json.Marshal(req)
	if err != nil {
		router.log.Error("Unable to encode invocation request.", zap.Object("request", req), zap.Error(err))
		writeDefault(w)
		return
	}

	start := time.Now()
	reply, err := router.dispatcher.SendSync(r.Context(), router.channel, payload)
	elapsed := time.Since(start)
	metricDispatchDuration.Observe(elapsed.Seconds())
	if err != nil {
		metricDispatches.WithLabelValues(dispatchFailed).Inc()
		router.log.Warn("Dispatching request failed.", zap.Object("request", req), zap.Error(err))
		var tooLarge *bus.ErrMessageTooLarge
		if errors.As(err, &tooLarge) {
			writePlain(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		writeDefault(w)
		return
	}
	if len(reply) == 0 {
		metricDispatches.WithLabelValues(dispatchEmpty).Inc()
		router.log.Warn("Worker returned no response.", zap.Object("request", req))
		writeDefault(w)
		return
	}

	resp := &function.Response{}
	if err := json.Unmarshal(reply, resp); err != nil {
		metricDispatches.WithLabelValues(dispatchMalformed).Inc()
		err = &ErrResponseMalformed{Original: err}
		router.log.Error("Worker returned malformed response.", zap.Object("request", req), zap.Error(err))
		writeFailure(w, err)
		return
	}

	metricDispatches.WithLabelValues(dispatchOK).Inc()
	router.log.Debug("Request dispatched.",
		zap.String("function", req.UserID+"/"+req.FunctionName),
		zap.Int64("ms", elapsed.Nanoseconds()/int64(time.Millisecond)),
		zap.Object("request", req), zap.Object("response", resp))
	writeResponse(w, resp)
}

// IsDraining returns true if this Router is being drained before shutting down.
func (router *Router) IsDraining() bool {
	select {
	case <-router.drain:
		return true
	default:
	}
	return false
}

// Drain causes new requests to return 503.
func (router *Router) Drain() {
	router.Lock()
	defer router.Unlock()

	select {
	case <-router.drain:
		// already closed
	default:
		close(router.drain)
	}
}

func writeResponse(w http.ResponseWriter, resp *function.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.HTTPStatus)
	w.Write(resp.Data)
}

// writeDefault writes the response established before dispatching.
func writeDefault(w http.ResponseWriter) {
	writePlain(w, http.StatusInternalServerError, msgInternalServerError)
}

func writePlain(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(msg))
}

func writeFailure(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
