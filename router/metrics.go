package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(metricRequests)
	prometheus.MustRegister(metricRequestDuration)
	prometheus.MustRegister(metricDispatchDuration)
	prometheus.MustRegister(metricDispatches)
}

var metricRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "Total of HTTP requests handled, by status code.",
	}, []string{"code"})

var metricRequestDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "functiongateway",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "Bucketed histogram of request duration of gateway requests.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})

var metricDispatchDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "functiongateway",
		Subsystem: "gateway",
		Name:      "dispatch_duration_seconds",
		Help:      "Bucketed histogram of time spent waiting for a worker to answer a dispatched request.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})

var metricDispatches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "gateway",
		Name:      "dispatches_total",
		Help:      "Total of matched requests dispatched to workers, by result.",
	}, []string{"result"})

const (
	dispatchOK        = "ok"
	dispatchFailed    = "failed"
	dispatchEmpty     = "empty"
	dispatchMalformed = "malformed"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

type metricsReporter struct {
	Handler http.Handler
}

func (m metricsReporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	recorder := &statusRecorder{ResponseWriter: w}
	m.Handler.ServeHTTP(recorder, r)
	if recorder.status == 0 {
		recorder.status = http.StatusOK
	}
	metricRequestDuration.Observe(time.Since(start).Seconds())
	metricRequests.WithLabelValues(strconv.Itoa(recorder.status)).Inc()
}
