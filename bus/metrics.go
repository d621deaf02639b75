package bus

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(metricSyncCalls)
	prometheus.MustRegister(metricSyncDuration)
	prometheus.MustRegister(metricReconnects)
	prometheus.MustRegister(metricSessionState)
	prometheus.MustRegister(metricSyncHandled)
}

var metricSyncCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "bus",
		Name:      "sync_calls_total",
		Help:      "Total of synchronous calls sent, by result.",
	}, []string{"result"})

var metricSyncDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "functiongateway",
		Subsystem: "bus",
		Name:      "sync_call_duration_seconds",
		Help:      "Bucketed histogram of time between sending a synchronous call and receiving its reply.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})

var metricReconnects = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "bus",
		Name:      "connects_total",
		Help:      "Total of successful connections to the broker.",
	})

var metricSessionState = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "functiongateway",
		Subsystem: "bus",
		Name:      "session_state",
		Help:      "State of the session: 0 disconnected, 1 connecting, 2 connected, 3 logged in, 4 channels joined.",
	})

var metricSyncHandled = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "bus",
		Name:      "sync_handled_total",
		Help:      "Total of synchronous calls received and answered by this node.",
	})

func syncResult(err error) string {
	switch err.(type) {
	case nil:
		return "ok"
	case *ErrTimeout:
		return "timeout"
	case *ErrRejected:
		return "rejected"
	case *ErrNotConnected:
		return "not-connected"
	case *ErrMessageTooLarge:
		return "too-large"
	default:
		return "transport"
	}
}
