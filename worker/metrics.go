package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK            = "ok"
	resultArtifactLoad  = "artifact-load"
	resultFunctionError = "function-error"
	resultMalformed     = "malformed-request"
)

func init() {
	prometheus.MustRegister(metricInvocations)
	prometheus.MustRegister(metricInvocationDuration)
}

var metricInvocations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "worker",
		Name:      "invocations_total",
		Help:      "Total of function invocations, by result.",
	}, []string{"result"})

var metricInvocationDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "functiongateway",
		Subsystem: "worker",
		Name:      "invocation_duration_seconds",
		Help:      "Bucketed histogram of function execution time.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
	})
