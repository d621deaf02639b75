package broker

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	prometheus.MustRegister(metricConnections)
	prometheus.MustRegister(metricClients)
	prometheus.MustRegister(metricChannels)
	prometheus.MustRegister(metricMessages)
	prometheus.MustRegister(metricUndelivered)
}

var metricConnections = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "functiongateway",
		Subsystem: "broker",
		Name:      "connections",
		Help:      "Number of open connections.",
	})

var metricClients = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "functiongateway",
		Subsystem: "broker",
		Name:      "clients",
		Help:      "Number of logged in clients.",
	})

var metricChannels = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "functiongateway",
		Subsystem: "broker",
		Name:      "channels",
		Help:      "Number of channels.",
	})

var metricMessages = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "broker",
		Name:      "messages_received_total",
		Help:      "Total of messages received from clients, by type.",
	}, []string{"type"})

var metricUndelivered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "functiongateway",
		Subsystem: "broker",
		Name:      "messages_undelivered_total",
		Help:      "Total of messages that had no recipient, by type.",
	}, []string{"type"})
