package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP request metrics, labelled by matched route
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpserver_requests_total",
			Help: "Total number of HTTP requests by route, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpserver_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpserver_open_connections",
			Help: "Client connections currently open",
		},
	)
)

// Dispatcher metrics
var (
	// DispatchOutcomes counts dispatched requests by outcome: ok, http_error, internal_error, panic.
	DispatchOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpserver_dispatch_outcomes_total",
			Help: "Dispatched service calls by outcome",
		},
		[]string{"route", "method", "outcome"},
	)

	ServiceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpserver_service_run_seconds",
			Help:    "Time spent inside Service.Run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	RegisteredServices = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpserver_registered_services",
			Help: "Number of (route, method) pairs in the registration table",
		},
	)
)

// Dispatch outcome labels
const (
	OutcomeOK            = "ok"
	OutcomeHTTPError     = "http_error"
	OutcomeInternalError = "internal_error"
	OutcomePanic         = "panic"
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, OpenConnections)
	prometheus.MustRegister(DispatchOutcomes, ServiceLatency, RegisteredServices)
}
