package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registerOnce          sync.Once
	registry              *prometheus.Registry
	requestsTotal         *prometheus.CounterVec
	requestLatencySeconds *prometheus.HistogramVec
	requestErrorsTotal    *prometheus.CounterVec
	mutationsTotal        *prometheus.CounterVec
)

// Mutation outcomes recorded by RecordMutation.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// RegisterMetrics initialises the Prometheus collectors used by the page and mutation layers.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "halqat_requests_total",
			Help: "Total number of requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "halqat_request_latency_seconds",
			Help:    "Latency distribution for served requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		requestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "halqat_request_errors_total",
			Help: "Total number of error responses.",
		}, []string{"method", "route", "status"})

		mutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "halqat_mutations_total",
			Help: "Form mutations by entity, action and outcome.",
		}, []string{"entity", "action", "outcome"})

		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			requestsTotal, requestLatencySeconds, requestErrorsTotal, mutationsTotal,
		)
	})
}

// Registry returns the registry served on /metrics.
func Registry() *prometheus.Registry {
	RegisterMetrics()
	return registry
}

// Requests exposes the request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the request latency histogram.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// Errors exposes the counter for error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return requestErrorsTotal
}

// Mutations exposes the mutation outcome counter.
func Mutations() *prometheus.CounterVec {
	RegisterMetrics()
	return mutationsTotal
}

// RecordMutation counts one handled form action.
func RecordMutation(entity, action, outcome string) {
	Mutations().WithLabelValues(entity, action, outcome).Inc()
}
