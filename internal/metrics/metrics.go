// Package metrics holds the Prometheus collectors for remote calls, cache
// writes and in-flight operations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the application metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	// Remote API metrics
	RemoteRequestTotal    *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheWriteTotal *prometheus.CounterVec

	// Coordinator metrics
	OperationsInFlight *prometheus.GaugeVec

	registry *prometheus.Registry
}

// New creates a Metrics instance registered with its own registry.
func New() *Metrics {
	m := &Metrics{
		RemoteRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabby_remote_requests_total",
			Help: "Total number of cat API requests",
		}, []string{"call", "outcome"}),

		RemoteRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tabby_remote_request_duration_seconds",
			Help:    "Cat API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),

		CacheWriteTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tabby_cache_writes_total",
			Help: "Total number of cache writes",
		}, []string{"kind"}),

		OperationsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tabby_operations_in_flight",
			Help: "Number of coordinator operations currently running",
		}, []string{"kind"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.RemoteRequestTotal,
		m.RemoteRequestDuration,
		m.CacheWriteTotal,
		m.OperationsInFlight,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRemote records one finished remote call.
func (m *Metrics) ObserveRemote(call, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RemoteRequestTotal.WithLabelValues(call, outcome).Inc()
	m.RemoteRequestDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

// CacheWrite counts one cache write of the given kind ("collection", "detail").
func (m *Metrics) CacheWrite(kind string) {
	if m == nil {
		return
	}
	m.CacheWriteTotal.WithLabelValues(kind).Inc()
}

// OperationStarted marks an operation of kind as in flight.
func (m *Metrics) OperationStarted(kind string) {
	if m == nil {
		return
	}
	m.OperationsInFlight.WithLabelValues(kind).Inc()
}

// OperationFinished undoes OperationStarted.
func (m *Metrics) OperationFinished(kind string) {
	if m == nil {
		return
	}
	m.OperationsInFlight.WithLabelValues(kind).Dec()
}
