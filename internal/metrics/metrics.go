// Package metrics provides Prometheus metrics for the chat service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the chat service. Each
// instance carries its own registry so tests can build throwaway sets
// without colliding on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	ChunksStreamedTotal prometheus.Counter
	UpstreamErrorsTotal prometheus.Counter
	TurnsTotal          *prometheus.CounterVec
}

// New creates and registers all chat service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatconnect_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "status"},
	)

	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatconnect_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	m.RequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatconnect_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	m.ChunksStreamedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "chatconnect_chunks_streamed_total",
			Help: "Total number of response fragments streamed to clients",
		},
	)

	m.UpstreamErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "chatconnect_upstream_errors_total",
			Help: "Total number of failed upstream completion calls",
		},
	)

	m.TurnsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatconnect_chat_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"status"},
	)

	return m
}

// Handler exposes the metrics registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
