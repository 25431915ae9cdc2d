// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationDuration tracks generative endpoint latency per operation.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Generative call duration in seconds",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"operation", "provider", "status"},
	)

	// GenerationsTotal counts generative calls by outcome.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Total generative calls",
		},
		[]string{"operation", "provider", "status"},
	)

	// VideoPollsTotal counts status checks issued while waiting on video jobs.
	VideoPollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "video_polls_total",
			Help: "Total video job status checks",
		},
	)

	// SessionsActive tracks sessions held by the registry.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live studio sessions",
		},
	)

	// MessagesTotal tracks conversation turns appended.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total conversation turns appended",
		},
		[]string{"role"},
	)

	// LateResultsDropped counts results discarded because the session was reset.
	LateResultsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "late_results_dropped_total",
			Help: "Results discarded after a session reset",
		},
		[]string{"action"},
	)

	// AssetBytes tracks bytes held by the asset store.
	AssetBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "asset_store_bytes",
			Help: "Bytes of downloaded video held in memory",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records the outcome of a generative call.
func RecordGeneration(operation, provider, status string, duration float64) {
	GenerationDuration.WithLabelValues(operation, provider, status).Observe(duration)
	GenerationsTotal.WithLabelValues(operation, provider, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
