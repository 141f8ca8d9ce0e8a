// Package metrics holds the prometheus collectors shared by the catalog client,
// the response cache, the list controller and the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog metrics
	CatalogRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinescope_catalog_requests_total",
			Help: "Total number of catalog API requests",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, error, rejected
	)

	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinescope_catalog_request_duration_seconds",
			Help:    "Duration of catalog API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinescope_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Cache metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinescope_cache_lookups_total",
			Help: "Response cache lookups by backend and result",
		},
		[]string{"backend", "result"}, // result: hit, miss, error
	)

	// List controller metrics
	ListDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinescope_list_dispatches_total",
			Help: "List fetches dispatched by data source",
		},
		[]string{"source"}, // popular, search, genre
	)

	StaleResponses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinescope_list_stale_responses_total",
			Help: "List responses discarded because the filter changed while in flight",
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cinescope_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	WebSocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinescope_websocket_sessions",
			Help: "Currently open browse sessions",
		},
	)
)

// ObserveCatalogRequest records the outcome and latency of one catalog call.
func ObserveCatalogRequest(endpoint, outcome string, started time.Time) {
	CatalogRequests.WithLabelValues(endpoint, outcome).Inc()
	CatalogRequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
