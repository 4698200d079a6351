// Package metrics exposes the Prometheus instruments for the discovery
// pipeline, the change feed and the HTTP and gRPC layers.
//
// Metrics are served at /metrics in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// page fetch outcomes
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected" // circuit open
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_pages_fetched_total",
			Help: "Upstream pages fetched, by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_page_fetch_duration_seconds",
			Help:    "Duration of one page fetch including retries",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	MalformedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_malformed_records_total",
			Help: "Upstream records dropped because they could not be adapted",
		},
		[]string{"source"},
	)

	AggregatedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_aggregated_items_total",
			Help: "Distinct items produced by aggregation, by the source that served them",
		},
		[]string{"source"},
	)

	FallbacksUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_fallbacks_total",
			Help: "Aggregations served by a fallback source",
		},
		[]string{"source"},
	)

	// 0 = closed, 1 = open, 2 = half-open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	FeedClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_feed_clients",
			Help: "Connected change feed clients",
		},
		[]string{"transport"},
	)

	FeedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_feed_events_total",
			Help: "Catalog change events broadcast",
		},
	)

	FeedEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_feed_events_dropped_total",
			Help: "Catalog change events dropped because the broadcast queue was full",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	GRPCRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total gRPC calls, by method and status code",
		},
		[]string{"method", "code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// Middleware records request counts and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}
