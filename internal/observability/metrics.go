package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photofeed_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photofeed_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// AuthEvents counts authentication events by type and outcome.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photofeed_auth_events_total",
		Help: "Authentication events by type and outcome",
	}, []string{"event", "outcome"})

	// LikeMutations counts like/unlike calls and whether they changed state.
	LikeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photofeed_like_mutations_total",
		Help: "Like and unlike operations by action and whether state changed",
	}, []string{"action", "changed"})

	// StorageBytes counts bytes written to object storage per bucket.
	StorageBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photofeed_storage_uploaded_bytes_total",
		Help: "Bytes uploaded to object storage",
	}, []string{"bucket"})

	// WebSocketConnectionsTotal is the gauge of active realtime connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "photofeed_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photofeed_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthEvent increments the auth event counter.
func RecordAuthEvent(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

// RecordLikeMutation increments the like mutation counter.
func RecordLikeMutation(action string, changed bool) {
	label := "false"
	if changed {
		label = "true"
	}
	LikeMutations.WithLabelValues(action, label).Inc()
}
