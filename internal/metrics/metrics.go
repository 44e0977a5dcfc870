// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hub metrics
var (
	// HubActiveChannels tracks the number of event channels with subscribers.
	HubActiveChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_active_channels",
			Help: "Number of event channels with at least one subscriber",
		},
	)

	// HubSubscribers tracks currently connected subscriber connections.
	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hub_subscribers_current",
			Help: "Currently connected subscriber connections",
		},
	)

	// HubEnvelopesAnnounced counts announced envelopes by topic.
	HubEnvelopesAnnounced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_envelopes_announced_total",
			Help: "Envelopes announced to the hub by topic",
		},
		[]string{"topic"},
	)

	// HubEnvelopesDelivered counts per-connection deliveries.
	HubEnvelopesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_envelopes_delivered_total",
			Help: "Envelope copies handed to subscriber write queues",
		},
	)

	// HubSlowSubscribersEvicted counts subscribers dropped for full queues.
	HubSlowSubscribersEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_slow_subscribers_evicted_total",
			Help: "Subscribers evicted because their write queue was full",
		},
	)

	// HubStopTimeouts counts forced hub shutdowns.
	HubStopTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hub_stop_timeouts_total",
			Help: "Hub shutdowns that exceeded the graceful timeout",
		},
	)
)

// Transport metrics
var (
	// WebSocketPingFailures counts failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Keepalive pings that failed to send",
		},
	)

	// WebSocketIdleDisconnects counts connections dropped for inactivity.
	WebSocketIdleDisconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_idle_disconnects_total",
			Help: "Connections dropped after the idle timeout",
		},
	)

	// WebSocketSendDuration tracks single message write latency.
	WebSocketSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_send_duration_seconds",
			Help:    "WebSocket message write duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)

	// ConnectionsRejected counts subscribe attempts refused by limits.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connections_rejected_total",
			Help: "Subscribe attempts rejected by connection limits",
		},
		[]string{"reason"},
	)
)

// Relay metrics
var (
	// RelayPublished counts envelopes published to the cross-instance relay.
	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_envelopes_published_total",
			Help: "Envelopes published to the Redis relay",
		},
	)

	// RelayReceived counts envelopes received from other instances.
	RelayReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_envelopes_received_total",
			Help: "Envelopes received from the Redis relay",
		},
	)

	// RelayPublishFailures counts failed relay publishes.
	RelayPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_publish_failures_total",
			Help: "Failed relay publishes (breaker open or Redis error)",
		},
	)

	// RelayBreakerState tracks the relay circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	RelayBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_breaker_state",
			Help: "Relay circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Redis client metrics
var (
	// RedisOpsTotal counts Redis commands by operation and outcome.
	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Redis commands by operation and status",
		},
		[]string{"operation", "status"},
	)

	// RedisOpDuration tracks Redis command latency by operation.
	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Redis command duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"operation"},
	)

	// RedisConnectionErrors counts failed Redis dials.
	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Failed attempts to establish a Redis connection",
		},
	)
)

// Write path metrics
var (
	// WritesCommitted counts committed control-record writes by kind.
	WritesCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "writes_committed_total",
			Help: "Committed control-record writes by kind",
		},
		[]string{"kind"},
	)

	// SnapshotDuration tracks full event snapshot build latency.
	SnapshotDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshot_duration_seconds",
			Help:    "Event state snapshot build duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)
