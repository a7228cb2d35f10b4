// Package metrics provides Prometheus metrics for the fleet dashboard service (RED + topology + feed + binding).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "kubilitics_fleet"

var (
	// HTTPRequestTotal counts requests by method, path, status (RED: rate).
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDurationSeconds is request latency histogram (RED: duration).
	HTTPRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2.5, 10), // 1ms to ~9.3s
		},
		[]string{"method", "path"},
	)

	// TopologyBuildDurationSeconds is transform + layout latency.
	TopologyBuildDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "topology_build_duration_seconds",
			Help:      "Topology transform and layout duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"mode"},
	)

	// TopologyNodes is the node count of the last built graph per mode.
	TopologyNodes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "topology_nodes",
			Help:      "Number of nodes in the last built topology graph.",
		},
		[]string{"mode"},
	)

	// TopologyLayoutErrorsTotal counts failed layouts (cycles, bad input).
	TopologyLayoutErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_layout_errors_total",
			Help:      "Total number of failed topology layouts.",
		},
	)

	// TransformCacheLookupsTotal counts node/edge identity cache lookups by element and result (hit, miss).
	TransformCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_cache_lookups_total",
			Help:      "Total number of transform identity cache lookups by element and result.",
		},
		[]string{"element", "result"},
	)

	// TransformCacheClearsTotal counts identity cache clears caused by theme or mode changes.
	TransformCacheClearsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_cache_clears_total",
			Help:      "Total number of transform identity cache clears.",
		},
	)

	// TopologyCacheHitsTotal counts positioned-graph cache hits.
	TopologyCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_cache_hits_total",
			Help:      "Total number of topology cache hits.",
		},
	)

	// TopologyCacheMissesTotal counts positioned-graph cache misses.
	TopologyCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topology_cache_misses_total",
			Help:      "Total number of topology cache misses.",
		},
	)

	// WebSocketConnectionsActive is current number of WebSocket clients.
	WebSocketConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections_active",
			Help:      "Number of active WebSocket connections.",
		},
	)

	// FeedMessagesTotal counts feed messages by result (applied, duplicate, invalid).
	FeedMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_messages_total",
			Help:      "Total number of topology feed messages by result.",
		},
		[]string{"result"},
	)

	// FeedReconnectsTotal counts feed reconnect attempts.
	FeedReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reconnects_total",
			Help:      "Total number of topology feed reconnect attempts.",
		},
	)

	// BindingBackendRequestsTotal counts backend calls by operation and outcome.
	BindingBackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "binding_backend_requests_total",
			Help:      "Total number of binding-policy backend requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)
