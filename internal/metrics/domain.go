package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

// Registration group metrics
var (
	// GroupActions counts group operations by action and result code
	GroupActions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_group_actions_total",
			Help:      "Registration group operations by action and result",
		},
		[]string{"action", "result"}, // result: ok or an action error code
	)

	// GroupJoinLockWait records how long joins wait for the group row lock
	GroupJoinLockWait = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "registration_group_join_lock_wait_seconds",
			Help:      "Time spent acquiring the group row lock during joins",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
)

// Redirect metrics
var (
	// RedirectResolutions counts slug redirect lookups by outcome
	RedirectResolutions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_redirect_resolutions_total",
			Help:      "Event slug redirect lookups by outcome",
		},
		[]string{"outcome"}, // outcome: resolved|none|cycle|hop_limit
	)
)

// Message bundle metrics
var (
	// MessageDiscoveryScans counts namespace discovery scans
	MessageDiscoveryScans = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_namespace_discovery_scans_total",
			Help:      "Number of message namespace discovery scans performed",
		},
	)
)

// User metrics
var (
	// UserDeletions counts completed account deletions
	UserDeletions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "user_deletions_total",
			Help:      "Account deletions by initiator",
		},
		[]string{"initiator"}, // initiator: self|admin
	)

	// RateLimitRejections counts requests rejected by rate limits
	RateLimitRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by rate limiting",
		},
		[]string{"limiter"}, // limiter: http|group_create
	)
)

// Maintenance metrics
var (
	// CleanupRowsDeleted counts rows removed by retention jobs
	CleanupRowsDeleted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_rows_deleted_total",
			Help:      "Rows deleted by retention cleanup jobs",
		},
		[]string{"table"},
	)
)
