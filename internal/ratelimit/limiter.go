// Package ratelimit implements fixed-window counters persisted in the
// database, so limits hold across every server instance.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/rungomx/server/internal/metrics"
)

// Store increments the counter for (key, action, windowStart) and returns the
// updated count. Implementations must perform the increment atomically.
type Store interface {
	Increment(ctx context.Context, key, action string, windowStart time.Time) (int, error)
}

// Policy describes a single limit.
type Policy struct {
	Action string
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed bool
	Count   int
	Limit   int
	ResetAt time.Time
}

// RetryAfter returns how long the caller should wait before trying again.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// Limiter checks policies against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter backed by store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check consumes one unit of policy for key. Every call counts, including
// rejected ones.
func (l *Limiter) Check(ctx context.Context, policy Policy, key string) (Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	start := WindowStart(l.now(), policy.Window)
	count, err := l.store.Increment(ctx, key, policy.Action, start)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", policy.Action, err)
	}

	decision := Decision{
		Allowed: count <= policy.Limit,
		Count:   count,
		Limit:   policy.Limit,
		ResetAt: start.Add(policy.Window),
	}
	if !decision.Allowed {
		metrics.RateLimitRejections.WithLabelValues(policy.Action).Inc()
	}
	return decision, nil
}

// WindowStart aligns t to the start of its fixed window.
func WindowStart(t time.Time, window time.Duration) time.Time {
	return t.UTC().Truncate(window)
}
