package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riverqueue/river"

	"github.com/rungomx/server/internal/metrics"
)

// DefaultRateLimitRetention keeps counters well past the longest window.
const DefaultRateLimitRetention = 48 * time.Hour

// CleanupStore deletes expired rows. Each method returns the rows removed.
type CleanupStore interface {
	DeleteRateLimitsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

type RateLimitCleanupArgs struct{}

func (RateLimitCleanupArgs) Kind() string { return JobKindRateLimitCleanup }

type AuditLogCleanupArgs struct{}

func (AuditLogCleanupArgs) Kind() string { return JobKindAuditLogCleanup }

type SessionCleanupArgs struct{}

func (SessionCleanupArgs) Kind() string { return JobKindSessionCleanup }

// RateLimitCleanupWorker drops counter windows older than Retention.
type RateLimitCleanupWorker struct {
	river.WorkerDefaults[RateLimitCleanupArgs]
	Store     CleanupStore
	Retention time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

func (w RateLimitCleanupWorker) Work(ctx context.Context, job *river.Job[RateLimitCleanupArgs]) error {
	if w.Store == nil {
		return fmt.Errorf("cleanup store not configured")
	}
	retention := w.Retention
	if retention <= 0 {
		retention = DefaultRateLimitRetention
	}
	deleted, err := w.Store.DeleteRateLimitsBefore(ctx, now(w.Now).Add(-retention))
	if err != nil {
		return fmt.Errorf("delete rate limit windows: %w", err)
	}
	recordCleanup(w.Logger, "rate_limits", deleted, job.Attempt)
	return nil
}

// AuditLogCleanupWorker enforces the audit log retention period. A zero
// Retention keeps everything.
type AuditLogCleanupWorker struct {
	river.WorkerDefaults[AuditLogCleanupArgs]
	Store     CleanupStore
	Retention time.Duration
	Logger    *slog.Logger
	Now       func() time.Time
}

func (w AuditLogCleanupWorker) Work(ctx context.Context, job *river.Job[AuditLogCleanupArgs]) error {
	if w.Store == nil {
		return fmt.Errorf("cleanup store not configured")
	}
	if w.Retention <= 0 {
		return nil
	}
	deleted, err := w.Store.DeleteAuditLogsBefore(ctx, now(w.Now).Add(-w.Retention))
	if err != nil {
		return fmt.Errorf("delete audit logs: %w", err)
	}
	recordCleanup(w.Logger, "audit_logs", deleted, job.Attempt)
	return nil
}

// SessionCleanupWorker removes expired sessions.
type SessionCleanupWorker struct {
	river.WorkerDefaults[SessionCleanupArgs]
	Store  CleanupStore
	Logger *slog.Logger
	Now    func() time.Time
}

func (w SessionCleanupWorker) Work(ctx context.Context, job *river.Job[SessionCleanupArgs]) error {
	if w.Store == nil {
		return fmt.Errorf("cleanup store not configured")
	}
	deleted, err := w.Store.DeleteExpiredSessions(ctx, now(w.Now))
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	recordCleanup(w.Logger, "sessions", deleted, job.Attempt)
	return nil
}

func recordCleanup(logger *slog.Logger, table string, deleted int64, attempt int) {
	metrics.CleanupRowsDeleted.WithLabelValues(table).Add(float64(deleted))
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cleanup completed", "table", table, "deleted_count", deleted, "attempt", attempt)
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
