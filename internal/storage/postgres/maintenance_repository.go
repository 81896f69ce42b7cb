package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MaintenanceRepository deletes expired rows for the cleanup jobs.
type MaintenanceRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func NewMaintenanceRepository(pool *pgxpool.Pool) *MaintenanceRepository {
	return &MaintenanceRepository{pool: pool}
}

func (r *MaintenanceRepository) DeleteRateLimitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM rate_limits WHERE window_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete rate limits: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *MaintenanceRepository) DeleteAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *MaintenanceRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := pick(r.pool, r.tx).Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
