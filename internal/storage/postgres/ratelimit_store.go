package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rungomx/server/internal/ratelimit"
)

// RateLimitStore keeps fixed-window counters in rate_limits.
type RateLimitStore struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ ratelimit.Store = (*RateLimitStore)(nil)

func NewRateLimitStore(pool *pgxpool.Pool) *RateLimitStore {
	return &RateLimitStore{pool: pool}
}

// Increment bumps the counter in a single upsert, so concurrent callers each
// see a distinct count.
func (s *RateLimitStore) Increment(ctx context.Context, key, action string, windowStart time.Time) (count int, err error) {
	defer observe("rate_limit_increment", time.Now(), &err)

	err = pick(s.pool, s.tx).QueryRow(ctx, `
INSERT INTO rate_limits (key, action, window_start, count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (key, action, window_start)
DO UPDATE SET count = rate_limits.count + 1
RETURNING count
`, key, action, windowStart).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment rate limit: %w", err)
	}
	return count, nil
}
