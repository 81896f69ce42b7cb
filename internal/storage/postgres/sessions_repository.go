package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rungomx/server/internal/auth"
)

type SessionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ auth.SessionStore = (*SessionRepository)(nil)

func (r *SessionRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *SessionRepository) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ipAddress, userAgent string) (*auth.Session, error) {
	var s auth.Session
	err := r.queryer().QueryRow(ctx, `
INSERT INTO sessions (user_id, expires_at, ip_address, user_agent)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
RETURNING id::text, user_id::text, expires_at, created_at
`, userID, expiresAt, ipAddress, userAgent).Scan(&s.ID, &s.UserID, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &s, nil
}

// GetSession only returns sessions of users that are not deleted.
func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (s *auth.Session, err error) {
	defer observe("get_session", time.Now(), &err)

	var row auth.Session
	err = r.queryer().QueryRow(ctx, `
SELECT s.id::text, s.user_id::text, s.expires_at, s.created_at
  FROM sessions s
  JOIN users u ON u.id = s.user_id
 WHERE s.id = $1 AND u.deleted_at IS NULL
`, sessionID).Scan(&row.ID, &row.UserID, &row.ExpiresAt, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &row, nil
}

func (r *SessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}
