package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rungomx/server/internal/audit"
	"github.com/rungomx/server/internal/domain/users"
)

type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ users.Repository = (*UserRepository)(nil)

func (r *UserRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *UserRepository) WithTx(ctx context.Context, fn func(context.Context, users.Repository) error) error {
	return withTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		return fn(ctx, &UserRepository{pool: r.pool, tx: tx})
	})
}

func (r *UserRepository) LockUser(ctx context.Context, userID string) (*users.User, error) {
	var u users.User
	err := r.queryer().QueryRow(ctx, `
SELECT id::text, email, name, phone, image, email_verified, created_at, deleted_at
  FROM users
 WHERE id = $1
   FOR UPDATE
`, userID).Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.Image, &u.EmailVerified, &u.CreatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &u, nil
}

// HasRole ignores soft-deleted role rows and deleted users.
func (r *UserRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var ok bool
	err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1
    FROM user_roles ur
    JOIN users u ON u.id = ur.user_id
   WHERE ur.user_id = $1 AND ur.role = $2
     AND ur.deleted_at IS NULL AND u.deleted_at IS NULL
)`, userID, role).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return ok, nil
}

func (r *UserRepository) Anonymize(ctx context.Context, userID, placeholderEmail, placeholderName string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE users
   SET email = $2,
       name = $3,
       phone = NULL,
       image = NULL,
       email_verified = false,
       deleted_at = now(),
       updated_at = now()
 WHERE id = $1
`, userID, placeholderEmail, placeholderName)
	if err != nil {
		return fmt.Errorf("anonymize user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepository) DeleteSessions(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
}

func (r *UserRepository) DeleteAccounts(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
}

func (r *UserRepository) SoftDeleteRoles(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `UPDATE user_roles SET deleted_at = now() WHERE user_id = $1 AND deleted_at IS NULL`, userID)
}

func (r *UserRepository) CloseMemberships(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, `UPDATE registration_group_members SET left_at = now() WHERE user_id = $1 AND left_at IS NULL`, userID)
}

func (r *UserRepository) RecordAudit(ctx context.Context, entry audit.Entry) error {
	return insertAudit(ctx, r.queryer(), entry)
}

func (r *UserRepository) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.queryer().Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
