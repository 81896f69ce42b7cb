package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rungomx/server/internal/audit"
	"github.com/rungomx/server/internal/domain/groups"
)

const (
	constraintGroupTokenHash    = "registration_groups_token_hash_key"
	constraintCurrentMembership = "registration_group_members_current_key"
	groupColumns                = `id::text, edition_id::text, distance_id::text, created_by_user_id::text,
       COALESCE(name, ''), token_hash, token_prefix, max_members, is_active, created_at, updated_at, deleted_at`
)

type GroupRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ groups.Repository = (*GroupRepository)(nil)

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

func (r *GroupRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *GroupRepository) WithTx(ctx context.Context, fn func(context.Context, groups.Repository) error) error {
	return withTx(ctx, r.pool, r.tx, func(tx pgx.Tx) error {
		return fn(ctx, &GroupRepository{pool: r.pool, tx: tx})
	})
}

func (r *GroupRepository) GetEdition(ctx context.Context, editionID string) (*groups.Edition, error) {
	var e groups.Edition
	err := r.queryer().QueryRow(ctx, `
SELECT id::text, series_id::text, slug, visibility, deleted_at
  FROM event_editions
 WHERE id = $1
`, editionID).Scan(&e.ID, &e.SeriesID, &e.Slug, &e.Visibility, &e.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get edition: %w", err)
	}
	return &e, nil
}

func (r *GroupRepository) GetDistance(ctx context.Context, distanceID string) (*groups.Distance, error) {
	var d groups.Distance
	err := r.queryer().QueryRow(ctx, `
SELECT id::text, edition_id::text, label, deleted_at
  FROM event_distances
 WHERE id = $1
`, distanceID).Scan(&d.ID, &d.EditionID, &d.Label, &d.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get distance: %w", err)
	}
	return &d, nil
}

func (r *GroupRepository) ListDiscountTiers(ctx context.Context, editionID string) ([]groups.Tier, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT min_participants, percent_off
  FROM group_discount_rules
 WHERE edition_id = $1
 ORDER BY min_participants
`, editionID)
	if err != nil {
		return nil, fmt.Errorf("list discount tiers: %w", err)
	}
	tiers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (groups.Tier, error) {
		var t groups.Tier
		err := row.Scan(&t.MinParticipants, &t.PercentOff)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan discount tiers: %w", err)
	}
	return tiers, nil
}

func scanGroup(row pgx.Row) (*groups.Group, error) {
	var g groups.Group
	err := row.Scan(
		&g.ID,
		&g.EditionID,
		&g.DistanceID,
		&g.CreatedByUserID,
		&g.Name,
		&g.TokenHash,
		&g.TokenPrefix,
		&g.MaxMembers,
		&g.IsActive,
		&g.CreatedAt,
		&g.UpdatedAt,
		&g.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GroupRepository) GetByID(ctx context.Context, groupID string) (*groups.Group, error) {
	g, err := scanGroup(r.queryer().QueryRow(ctx, `SELECT `+groupColumns+` FROM registration_groups WHERE id = $1`, groupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration group: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*groups.Group, error) {
	g, err := scanGroup(r.queryer().QueryRow(ctx, `SELECT `+groupColumns+` FROM registration_groups WHERE token_hash = $1`, tokenHash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration group by token: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) CreateGroup(ctx context.Context, params groups.CreateGroupParams) (g *groups.Group, err error) {
	defer observe("create_registration_group", time.Now(), &err)

	var name *string
	if params.Name != "" {
		name = &params.Name
	}
	g, err = scanGroup(r.queryer().QueryRow(ctx, `
INSERT INTO registration_groups (edition_id, distance_id, created_by_user_id, name, token_hash, token_prefix, max_members)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING `+groupColumns,
		params.EditionID,
		params.DistanceID,
		params.CreatedByUserID,
		name,
		params.TokenHash,
		params.TokenPrefix,
		params.MaxMembers,
	))
	if uniqueViolation(err, constraintGroupTokenHash) {
		return nil, groups.ErrTokenCollision
	}
	if err != nil {
		return nil, fmt.Errorf("insert registration group: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) Disable(ctx context.Context, groupID string) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE registration_groups
   SET is_active = false,
       deleted_at = COALESCE(deleted_at, now()),
       updated_at = now()
 WHERE id = $1
`, groupID)
	if err != nil {
		return fmt.Errorf("disable registration group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return groups.ErrNotFound
	}
	return nil
}

// LockGroup takes the row lock that serializes joins against the group.
func (r *GroupRepository) LockGroup(ctx context.Context, groupID string) (g *groups.Group, err error) {
	defer observe("lock_registration_group", time.Now(), &err)

	g, err = scanGroup(r.queryer().QueryRow(ctx, `SELECT `+groupColumns+` FROM registration_groups WHERE id = $1 FOR UPDATE`, groupID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, groups.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock registration group: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) IsCurrentMember(ctx context.Context, groupID, userID string) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `
SELECT EXISTS (
  SELECT 1 FROM registration_group_members
   WHERE group_id = $1 AND user_id = $2 AND left_at IS NULL
)`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check current membership: %w", err)
	}
	return exists, nil
}

func (r *GroupRepository) CurrentGroupInEdition(ctx context.Context, editionID, userID string) (string, error) {
	var groupID string
	err := r.queryer().QueryRow(ctx, `
SELECT group_id::text
  FROM registration_group_members
 WHERE edition_id = $1 AND user_id = $2 AND left_at IS NULL
 LIMIT 1
`, editionID, userID).Scan(&groupID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", groups.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find current group in edition: %w", err)
	}
	return groupID, nil
}

func (r *GroupRepository) CountCurrentMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	err := r.queryer().QueryRow(ctx, `
SELECT count(*) FROM registration_group_members WHERE group_id = $1 AND left_at IS NULL
`, groupID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count current members: %w", err)
	}
	return count, nil
}

func (r *GroupRepository) ListCurrentMembers(ctx context.Context, groupID string) ([]groups.Member, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT m.id::text, m.group_id::text, m.user_id::text, u.name, m.joined_at, m.left_at
  FROM registration_group_members m
  JOIN users u ON u.id = m.user_id
 WHERE m.group_id = $1 AND m.left_at IS NULL
 ORDER BY m.joined_at, m.id
`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list current members: %w", err)
	}
	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (groups.Member, error) {
		var m groups.Member
		err := row.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Name, &m.JoinedAt, &m.LeftAt)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan members: %w", err)
	}
	return members, nil
}

func (r *GroupRepository) AddMember(ctx context.Context, groupID, editionID, userID string) (*groups.Member, error) {
	var m groups.Member
	err := r.queryer().QueryRow(ctx, `
INSERT INTO registration_group_members (group_id, edition_id, user_id)
VALUES ($1, $2, $3)
RETURNING id::text, group_id::text, user_id::text, joined_at
`, groupID, editionID, userID).Scan(&m.ID, &m.GroupID, &m.UserID, &m.JoinedAt)
	if uniqueViolation(err, constraintCurrentMembership) {
		return nil, groups.ErrDuplicateMembership
	}
	if err != nil {
		return nil, fmt.Errorf("insert membership: %w", err)
	}
	return &m, nil
}

func (r *GroupRepository) CloseMembership(ctx context.Context, groupID, userID string) (bool, error) {
	tag, err := r.queryer().Exec(ctx, `
UPDATE registration_group_members
   SET left_at = now()
 WHERE group_id = $1 AND user_id = $2 AND left_at IS NULL
`, groupID, userID)
	if err != nil {
		return false, fmt.Errorf("close membership: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *GroupRepository) RecordAudit(ctx context.Context, entry audit.Entry) error {
	return insertAudit(ctx, r.queryer(), entry)
}
