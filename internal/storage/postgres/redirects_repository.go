package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rungomx/server/internal/domain/redirects"
)

type RedirectRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ redirects.Repository = (*RedirectRepository)(nil)

func (r *RedirectRepository) queryer() queryer {
	return pick(r.pool, r.tx)
}

func (r *RedirectRepository) Lookup(ctx context.Context, from redirects.Pair) (redirects.Pair, error) {
	var to redirects.Pair
	err := r.queryer().QueryRow(ctx, `
SELECT to_series_slug, to_edition_slug
  FROM event_slug_redirects
 WHERE from_series_slug = $1 AND from_edition_slug = $2
`, from.SeriesSlug, from.EditionSlug).Scan(&to.SeriesSlug, &to.EditionSlug)
	if errors.Is(err, pgx.ErrNoRows) {
		return redirects.Pair{}, redirects.ErrNotFound
	}
	if err != nil {
		return redirects.Pair{}, fmt.Errorf("lookup redirect: %w", err)
	}
	return to, nil
}

func (r *RedirectRepository) List(ctx context.Context) ([]redirects.Redirect, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT from_series_slug, from_edition_slug, to_series_slug, to_edition_slug
  FROM event_slug_redirects
 ORDER BY from_series_slug, from_edition_slug
`)
	if err != nil {
		return nil, fmt.Errorf("list redirects: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (redirects.Redirect, error) {
		var rd redirects.Redirect
		err := row.Scan(&rd.From.SeriesSlug, &rd.From.EditionSlug, &rd.To.SeriesSlug, &rd.To.EditionSlug)
		return rd, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan redirects: %w", err)
	}
	return out, nil
}

// Upsert points an existing from pair at a new target.
func (r *RedirectRepository) Upsert(ctx context.Context, rd redirects.Redirect) error {
	_, err := r.queryer().Exec(ctx, `
INSERT INTO event_slug_redirects (from_series_slug, from_edition_slug, to_series_slug, to_edition_slug)
VALUES ($1, $2, $3, $4)
ON CONFLICT ON CONSTRAINT event_slug_redirects_from_key
DO UPDATE SET to_series_slug = EXCLUDED.to_series_slug,
              to_edition_slug = EXCLUDED.to_edition_slug,
              updated_at = now()
`, rd.From.SeriesSlug, rd.From.EditionSlug, rd.To.SeriesSlug, rd.To.EditionSlug)
	if err != nil {
		return fmt.Errorf("upsert redirect: %w", err)
	}
	return nil
}
