package postgres

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/domain/redirects"
)

func TestRedirectChain(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	svc := redirects.NewService(repo.Redirects(), redirects.DefaultMaxHops, zerolog.Nop())

	require.NoError(t, svc.Add(ctx, redirects.Pair{SeriesSlug: "maraton-cdmx", EditionSlug: "2024"}, redirects.Pair{SeriesSlug: "maraton-cdmx", EditionSlug: "2025"}))
	require.NoError(t, svc.Add(ctx, redirects.Pair{SeriesSlug: "maraton-cdmx", EditionSlug: "2025"}, redirects.Pair{SeriesSlug: "maraton-cdmx", EditionSlug: "2026"}))

	res, err := svc.Resolve(ctx, "Maraton-CDMX", "2024")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "2026", res.EditionSlug)
	assert.Equal(t, 2, res.Hops)

	res, err = svc.Resolve(ctx, "maraton-cdmx", "2026")
	require.NoError(t, err)
	assert.Nil(t, res)

	// Re-pointing a source replaces the old target.
	require.NoError(t, svc.Add(ctx, redirects.Pair{SeriesSlug: "maraton-cdmx", EditionSlug: "2024"}, redirects.Pair{SeriesSlug: "medio-maraton", EditionSlug: "2024"}))
	assert.Equal(t, 2, countRows(t, ctx, pool, `SELECT count(*) FROM event_slug_redirects`))
	res, err = svc.Resolve(ctx, "maraton-cdmx", "2024")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "medio-maraton", res.SeriesSlug)
}

func TestRedirectCycle(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t, ctx)
	repo, err := NewRepository(pool)
	require.NoError(t, err)
	svc := redirects.NewService(repo.Redirects(), redirects.DefaultMaxHops, zerolog.Nop())

	a := redirects.Pair{SeriesSlug: "trail", EditionSlug: "a"}
	b := redirects.Pair{SeriesSlug: "trail", EditionSlug: "b"}
	require.NoError(t, svc.Add(ctx, a, b))
	require.NoError(t, svc.Add(ctx, b, a))

	res, err := svc.Resolve(ctx, "trail", "a")
	require.NoError(t, err)
	assert.Nil(t, res)

	problems, err := svc.Check(ctx)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, "cycle", problems[0].Reason)
}
