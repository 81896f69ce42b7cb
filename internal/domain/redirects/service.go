// Package redirects resolves renamed event URLs. A redirect maps an old
// (series, edition) slug pair to a new one; chains are followed to the end.
package redirects

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/metrics"
	"github.com/rungomx/server/internal/sanitize"
)

// DefaultMaxHops bounds chain length when no limit is configured.
const DefaultMaxHops = 16

var ErrNotFound = errors.New("redirect not found")

// Pair identifies an edition by its public slugs.
type Pair struct {
	SeriesSlug  string `json:"seriesSlug"`
	EditionSlug string `json:"editionSlug"`
}

func (p Pair) normalize() Pair {
	return Pair{SeriesSlug: sanitize.Slug(p.SeriesSlug), EditionSlug: sanitize.Slug(p.EditionSlug)}
}

func (p Pair) String() string {
	return p.SeriesSlug + "/" + p.EditionSlug
}

type Redirect struct {
	From Pair
	To   Pair
}

// Resolution is the terminal target of a redirect chain.
type Resolution struct {
	SeriesSlug  string `json:"seriesSlug"`
	EditionSlug string `json:"editionSlug"`
	Hops        int    `json:"hops"`
}

type Repository interface {
	// Lookup returns the target for from, or ErrNotFound.
	Lookup(ctx context.Context, from Pair) (Pair, error)
	List(ctx context.Context) ([]Redirect, error)
	Upsert(ctx context.Context, redirect Redirect) error
}

type Service struct {
	repo    Repository
	maxHops int
	logger  zerolog.Logger
}

func NewService(repo Repository, maxHops int, logger zerolog.Logger) *Service {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Service{
		repo:    repo,
		maxHops: maxHops,
		logger:  logger.With().Str("component", "redirects").Logger(),
	}
}

// Resolve follows redirects starting at (seriesSlug, editionSlug). It returns
// nil when no redirect starts there, when the chain revisits a pair, or when
// it exceeds the hop limit.
func (s *Service) Resolve(ctx context.Context, seriesSlug, editionSlug string) (*Resolution, error) {
	start := Pair{SeriesSlug: seriesSlug, EditionSlug: editionSlug}.normalize()
	if start.SeriesSlug == "" || start.EditionSlug == "" {
		metrics.RedirectResolutions.WithLabelValues("none").Inc()
		return nil, nil
	}

	visited := map[Pair]bool{start: true}
	current := start
	hops := 0

	for {
		next, err := s.repo.Lookup(ctx, current)
		if errors.Is(err, ErrNotFound) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lookup redirect %s: %w", current, err)
		}
		next = next.normalize()

		if visited[next] {
			metrics.RedirectResolutions.WithLabelValues("cycle").Inc()
			s.logger.Warn().
				Str("start", start.String()).
				Str("revisited", next.String()).
				Int("hops", hops+1).
				Msg("redirect cycle detected")
			return nil, nil
		}
		hops++
		if hops > s.maxHops {
			metrics.RedirectResolutions.WithLabelValues("hop_limit").Inc()
			s.logger.Warn().
				Str("start", start.String()).
				Int("max_hops", s.maxHops).
				Msg("redirect chain exceeds hop limit")
			return nil, nil
		}
		visited[next] = true
		current = next
	}

	if hops == 0 {
		metrics.RedirectResolutions.WithLabelValues("none").Inc()
		return nil, nil
	}

	metrics.RedirectResolutions.WithLabelValues("resolved").Inc()
	return &Resolution{SeriesSlug: current.SeriesSlug, EditionSlug: current.EditionSlug, Hops: hops}, nil
}

// Add stores a redirect after normalizing both pairs. Self-redirects are
// rejected.
func (s *Service) Add(ctx context.Context, from, to Pair) error {
	from, to = from.normalize(), to.normalize()
	if from.SeriesSlug == "" || from.EditionSlug == "" || to.SeriesSlug == "" || to.EditionSlug == "" {
		return fmt.Errorf("redirect slugs must not be empty")
	}
	if from == to {
		return fmt.Errorf("redirect %s points to itself", from)
	}
	if err := s.repo.Upsert(ctx, Redirect{From: from, To: to}); err != nil {
		return fmt.Errorf("store redirect: %w", err)
	}
	s.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("redirect stored")
	return nil
}

// Problem describes a redirect start that does not resolve cleanly.
type Problem struct {
	Start  Pair
	Reason string // "cycle" or "hop_limit"
	Path   []Pair
}

// Check walks every stored redirect and reports chains that are cyclic or too
// long. Results are sorted by start pair.
func (s *Service) Check(ctx context.Context) ([]Problem, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list redirects: %w", err)
	}

	edges := make(map[Pair]Pair, len(all))
	for _, r := range all {
		edges[r.From.normalize()] = r.To.normalize()
	}

	var problems []Problem
	for start := range edges {
		path := []Pair{start}
		visited := map[Pair]bool{start: true}
		current := start
		for {
			next, ok := edges[current]
			if !ok {
				break
			}
			path = append(path, next)
			if visited[next] {
				problems = append(problems, Problem{Start: start, Reason: "cycle", Path: path})
				break
			}
			if len(path)-1 > s.maxHops {
				problems = append(problems, Problem{Start: start, Reason: "hop_limit", Path: path})
				break
			}
			visited[next] = true
			current = next
		}
	}

	sort.Slice(problems, func(i, j int) bool {
		return problems[i].Start.String() < problems[j].Start.String()
	})
	return problems, nil
}
