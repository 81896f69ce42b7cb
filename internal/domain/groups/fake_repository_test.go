package groups

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rungomx/server/internal/audit"
)

type memberRow struct {
	Member
	editionID string
}

// fakeRepository is an in-memory Repository. WithTx serializes transactions
// and rolls state back when fn fails, which is enough to stand in for the
// group row lock.
type fakeRepository struct {
	txMu sync.Mutex
	mu   sync.Mutex

	editions  map[string]*Edition
	distances map[string]*Distance
	tiers     map[string][]Tier
	groups    map[string]*Group
	members   []*memberRow
	audits    []audit.Entry

	createGroupErr error
	lockCalls      int

	// skipEditionCheck makes CurrentGroupInEdition miss, leaving the
	// duplicate-membership constraint in AddMember as the only guard.
	skipEditionCheck bool
}

var _ Repository = (*fakeRepository)(nil)

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		editions:  make(map[string]*Edition),
		distances: make(map[string]*Distance),
		tiers:     make(map[string][]Tier),
		groups:    make(map[string]*Group),
	}
}

func (f *fakeRepository) addEdition(visibility string) *Edition {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &Edition{ID: uuid.NewString(), SeriesID: uuid.NewString(), Slug: "2026", Visibility: visibility}
	f.editions[e.ID] = e
	return e
}

func (f *fakeRepository) addDistance(editionID string) *Distance {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &Distance{ID: uuid.NewString(), EditionID: editionID, Label: "10K"}
	f.distances[d.ID] = d
	return d
}

func (f *fakeRepository) currentMembers(groupID string) []*memberRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*memberRow
	for _, m := range f.members {
		if m.GroupID == groupID && m.LeftAt == nil {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeRepository) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.audits))
	for _, a := range f.audits {
		out = append(out, a.Action)
	}
	return out
}

func (f *fakeRepository) GetEdition(ctx context.Context, editionID string) (*Edition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.editions[editionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepository) GetDistance(ctx context.Context, distanceID string) (*Distance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.distances[distanceID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRepository) ListDiscountTiers(ctx context.Context, editionID string) ([]Tier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Tier(nil), f.tiers[editionID]...), nil
}

func (f *fakeRepository) GetByID(ctx context.Context, groupID string) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (f *fakeRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.TokenHash == tokenHash {
			cp := *g
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error) {
	if f.createGroupErr != nil {
		return nil, f.createGroupErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.TokenHash == params.TokenHash {
			return nil, ErrTokenCollision
		}
	}
	now := time.Now().UTC()
	g := &Group{
		ID:              uuid.NewString(),
		EditionID:       params.EditionID,
		DistanceID:      params.DistanceID,
		CreatedByUserID: params.CreatedByUserID,
		Name:            params.Name,
		TokenHash:       params.TokenHash,
		TokenPrefix:     params.TokenPrefix,
		MaxMembers:      params.MaxMembers,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.groups[g.ID] = g
	cp := *g
	return &cp, nil
}

func (f *fakeRepository) Disable(ctx context.Context, groupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	g.IsActive = false
	g.DeletedAt = &now
	return nil
}

func (f *fakeRepository) LockGroup(ctx context.Context, groupID string) (*Group, error) {
	f.mu.Lock()
	f.lockCalls++
	f.mu.Unlock()
	return f.GetByID(ctx, groupID)
}

func (f *fakeRepository) IsCurrentMember(ctx context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.GroupID == groupID && m.UserID == userID && m.LeftAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) CurrentGroupInEdition(ctx context.Context, editionID, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.skipEditionCheck {
		return "", ErrNotFound
	}
	for _, m := range f.members {
		if m.editionID == editionID && m.UserID == userID && m.LeftAt == nil {
			return m.GroupID, nil
		}
	}
	return "", ErrNotFound
}

func (f *fakeRepository) CountCurrentMembers(ctx context.Context, groupID string) (int, error) {
	return len(f.currentMembers(groupID)), nil
}

func (f *fakeRepository) ListCurrentMembers(ctx context.Context, groupID string) ([]Member, error) {
	rows := f.currentMembers(groupID)
	out := make([]Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Member)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeRepository) AddMember(ctx context.Context, groupID, editionID, userID string) (*Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.editionID == editionID && m.UserID == userID && m.LeftAt == nil {
			return nil, ErrDuplicateMembership
		}
	}
	row := &memberRow{
		Member: Member{
			ID:       uuid.NewString(),
			GroupID:  groupID,
			UserID:   userID,
			JoinedAt: time.Now().UTC(),
		},
		editionID: editionID,
	}
	f.members = append(f.members, row)
	m := row.Member
	return &m, nil
}

func (f *fakeRepository) CloseMembership(ctx context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.GroupID == groupID && m.UserID == userID && m.LeftAt == nil {
			now := time.Now().UTC()
			m.LeftAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepository) RecordAudit(ctx context.Context, entry audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	snapshot := f.snapshot()
	if err := fn(ctx, f); err != nil {
		f.restore(snapshot)
		return err
	}
	return nil
}

type fakeState struct {
	groups  map[string]Group
	members []memberRow
	audits  []audit.Entry
}

func (f *fakeRepository) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := fakeState{groups: make(map[string]Group, len(f.groups))}
	for id, g := range f.groups {
		s.groups[id] = *g
	}
	for _, m := range f.members {
		s.members = append(s.members, *m)
	}
	s.audits = append(s.audits, f.audits...)
	return s
}

func (f *fakeRepository) restore(s fakeState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups = make(map[string]*Group, len(s.groups))
	for id, g := range s.groups {
		g := g
		f.groups[id] = &g
	}
	f.members = f.members[:0]
	for _, m := range s.members {
		m := m
		f.members = append(f.members, &m)
	}
	f.audits = s.audits
}
