package groups

import (
	"context"
	"errors"
	"time"

	"github.com/rungomx/server/internal/audit"
)

var (
	ErrNotFound = errors.New("registration group not found")

	// ErrTokenCollision is returned by CreateGroup when token_hash already exists.
	ErrTokenCollision = errors.New("registration group token collision")

	// ErrDuplicateMembership is returned by AddMember when the user already
	// holds a current membership in the edition.
	ErrDuplicateMembership = errors.New("duplicate current membership in edition")
)

// Edition visibility values.
const (
	VisibilityDraft     = "draft"
	VisibilityPublished = "published"
	VisibilityUnlisted  = "unlisted"
	VisibilityArchived  = "archived"
)

type Edition struct {
	ID         string
	SeriesID   string
	Slug       string
	Visibility string
	DeletedAt  *time.Time
}

// Joinable reports whether groups may be created for the edition.
func (e Edition) Joinable() bool {
	return e.Visibility == VisibilityPublished || e.Visibility == VisibilityUnlisted
}

type Distance struct {
	ID        string
	EditionID string
	Label     string
	DeletedAt *time.Time
}

type Group struct {
	ID              string
	EditionID       string
	DistanceID      string
	CreatedByUserID string
	Name            string
	TokenHash       string
	TokenPrefix     string
	MaxMembers      int
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

type Member struct {
	ID       string     `json:"id"`
	GroupID  string     `json:"groupId"`
	UserID   string     `json:"userId"`
	Name     string     `json:"name,omitempty"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}

type CreateGroupParams struct {
	EditionID       string
	DistanceID      string
	CreatedByUserID string
	Name            string
	TokenHash       string
	TokenPrefix     string
	MaxMembers      int
}

// Repository is the storage contract for registration groups. Methods called
// inside WithTx run on the transaction.
type Repository interface {
	GetEdition(ctx context.Context, editionID string) (*Edition, error)
	GetDistance(ctx context.Context, distanceID string) (*Distance, error)
	ListDiscountTiers(ctx context.Context, editionID string) ([]Tier, error)

	GetByID(ctx context.Context, groupID string) (*Group, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*Group, error)
	CreateGroup(ctx context.Context, params CreateGroupParams) (*Group, error)
	Disable(ctx context.Context, groupID string) error

	// LockGroup loads the group with SELECT ... FOR UPDATE. Only meaningful
	// inside WithTx.
	LockGroup(ctx context.Context, groupID string) (*Group, error)

	IsCurrentMember(ctx context.Context, groupID, userID string) (bool, error)
	// CurrentGroupInEdition returns the group the user currently belongs to in
	// the edition, or ErrNotFound.
	CurrentGroupInEdition(ctx context.Context, editionID, userID string) (string, error)
	CountCurrentMembers(ctx context.Context, groupID string) (int, error)
	ListCurrentMembers(ctx context.Context, groupID string) ([]Member, error)
	AddMember(ctx context.Context, groupID, editionID, userID string) (*Member, error)
	// CloseMembership sets left_at on the user's current membership and
	// reports whether one existed.
	CloseMembership(ctx context.Context, groupID, userID string) (bool, error)

	RecordAudit(ctx context.Context, entry audit.Entry) error

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}
