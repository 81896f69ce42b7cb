package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/audit"
	"github.com/rungomx/server/internal/metrics"
)

var ErrNotFound = errors.New("user not found")

const (
	RoleAdmin = "admin"

	DeletedName = "Deleted user"

	ActionDelete = "user.delete"
)

// DeletedEmail is the placeholder address written over a deleted user's email.
// It stays unique per user so the email column constraint still holds.
func DeletedEmail(userID string) string {
	return "deleted+" + userID + "@deleted.rungomx.invalid"
}

type User struct {
	ID            string
	Email         string
	Name          string
	Phone         *string
	Image         *string
	EmailVerified bool
	CreatedAt     time.Time
	DeletedAt     *time.Time
}

// DeletionCounts reports what a deletion touched.
type DeletionCounts struct {
	Sessions    int64 `json:"sessions"`
	Accounts    int64 `json:"accounts"`
	Roles       int64 `json:"roles"`
	Memberships int64 `json:"memberships"`
}

type Repository interface {
	// LockUser returns the user row under FOR UPDATE, including soft-deleted
	// rows, or ErrNotFound.
	LockUser(ctx context.Context, userID string) (*User, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)

	Anonymize(ctx context.Context, userID, placeholderEmail, placeholderName string) error
	DeleteSessions(ctx context.Context, userID string) (int64, error)
	DeleteAccounts(ctx context.Context, userID string) (int64, error)
	SoftDeleteRoles(ctx context.Context, userID string) (int64, error)
	CloseMemberships(ctx context.Context, userID string) (int64, error)

	RecordAudit(ctx context.Context, entry audit.Entry) error
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
}

// Notifier delivers the account-deleted notice.
type Notifier interface {
	SendAccountDeleted(ctx context.Context, to, name string) error
}

type Service struct {
	repo        Repository
	notifier    Notifier
	auditLogger *audit.Logger
	logger      zerolog.Logger
}

// NewService builds the user service. notifier may be nil, in which case
// deletions are not announced.
func NewService(repo Repository, notifier Notifier, auditLogger *audit.Logger, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		notifier:    notifier,
		auditLogger: auditLogger,
		logger:      logger.With().Str("component", "users").Logger(),
	}
}

// DeleteUser erases targetID's personal data. Callers may delete themselves;
// deleting anyone else takes the admin role. A missing or already deleted
// user is NOT_FOUND, so repeats are safe.
func (s *Service) DeleteUser(ctx context.Context, actorID, targetID string) (*DeletionCounts, error) {
	if actorID == "" {
		return nil, action.ErrUnauthenticated
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return nil, action.ErrNotFound
	}

	initiator := "self"
	if actorID != targetID {
		isAdmin, err := s.repo.HasRole(ctx, actorID, RoleAdmin)
		if err != nil {
			return nil, fmt.Errorf("check admin role: %w", err)
		}
		if !isAdmin {
			return nil, action.ErrForbidden
		}
		initiator = "admin"
	}

	var (
		original User
		counts   DeletionCounts
		entry    audit.Entry
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		user, err := tx.LockUser(ctx, targetID)
		if errors.Is(err, ErrNotFound) {
			return action.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if user.DeletedAt != nil {
			return action.ErrNotFound
		}
		original = *user

		if err := tx.Anonymize(ctx, targetID, DeletedEmail(targetID), DeletedName); err != nil {
			return fmt.Errorf("anonymize user: %w", err)
		}
		if counts.Sessions, err = tx.DeleteSessions(ctx, targetID); err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		if counts.Accounts, err = tx.DeleteAccounts(ctx, targetID); err != nil {
			return fmt.Errorf("delete accounts: %w", err)
		}
		if counts.Roles, err = tx.SoftDeleteRoles(ctx, targetID); err != nil {
			return fmt.Errorf("soft delete roles: %w", err)
		}
		if counts.Memberships, err = tx.CloseMemberships(ctx, targetID); err != nil {
			return fmt.Errorf("close group memberships: %w", err)
		}

		entry = audit.NewEntry(ctx, ActionDelete, actorID, "user", targetID).
			WithAfter(map[string]any{
				"initiator":   initiator,
				"sessions":    counts.Sessions,
				"accounts":    counts.Accounts,
				"roles":       counts.Roles,
				"memberships": counts.Memberships,
			})
		if err := tx.RecordAudit(ctx, entry); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditLogger.Log(entry)
	metrics.UserDeletions.WithLabelValues(initiator).Inc()
	s.logger.Info().
		Str("user_id", targetID).
		Str("actor_id", actorID).
		Str("initiator", initiator).
		Msg("user deleted")

	s.notify(ctx, original)
	return &counts, nil
}

// notify sends the deletion notice to the pre-anonymization address.
// Delivery failures are logged only.
func (s *Service) notify(ctx context.Context, user User) {
	if s.notifier == nil || user.Email == "" {
		return
	}
	if err := s.notifier.SendAccountDeleted(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", user.ID).
			Msg("failed to send account deletion email")
	}
}
