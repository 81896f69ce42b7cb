package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/audit"
	"github.com/rungomx/server/internal/metrics"
	"github.com/rungomx/server/internal/ratelimit"
	"github.com/rungomx/server/internal/sanitize"
)

const (
	// MinMembers is the smallest group size that can be configured.
	MinMembers = 2

	// MaxNameLength is the longest group name accepted, in runes.
	MaxNameLength = 80

	entityType = "registration_group"
)

// Audit actions
const (
	ActionCreate       = "registration_group.create"
	ActionJoin         = "registration_group.join"
	ActionLeave        = "registration_group.leave"
	ActionRemoveMember = "registration_group.remove_member"
	ActionDisable      = "registration_group.disable"
)

// RateLimiter consumes one unit of a policy for key.
type RateLimiter interface {
	Check(ctx context.Context, policy ratelimit.Policy, key string) (ratelimit.Decision, error)
}

type Config struct {
	// MaxMembers is the configured ceiling for group size.
	MaxMembers int
	// CreateLimit bounds group creation per (user, edition).
	CreateLimit ratelimit.Policy
}

// Service implements registration group membership.
type Service struct {
	repo      Repository
	limiter   RateLimiter
	audit     *audit.Logger
	validator *validator.Validate
	cfg       Config
	logger    zerolog.Logger

	newToken func() (string, error)
}

func NewService(repo Repository, limiter RateLimiter, auditLogger *audit.Logger, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxMembers < MinMembers {
		cfg.MaxMembers = MinMembers
	}
	return &Service{
		repo:      repo,
		limiter:   limiter,
		audit:     auditLogger,
		validator: validator.New(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "registration_groups").Logger(),
		newToken:  generateToken,
	}
}

type CreateGroupInput struct {
	EditionID  string `json:"editionId" validate:"required,uuid"`
	DistanceID string `json:"distanceId" validate:"required,uuid"`
	Name       string `json:"name"`
	MaxMembers *int   `json:"maxMembers" validate:"omitempty,min=1"`
}

type CreatedGroup struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	TokenPrefix string `json:"tokenPrefix"`
	MaxMembers  int    `json:"maxMembers"`
	Name        string `json:"name,omitempty"`
}

// CreateGroup creates a group for (edition, distance) owned by userID. The
// plaintext join token is only ever returned here.
func (s *Service) CreateGroup(ctx context.Context, userID string, input CreateGroupInput) (result *CreatedGroup, err error) {
	defer func() { s.observe("create", err) }()

	if userID == "" {
		return nil, action.ErrUnauthenticated
	}

	name := sanitize.DisplayName(input.Name)
	if fieldErrs := s.validateCreate(input, name); fieldErrs != nil {
		return nil, action.Invalid(fieldErrs)
	}

	policy := s.cfg.CreateLimit
	decision, err := s.limiter.Check(ctx, policy, userID+":"+input.EditionID)
	if err != nil {
		return nil, fmt.Errorf("check create rate limit: %w", err)
	}
	if !decision.Allowed {
		return nil, action.ErrRateLimited
	}

	edition, err := s.repo.GetEdition(ctx, input.EditionID)
	if errors.Is(err, ErrNotFound) {
		return nil, action.Fail(action.CodeNotFound, "Event edition not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load edition: %w", err)
	}
	if edition.DeletedAt != nil {
		return nil, action.Fail(action.CodeNotFound, "Event edition not found")
	}
	if !edition.Joinable() {
		return nil, action.Fail(action.CodeNotAvailable, "Event edition is not open for groups")
	}

	distance, err := s.repo.GetDistance(ctx, input.DistanceID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load distance: %w", err)
	}
	if distance == nil || distance.EditionID != edition.ID || distance.DeletedAt != nil {
		return nil, action.ErrInvalidDistance
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	maxMembers := s.clampMaxMembers(input.MaxMembers)

	var group *Group
	err = s.withAudit(ctx, func(ctx context.Context, tx Repository) (*audit.Entry, error) {
		created, err := tx.CreateGroup(ctx, CreateGroupParams{
			EditionID:       edition.ID,
			DistanceID:      distance.ID,
			CreatedByUserID: userID,
			Name:            name,
			TokenHash:       hashToken(token),
			TokenPrefix:     tokenPrefix(token),
			MaxMembers:      maxMembers,
		})
		if err != nil {
			return nil, err
		}
		group = created

		entry := audit.NewEntry(ctx, ActionCreate, userID, entityType, created.ID).WithAfter(map[string]any{
			"edition_id":  created.EditionID,
			"distance_id": created.DistanceID,
			"name":        created.Name,
			"max_members": created.MaxMembers,
		})
		return &entry, nil
	})
	if errors.Is(err, ErrTokenCollision) {
		s.logger.Warn().Str("edition_id", edition.ID).Msg("join token collision on create")
		return nil, action.ErrRetry
	}
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.logger.Info().
		Str("group_id", group.ID).
		Str("edition_id", group.EditionID).
		Str("user_id", userID).
		Int("max_members", group.MaxMembers).
		Msg("registration group created")

	return &CreatedGroup{
		ID:          group.ID,
		Token:       token,
		TokenPrefix: group.TokenPrefix,
		MaxMembers:  group.MaxMembers,
		Name:        group.Name,
	}, nil
}

type JoinResult struct {
	GroupID       string `json:"groupId"`
	AlreadyMember bool   `json:"alreadyMember"`
}

// JoinGroup adds userID to the group identified by token. The group row is
// locked for the duration of the checks and the insert so concurrent joins
// cannot exceed max_members.
func (s *Service) JoinGroup(ctx context.Context, userID, token string) (result *JoinResult, err error) {
	defer func() { s.observe("join", err) }()

	if userID == "" {
		return nil, action.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, action.Invalid(map[string][]string{"token": {"Token is required"}})
	}

	group, err := s.repo.GetByTokenHash(ctx, hashToken(token))
	if errors.Is(err, ErrNotFound) {
		return nil, action.Fail(action.CodeNotFound, "Group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load group by token: %w", err)
	}
	if group.DeletedAt != nil {
		return nil, action.Fail(action.CodeNotFound, "Group not found")
	}
	if !group.IsActive {
		return nil, action.ErrDisabled
	}

	result = &JoinResult{GroupID: group.ID}

	err = s.withAudit(ctx, func(ctx context.Context, tx Repository) (*audit.Entry, error) {
		lockStart := time.Now()
		locked, err := tx.LockGroup(ctx, group.ID)
		metrics.GroupJoinLockWait.Observe(time.Since(lockStart).Seconds())
		if errors.Is(err, ErrNotFound) {
			return nil, action.Fail(action.CodeNotFound, "Group not found")
		}
		if err != nil {
			return nil, fmt.Errorf("lock group: %w", err)
		}
		// State may have changed between the lookup and the lock.
		if locked.DeletedAt != nil {
			return nil, action.Fail(action.CodeNotFound, "Group not found")
		}
		if !locked.IsActive {
			return nil, action.ErrDisabled
		}

		member, err := tx.IsCurrentMember(ctx, locked.ID, userID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}
		if member {
			result.AlreadyMember = true
			return nil, nil
		}

		otherGroup, err := tx.CurrentGroupInEdition(ctx, locked.EditionID, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("check edition membership: %w", err)
		}
		if err == nil && otherGroup != locked.ID {
			return nil, action.ErrAlreadyInGroup
		}

		count, err := tx.CountCurrentMembers(ctx, locked.ID)
		if err != nil {
			return nil, fmt.Errorf("count members: %w", err)
		}
		if count >= locked.MaxMembers {
			return nil, action.Fail(action.CodeGroupFull, fmt.Sprintf("Group has %d of %d members", count, locked.MaxMembers))
		}

		if _, err := tx.AddMember(ctx, locked.ID, locked.EditionID, userID); err != nil {
			if errors.Is(err, ErrDuplicateMembership) {
				return nil, action.ErrAlreadyInGroup
			}
			return nil, fmt.Errorf("add member: %w", err)
		}

		entry := audit.NewEntry(ctx, ActionJoin, userID, entityType, locked.ID).WithAfter(map[string]any{
			"member_user_id": userID,
			"member_count":   count + 1,
		})
		return &entry, nil
	})
	if err != nil {
		return nil, err
	}

	if !result.AlreadyMember {
		s.logger.Info().Str("group_id", group.ID).Str("user_id", userID).Msg("member joined registration group")
	}
	return result, nil
}

// LeaveGroup closes the caller's current membership in groupID.
func (s *Service) LeaveGroup(ctx context.Context, userID, groupID string) (err error) {
	defer func() { s.observe("leave", err) }()

	if userID == "" {
		return action.ErrUnauthenticated
	}
	if !validID(groupID) {
		return action.Fail(action.CodeNotFound, "Not a member of this group")
	}

	return s.withAudit(ctx, func(ctx context.Context, tx Repository) (*audit.Entry, error) {
		closed, err := tx.CloseMembership(ctx, groupID, userID)
		if err != nil {
			return nil, fmt.Errorf("close membership: %w", err)
		}
		if !closed {
			return nil, action.Fail(action.CodeNotFound, "Not a member of this group")
		}
		entry := audit.NewEntry(ctx, ActionLeave, userID, entityType, groupID).WithBefore(map[string]any{
			"member_user_id": userID,
		})
		return &entry, nil
	})
}

// RemoveMember lets the group creator close another member's membership.
func (s *Service) RemoveMember(ctx context.Context, userID, groupID, memberUserID string) (err error) {
	defer func() { s.observe("remove_member", err) }()

	if userID == "" {
		return action.ErrUnauthenticated
	}
	if !validID(groupID) {
		return action.Fail(action.CodeNotFound, "Group not found")
	}

	group, err := s.repo.GetByID(ctx, groupID)
	if errors.Is(err, ErrNotFound) || (err == nil && group.DeletedAt != nil) {
		return action.Fail(action.CodeNotFound, "Group not found")
	}
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if group.CreatedByUserID != userID {
		return action.Fail(action.CodeForbidden, "Only the group creator can remove members")
	}
	if memberUserID == userID {
		return action.Fail(action.CodeInvalidMember, "Cannot remove yourself")
	}
	if !validID(memberUserID) {
		return action.Fail(action.CodeInvalidMember, "User is not a current member")
	}

	return s.withAudit(ctx, func(ctx context.Context, tx Repository) (*audit.Entry, error) {
		closed, err := tx.CloseMembership(ctx, group.ID, memberUserID)
		if err != nil {
			return nil, fmt.Errorf("close membership: %w", err)
		}
		if !closed {
			return nil, action.Fail(action.CodeInvalidMember, "User is not a current member")
		}
		entry := audit.NewEntry(ctx, ActionRemoveMember, userID, entityType, group.ID).WithBefore(map[string]any{
			"member_user_id": memberUserID,
		})
		return &entry, nil
	})
}

// DisableGroup soft-deletes a group. Existing memberships are left intact.
func (s *Service) DisableGroup(ctx context.Context, userID, groupID string) (err error) {
	defer func() { s.observe("disable", err) }()

	if userID == "" {
		return action.ErrUnauthenticated
	}
	if !validID(groupID) {
		return action.Fail(action.CodeNotFound, "Group not found")
	}

	group, err := s.repo.GetByID(ctx, groupID)
	if errors.Is(err, ErrNotFound) || (err == nil && group.DeletedAt != nil) {
		return action.Fail(action.CodeNotFound, "Group not found")
	}
	if err != nil {
		return fmt.Errorf("load group: %w", err)
	}
	if group.CreatedByUserID != userID {
		return action.Fail(action.CodeForbidden, "Only the group creator can disable the group")
	}

	return s.withAudit(ctx, func(ctx context.Context, tx Repository) (*audit.Entry, error) {
		if err := tx.Disable(ctx, group.ID); err != nil {
			return nil, fmt.Errorf("disable group: %w", err)
		}
		entry := audit.NewEntry(ctx, ActionDisable, userID, entityType, group.ID).WithBefore(map[string]any{
			"is_active": group.IsActive,
		})
		return &entry, nil
	})
}

type Overview struct {
	ID          string    `json:"id"`
	EditionID   string    `json:"editionId"`
	DistanceID  string    `json:"distanceId"`
	Name        string    `json:"name,omitempty"`
	TokenPrefix string    `json:"tokenPrefix"`
	MaxMembers  int       `json:"maxMembers"`
	CreatedBy   string    `json:"createdByUserId"`
	Members     []Member  `json:"members"`
	Discount    TierState `json:"discount"`
}

// GetGroupOverview returns a public summary of the group behind token.
func (s *Service) GetGroupOverview(ctx context.Context, token string) (*Overview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, action.Fail(action.CodeNotFound, "Group not found")
	}

	group, err := s.repo.GetByTokenHash(ctx, hashToken(token))
	if errors.Is(err, ErrNotFound) || (err == nil && group.DeletedAt != nil) {
		return nil, action.Fail(action.CodeNotFound, "Group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load group by token: %w", err)
	}
	if !group.IsActive {
		return nil, action.ErrDisabled
	}

	members, err := s.repo.ListCurrentMembers(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	tiers, err := s.repo.ListDiscountTiers(ctx, group.EditionID)
	if err != nil {
		return nil, fmt.Errorf("list discount tiers: %w", err)
	}

	return &Overview{
		ID:          group.ID,
		EditionID:   group.EditionID,
		DistanceID:  group.DistanceID,
		Name:        group.Name,
		TokenPrefix: group.TokenPrefix,
		MaxMembers:  group.MaxMembers,
		CreatedBy:   group.CreatedByUserID,
		Members:     members,
		Discount:    EvaluateTiers(tiers, len(members)),
	}, nil
}

func (s *Service) validateCreate(input CreateGroupInput, name string) map[string][]string {
	fieldErrs := map[string][]string{}

	if err := s.validator.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			fieldErrs["_"] = append(fieldErrs["_"], err.Error())
		}
		for _, fe := range verrs {
			field := jsonField(fe.Field())
			fieldErrs[field] = append(fieldErrs[field], validationMessage(fe))
		}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		fieldErrs["name"] = append(fieldErrs["name"], fmt.Sprintf("Must be at most %d characters", MaxNameLength))
	}

	if len(fieldErrs) == 0 {
		return nil
	}
	return fieldErrs
}

func (s *Service) clampMaxMembers(requested *int) int {
	if requested == nil {
		return s.cfg.MaxMembers
	}
	n := *requested
	if n < MinMembers {
		return MinMembers
	}
	if n > s.cfg.MaxMembers {
		return s.cfg.MaxMembers
	}
	return n
}

// withAudit runs fn in a transaction, persists the audit entry it returns in
// the same transaction, and mirrors the entry to the log after commit. A nil
// entry means nothing changed.
func (s *Service) withAudit(ctx context.Context, fn func(context.Context, Repository) (*audit.Entry, error)) error {
	var entry *audit.Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		var err error
		entry, err = fn(ctx, tx)
		if err != nil || entry == nil {
			return err
		}
		if err := tx.RecordAudit(ctx, *entry); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if entry != nil {
		s.audit.Log(*entry)
	}
	return nil
}

func (s *Service) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = string(action.CodeOf(err))
	}
	metrics.GroupActions.WithLabelValues(op, result).Inc()
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func jsonField(structField string) string {
	switch structField {
	case "EditionID":
		return "editionId"
	case "DistanceID":
		return "distanceId"
	case "MaxMembers":
		return "maxMembers"
	case "Name":
		return "name"
	default:
		return structField
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "uuid":
		return "Must be a valid UUID"
	case "min":
		return "Must be at least " + fe.Param()
	default:
		return "Invalid value"
	}
}
