package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// SessionCookieName holds the signed session token.
const SessionCookieName = "rungomx_session"

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionStore persists sessions. Deleting a row revokes every token that
// names it.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ipAddress, userAgent string) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// Principal is the authenticated caller.
type Principal struct {
	UserID    string
	SessionID string
}

type Authenticator struct {
	tokens *JWTManager
	store  SessionStore
	now    func() time.Time
}

func NewAuthenticator(tokens *JWTManager, store SessionStore) *Authenticator {
	return &Authenticator{tokens: tokens, store: store, now: time.Now}
}

// Issue opens a session for userID and returns its signed token.
func (a *Authenticator) Issue(ctx context.Context, userID, ipAddress, userAgent string) (string, *Session, error) {
	expiresAt := a.now().Add(a.tokens.Expiry()).UTC()
	session, err := a.store.CreateSession(ctx, userID, expiresAt, ipAddress, userAgent)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	token, err := a.tokens.Generate(userID, session.ID, session.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, session, nil
}

// Authenticate validates token and confirms its session still exists.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	session, err := a.store.GetSession(ctx, claims.ID)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.UserID != claims.Subject || !session.ExpiresAt.After(a.now()) {
		return nil, ErrInvalidToken
	}
	return &Principal{UserID: session.UserID, SessionID: session.ID}, nil
}

// Revoke deletes the session named by token, if any.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return err
	}
	if err := a.store.DeleteSession(ctx, claims.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// TokenFromRequest reads the session cookie, falling back to a bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	token, err := TokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return token
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the caller stored by the session middleware.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// UserID returns the authenticated user ID, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return ""
}
