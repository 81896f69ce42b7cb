package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/auth"
)

// Authenticator resolves a session token to its caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// Session attaches the caller named by the session cookie or bearer token.
// Invalid or revoked tokens leave the request anonymous; RequireSession
// decides whether that is acceptable.
func Session(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			principal, err := authenticator.Authenticate(ctx, token)
			if err != nil {
				logger := LoggerFromContext(ctx)
				if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrMissingToken) {
					logger.Debug().Err(err).Msg("ignoring invalid session token")
				} else {
					logger.Error().Err(err).Msg("session lookup failed")
				}
				next.ServeHTTP(w, r)
				return
			}

			zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", principal.UserID)
			})
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
		})
	}
}

// RequireSession rejects anonymous requests with UNAUTHENTICATED.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.PrincipalFromContext(r.Context()); !ok {
			render.Fail(w, action.CodeUnauthenticated, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
