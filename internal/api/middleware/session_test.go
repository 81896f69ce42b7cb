package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/auth"
)

type fakeAuthenticator struct {
	principals map[string]*auth.Principal
	err        error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*auth.Principal, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.principals[token]; ok {
		return p, nil
	}
	return nil, auth.ErrInvalidToken
}

func TestSession(t *testing.T) {
	authn := fakeAuthenticator{principals: map[string]*auth.Principal{
		"good": {UserID: "user-1", SessionID: "session-1"},
	}}

	tests := []struct {
		name     string
		setup    func(*http.Request)
		authn    Authenticator
		wantUser string
	}{
		{
			name:     "cookie",
			setup:    func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "good"}) },
			authn:    authn,
			wantUser: "user-1",
		},
		{
			name:     "bearer header",
			setup:    func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			authn:    authn,
			wantUser: "user-1",
		},
		{
			name:  "revoked token stays anonymous",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") },
			authn: authn,
		},
		{
			name:  "store failure stays anonymous",
			setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") },
			authn: fakeAuthenticator{err: errors.New("connection refused")},
		},
		{
			name:  "no credentials",
			setup: func(*http.Request) {},
			authn: authn,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := Session(tt.authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = auth.UserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
			tt.setup(req)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantUser, got)
		})
	}
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/registration-groups/join", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"UNAUTHENTICATED"`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/registration-groups/join", nil)
	req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{UserID: "user-1"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionAddsUserToRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	authn := fakeAuthenticator{principals: map[string]*auth.Principal{"good": {UserID: "user-9"}}}

	handler := CorrelationID(zerolog.New(&buf), nil)(Session(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer good")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user-9", line["user_id"])
}
