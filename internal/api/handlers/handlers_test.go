package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/auth"
)

type envelope struct {
	OK          bool                `json:"ok"`
	Data        json.RawMessage     `json:"data"`
	Error       string              `json:"error"`
	Code        string              `json:"code"`
	FieldErrors map[string][]string `json:"fieldErrors"`
}

type testRequest struct {
	method  string
	pattern string
	target  string
	body    string
	userID  string
}

// serve routes req through a chi router so URL params resolve as they do in
// production.
func serve(t *testing.T, handler http.HandlerFunc, req testRequest) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	router := chi.NewRouter()
	router.Method(req.method, req.pattern, handler)

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.target, body)
	if req.userID != "" {
		r = r.WithContext(auth.WithPrincipal(r.Context(), &auth.Principal{UserID: req.userID, SessionID: "session-1"}))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec, env
}
