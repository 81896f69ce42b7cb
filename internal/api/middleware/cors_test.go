package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/config"
)

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.CORSConfig
		origin      string
		wantAllowed string
	}{
		{
			name:        "allow all reflects origin",
			cfg:         config.CORSConfig{AllowAllOrigins: true},
			origin:      "http://localhost:3000",
			wantAllowed: "http://localhost:3000",
		},
		{
			name:        "listed origin matches case-insensitively",
			cfg:         config.CORSConfig{AllowedOrigins: []string{"https://RunGoMX.com"}},
			origin:      "https://rungomx.com",
			wantAllowed: "https://rungomx.com",
		},
		{
			name:   "unlisted origin gets no headers",
			cfg:    config.CORSConfig{AllowedOrigins: []string{"https://rungomx.com"}},
			origin: "https://evil.example",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.cfg, zerolog.Nop())(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllowed {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllowed)
			}
			if tt.wantAllowed != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected credentials to be allowed")
			}
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	handler := CORS(config.CORSConfig{AllowedOrigins: []string{"https://rungomx.com"}}, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/registration-groups/join", nil)
	req.Header.Set("Origin", "https://rungomx.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if called {
		t.Error("preflight should not reach the handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("expected Access-Control-Allow-Headers on preflight")
	}
}

func TestCORS_NoOriginPassesThrough(t *testing.T) {
	handler := CORS(config.CORSConfig{}, zerolog.Nop())(okHandler())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))

	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("same-origin requests should not get CORS headers")
	}
}
