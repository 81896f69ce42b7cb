package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rungomx/server/internal/i18n"
)

type recordingCatalog struct {
	pathname string
	err      error
}

func (c *recordingCatalog) RequestConfig(r *http.Request) (*i18n.RequestConfig, error) {
	c.pathname, _ = i18n.PathnameFromContext(r.Context())
	if c.err != nil {
		return nil, c.err
	}
	return &i18n.RequestConfig{Locale: "en", Messages: i18n.Messages{"common": map[string]any{"ok": "OK"}}}, nil
}

func TestMessagesHandler_Get(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		wantStatus   int
		wantPathname string
		wantCode     string
	}{
		{name: "full bundle", target: "/api/v1/messages", wantStatus: http.StatusOK},
		{name: "scoped to page", target: "/api/v1/messages?path=/en/sign-in", wantStatus: http.StatusOK, wantPathname: "/en/sign-in"},
		{name: "relative path", target: "/api/v1/messages?path=sign-in", wantStatus: http.StatusBadRequest, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &recordingCatalog{}
			rec := httptest.NewRecorder()
			NewMessagesHandler(catalog).Get(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantPathname, catalog.pathname)

			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, tt.wantCode, env.Code)
			if tt.wantCode == "" {
				assert.Equal(t, "en", rec.Header().Get("Content-Language"))
				assert.JSONEq(t, `{"locale":"en","messages":{"common":{"ok":"OK"}}}`, string(env.Data))
			}
		})
	}
}

func TestMessagesHandler_CatalogError(t *testing.T) {
	rec := httptest.NewRecorder()
	h := NewMessagesHandler(&recordingCatalog{err: errors.New("read messages/root: permission denied")})
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "permission denied")
}

func TestMessagesHandler_PageWithEmbeddedCatalog(t *testing.T) {
	catalog, err := i18n.NewEmbeddedCatalog("es", zerolog.Nop())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/en/sign-in", nil)
	req = req.WithContext(i18n.WithPathname(i18n.WithLocale(req.Context(), "en"), "/en/sign-in"))
	rec := httptest.NewRecorder()
	NewMessagesHandler(catalog).Page(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))

	var cfg i18n.RequestConfig
	require.NoError(t, json.Unmarshal(env.Data, &cfg))
	assert.Equal(t, "en", cfg.Locale)
	assert.Contains(t, cfg.Namespaces, "pages.signIn")
	assert.Contains(t, cfg.Namespaces, "auth")
	assert.NotEmpty(t, cfg.Messages)
}
