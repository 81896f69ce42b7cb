package i18n

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog(miniTree(), "es", zerolog.Nop())
	require.NoError(t, err)
	return c
}

func newEmbedded(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewEmbeddedCatalog(DefaultLocale, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestEmbeddedCatalogValid(t *testing.T) {
	require.NoError(t, newEmbedded(t).ValidateAll())
}

func TestEmbeddedCatalogOverridesParse(t *testing.T) {
	c := newEmbedded(t)
	_, ok := c.overrides["/groups/join"]
	assert.True(t, ok)
}

func TestLoadMessagesNesting(t *testing.T) {
	c := newMiniCatalog(t)

	msgs, err := c.LoadMessages("en")
	require.NoError(t, err)
	assert.Equal(t, "Hello", msgs["common"].(map[string]any)["hello"])
	pages := msgs["pages"].(map[string]any)
	assert.Equal(t, "Sign in", pages["signIn"].(map[string]any)["title"])
	// home has no en file and falls back to es.
	assert.Equal(t, "Inicio", pages["home"].(map[string]any)["title"])
}

func TestLoadMessagesUnsupportedLocale(t *testing.T) {
	_, err := newMiniCatalog(t).LoadMessages("fr")
	require.Error(t, err)
}

func TestLoadRouteMessages(t *testing.T) {
	c := newEmbedded(t)

	msgs, sel, err := c.LoadRouteMessages("en", "/sign-in")
	require.NoError(t, err)
	assert.Equal(t, LayoutAuth, sel.Layout)
	assert.Contains(t, msgs, "auth")
	assert.Contains(t, msgs, "common")
	assert.NotContains(t, msgs, "components")
	pages := msgs["pages"].(map[string]any)
	assert.Len(t, pages, 1)
	assert.Contains(t, pages, "signIn")

	msgs, sel, err = c.LoadRouteMessages("es", "/dashboard")
	require.NoError(t, err)
	assert.Equal(t, LayoutProtected, sel.Layout)
	components := msgs["components"].(map[string]any)
	assert.NotContains(t, components, "footer")
	assert.Contains(t, components, "themeSwitcher")
}

func TestValidateMessages(t *testing.T) {
	c := newMiniCatalog(t)
	full, err := c.LoadMessages("en")
	require.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		once, err := c.ValidateMessages("en", full)
		require.NoError(t, err)
		twice, err := c.ValidateMessages("en", once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	})

	t.Run("returns a copy", func(t *testing.T) {
		out, err := c.ValidateMessages("en", full)
		require.NoError(t, err)
		out["common"].(map[string]any)["hello"] = "changed"
		assert.Equal(t, "Hello", full["common"].(map[string]any)["hello"])
	})

	tests := []struct {
		name       string
		mutate     func(Messages)
		wantPath   string
		wantReason string
	}{
		{
			name:       "missing nested key",
			mutate:     func(m Messages) { delete(m["common"].(map[string]any)["nested"].(map[string]any), "bye") },
			wantPath:   "common.nested.bye",
			wantReason: ReasonMissing,
		},
		{
			name:       "missing namespace",
			mutate:     func(m Messages) { delete(m, "errors") },
			wantPath:   "errors",
			wantReason: ReasonMissing,
		},
		{
			name:       "unexpected key",
			mutate:     func(m Messages) { m["pages"].(map[string]any)["signIn"].(map[string]any)["extra"] = "x" },
			wantPath:   "pages.signIn.extra",
			wantReason: ReasonUnexpected,
		},
		{
			name:       "type mismatch",
			mutate:     func(m Messages) { m["common"].(map[string]any)["nested"] = "flat" },
			wantPath:   "common.nested",
			wantReason: ReasonType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate, err := c.ValidateMessages("en", full)
			require.NoError(t, err)
			tt.mutate(candidate)

			_, err = c.ValidateMessages("en", candidate)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, "en", verr.Locale)
			assert.Equal(t, tt.wantPath, verr.Path)
			assert.Equal(t, tt.wantReason, verr.Reason)
			assert.Contains(t, err.Error(), tt.wantPath)
		})
	}
}

func TestRouteValidationAllowsAbsentNamespaces(t *testing.T) {
	c := newMiniCatalog(t)
	_, err := c.validate("es", Messages{"common": map[string]any{"hello": "Hola", "nested": map[string]any{"bye": "Adiós"}}}, true)
	require.NoError(t, err)

	_, err = c.validate("es", Messages{"common": map[string]any{"hello": "Hola"}}, true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "common.nested", verr.Path)
}

func TestRequestConfig(t *testing.T) {
	c := newEmbedded(t)

	t.Run("stashed pathname", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
		r = r.WithContext(WithPathname(WithLocale(r.Context(), "en"), "/en/sign-in"))

		cfg, err := c.RequestConfig(r)
		require.NoError(t, err)
		assert.Equal(t, "en", cfg.Locale)
		assert.Contains(t, cfg.Namespaces, "pages.signIn")
		assert.Contains(t, cfg.Namespaces, "auth")
	})

	t.Run("computed from page path", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/es/dashboard", nil)
		cfg, err := c.RequestConfig(r)
		require.NoError(t, err)
		assert.Equal(t, "es", cfg.Locale)
		assert.Contains(t, cfg.Namespaces, "pages.dashboard")
		assert.NotContains(t, cfg.Namespaces, "components.footer")
	})

	t.Run("no pathname loads everything", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/messages", nil)
		cfg, err := c.RequestConfig(r)
		require.NoError(t, err)
		assert.Equal(t, DefaultLocale, cfg.Locale)
		assert.Empty(t, cfg.Namespaces)
		assert.Len(t, cfg.Messages["pages"].(map[string]any), 10)
	})
}
