package handlers

import (
	"net/http"
	"strings"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/i18n"
)

// MessageCatalog resolves the locale and message bundle for a request.
type MessageCatalog interface {
	RequestConfig(r *http.Request) (*i18n.RequestConfig, error)
}

type MessagesHandler struct {
	catalog MessageCatalog
}

func NewMessagesHandler(catalog MessageCatalog) *MessagesHandler {
	return &MessagesHandler{catalog: catalog}
}

// Get handles GET /api/v1/messages. ?path= scopes the bundle to the
// namespaces that page loads; without it the full bundle is returned.
func (h *MessagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	if path := r.URL.Query().Get("path"); path != "" {
		if !strings.HasPrefix(path, "/") {
			render.Error(w, r, action.Invalid(map[string][]string{"path": {"must start with /"}}))
			return
		}
		r = r.WithContext(i18n.WithPathname(r.Context(), path))
	}
	h.serve(w, r)
}

// Page answers locale-prefixed page routes with their render configuration.
// The pathname comes from the Pages middleware.
func (h *MessagesHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r)
}

func (h *MessagesHandler) serve(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.catalog.RequestConfig(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	w.Header().Set("Content-Language", cfg.Locale)
	w.Header().Add("Vary", "Accept-Language, Cookie")
	render.OK(w, http.StatusOK, cfg)
}
