package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/domain/redirects"
)

type RedirectResolver interface {
	Resolve(ctx context.Context, seriesSlug, editionSlug string) (*redirects.Resolution, error)
}

type RedirectsHandler struct {
	resolver RedirectResolver
}

func NewRedirectsHandler(resolver RedirectResolver) *RedirectsHandler {
	return &RedirectsHandler{resolver: resolver}
}

// Resolve handles GET /api/v1/event-redirects/{seriesSlug}/{editionSlug}.
// Pairs without a usable redirect answer ok with no data, so clients fall
// through to their own not-found handling.
func (h *RedirectsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	resolution, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "seriesSlug"), chi.URLParam(r, "editionSlug"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	render.OK(w, http.StatusOK, resolution)
}
