package handlers

import (
	"net/http"

	"github.com/rungomx/server/internal/api/middleware"
	"github.com/rungomx/server/internal/api/render"
)

type csrfTokenResponse struct {
	Token string `json:"token"`
}

// CSRFToken handles GET /api/v1/csrf-token. Browser clients send the token
// back in X-CSRF-Token on cookie-authenticated mutations.
func CSRFToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	render.OK(w, http.StatusOK, csrfTokenResponse{Token: middleware.CSRFToken(r)})
}
