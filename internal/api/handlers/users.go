package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/auth"
	"github.com/rungomx/server/internal/domain/users"
)

type UserDeleter interface {
	DeleteUser(ctx context.Context, actorID, targetID string) (*users.DeletionCounts, error)
}

type UsersHandler struct {
	service      UserDeleter
	cookieSecure bool
}

func NewUsersHandler(service UserDeleter, cookieSecure bool) *UsersHandler {
	return &UsersHandler{service: service, cookieSecure: cookieSecure}
}

// Delete handles DELETE /api/v1/users/{userID}. Deleting your own account
// also clears the session cookie, since its session row is gone.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actorID := auth.UserID(r.Context())
	targetID := chi.URLParam(r, "userID")

	counts, err := h.service.DeleteUser(r.Context(), actorID, targetID)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if actorID == targetID {
		http.SetCookie(w, &http.Cookie{
			Name:     auth.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	render.OK(w, http.StatusOK, counts)
}
