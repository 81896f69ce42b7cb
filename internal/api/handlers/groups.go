package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rungomx/server/internal/api/render"
	"github.com/rungomx/server/internal/auth"
	"github.com/rungomx/server/internal/domain/groups"
)

// GroupsService is the registration group surface used by the API.
type GroupsService interface {
	CreateGroup(ctx context.Context, userID string, input groups.CreateGroupInput) (*groups.CreatedGroup, error)
	JoinGroup(ctx context.Context, userID, token string) (*groups.JoinResult, error)
	LeaveGroup(ctx context.Context, userID, groupID string) error
	RemoveMember(ctx context.Context, userID, groupID, memberUserID string) error
	DisableGroup(ctx context.Context, userID, groupID string) error
	GetGroupOverview(ctx context.Context, token string) (*groups.Overview, error)
}

type GroupsHandler struct {
	service GroupsService
}

func NewGroupsHandler(service GroupsService) *GroupsHandler {
	return &GroupsHandler{service: service}
}

type joinRequest struct {
	Token string `json:"token"`
}

// Create handles POST /api/v1/registration-groups. The response carries the
// plaintext join token; it is never retrievable again.
func (h *GroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input groups.CreateGroupInput
	if err := decodeJSON(r, &input); err != nil {
		render.Error(w, r, err)
		return
	}

	created, err := h.service.CreateGroup(r.Context(), auth.UserID(r.Context()), input)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	render.OK(w, http.StatusCreated, created)
}

// Join handles POST /api/v1/registration-groups/join. The token travels in
// the body so it stays out of access logs.
func (h *GroupsHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	result, err := h.service.JoinGroup(r.Context(), auth.UserID(r.Context()), req.Token)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.OK(w, http.StatusOK, result)
}

// Overview handles GET /api/v1/registration-groups/by-token/{token}.
func (h *GroupsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.GetGroupOverview(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "private, no-store")
	render.OK(w, http.StatusOK, overview)
}

// Leave handles POST /api/v1/registration-groups/{groupID}/leave.
func (h *GroupsHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LeaveGroup(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupID")); err != nil {
		render.Error(w, r, err)
		return
	}
	done(w)
}

// RemoveMember handles DELETE /api/v1/registration-groups/{groupID}/members/{userID}.
func (h *GroupsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	err := h.service.RemoveMember(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupID"), chi.URLParam(r, "userID"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	done(w)
}

// Disable handles DELETE /api/v1/registration-groups/{groupID}.
func (h *GroupsHandler) Disable(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DisableGroup(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "groupID")); err != nil {
		render.Error(w, r, err)
		return
	}
	done(w)
}
