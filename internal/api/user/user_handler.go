package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dbarbosa-dev/user-identity-service/internal/api"
	"github.com/dbarbosa-dev/user-identity-service/internal/api/auth"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListUsers(w http.ResponseWriter, r *http.Request)
	CreateUser(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	UpdateUser(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
	GetSelf(w http.ResponseWriter, r *http.Request)
	ReplaceSelf(w http.ResponseWriter, r *http.Request)
	PatchSelf(w http.ResponseWriter, r *http.Request)
	AssignRole(w http.ResponseWriter, r *http.Request)
	UnassignRole(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// callerID resolves the authenticated caller from the request context.
// Authentication middleware runs first on every route that reaches these
// handlers, so a miss here is an internal-consistency fault, answered with
// Unauthenticated rather than a crash.
func (h *HandlerImpl) callerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	ctx := r.Context()

	userIDStr, ok := auth.GetUserIDFromContext(ctx)
	if !ok || userIDStr == "" {
		h.logger.ErrorContext(ctx, "User ID not found in context")
		api.RespondError(w, r, api.ErrUnauthenticated)
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		h.logger.ErrorContext(ctx, "Invalid user ID in context", slog.Any("error", err))
		api.RespondError(w, r, api.ErrUnauthenticated)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *HandlerImpl) targetID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid user ID in path", slog.String("id", idStr))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.KindUserNotFound, "Invalid user ID format", nil)
		return uuid.Nil, false
	}
	return id, true
}

// ListUsers handles GET /users.
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	filter := UserFilter{Email: r.URL.Query().Get("email")}

	users, err := h.userService.ListUsers(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}
	if users == nil {
		users = []User{}
	}

	api.WriteJSONResponse(w, r, http.StatusOK, users)
}

// CreateUser handles POST /users.
func (h *HandlerImpl) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "CreateUser"))

	var payload UserWrite
	if err := api.DecodeJSONBody(w, r, &payload); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.KindMissingFields, err.Error(), nil)
		return
	}

	created, err := h.userService.CreateUser(ctx, payload)
	if err != nil {
		l.WarnContext(ctx, "Failed to create user", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, created)
}

// GetUser handles GET /users/{id}.
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetUser"))

	id, ok := h.targetID(w, r)
	if !ok {
		return
	}

	u, err := h.userService.GetUser(ctx, id)
	if err != nil {
		l.WarnContext(ctx, "Failed to fetch user", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// UpdateUser handles PUT /users/{id}.
func (h *HandlerImpl) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateUser"))

	id, ok := h.targetID(w, r)
	if !ok {
		return
	}

	var payload UserWrite
	if err := api.DecodeJSONBody(w, r, &payload); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.KindMissingFields, err.Error(), nil)
		return
	}

	updated, err := h.userService.UpdateUser(ctx, id, payload)
	if err != nil {
		l.WarnContext(ctx, "Failed to update user", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

// DeleteUser handles DELETE /users/{id}. Deleting your own account is
// forbidden regardless of permissions.
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}
	id, ok := h.targetID(w, r)
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(ctx, callerID, id); err != nil {
		l.WarnContext(ctx, "Failed to delete user", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusNoContent, nil)
}

// GetSelf handles GET /users/me. The target identifier is always the
// authenticated caller's; nothing the client supplies can change it.
func (h *HandlerImpl) GetSelf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetSelf"))

	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	u, err := h.userService.GetUser(ctx, callerID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch own user record", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, u)
}

// ReplaceSelf handles PUT /users/me.
func (h *HandlerImpl) ReplaceSelf(w http.ResponseWriter, r *http.Request) {
	h.updateSelf(w, r, true)
}

// PatchSelf handles PATCH /users/me.
func (h *HandlerImpl) PatchSelf(w http.ResponseWriter, r *http.Request) {
	h.updateSelf(w, r, false)
}

func (h *HandlerImpl) updateSelf(w http.ResponseWriter, r *http.Request, replace bool) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateSelf"))

	callerID, ok := h.callerID(w, r)
	if !ok {
		return
	}

	var payload UserWrite
	if err := api.DecodeJSONBody(w, r, &payload); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.KindMissingFields, err.Error(), nil)
		return
	}

	// Users cannot change their own enabled state.
	if payload.IsEnabled != nil {
		l.WarnContext(ctx, "Stripped isEnabled from self-service write")
		payload.IsEnabled = nil
	}

	if replace && (payload.Email == nil || *payload.Email == "") {
		api.RespondError(w, r, api.NewMissingFields("email"))
		return
	}

	updated, err := h.userService.UpdateUser(ctx, callerID, payload)
	if err != nil {
		l.WarnContext(ctx, "Failed to update own user record", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}

// AssignRole handles POST /users/role/assign.
func (h *HandlerImpl) AssignRole(w http.ResponseWriter, r *http.Request) {
	h.editRole(w, r, h.userService.AssignRole)
}

// UnassignRole handles POST /users/role/unassign.
func (h *HandlerImpl) UnassignRole(w http.ResponseWriter, r *http.Request) {
	h.editRole(w, r, h.userService.UnassignRole)
}

func (h *HandlerImpl) editRole(w http.ResponseWriter, r *http.Request, edit func(ctx context.Context, userID, role string) (*User, error)) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "EditRole"))

	var req RoleEditRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, api.KindMissingFields, err.Error(), nil)
		return
	}

	updated, err := edit(ctx, req.UserID, req.Role)
	if err != nil {
		l.WarnContext(ctx, "Role edit failed", slog.Any("error", err))
		api.RespondError(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, updated)
}
