package usershandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/user"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

// Provisioner creates the wallet rows a freshly registered employee
// needs; registration must never leave an account without balances.
type Provisioner interface {
	EnsureBalances(ctx context.Context, employeeID uuid.UUID, year int) error
}

type Handler struct {
	Users     *user.Service
	Provision Provisioner
	Audit     *audit.Service
}

func NewHandler(users *user.Service, provision Provisioner, auditSvc *audit.Service) *Handler {
	return &Handler{Users: users, Provision: provision, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/users", func(r chi.Router) {
		r.Get("/approvers", h.handleApprovers)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Get("/", h.handleList)
			r.Post("/", h.handleCreate)
			r.Get("/next-employee-code", h.handleNextEmployeeCode)
			r.Put("/{userID}/role", h.handleSetRole)
			r.Put("/{userID}/status", h.handleSetActive)
			r.Post("/{userID}/reset-password", h.handleResetPassword)
		})

		r.Get("/{userID}", h.handleGet)
		r.Put("/{userID}/profile", h.handleUpdateProfile)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	filter := user.ListFilter{
		Role:   r.URL.Query().Get("role"),
		Search: r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	list, err := h.Users.List(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "users_list_failed", "failed to list users", reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleApprovers(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if _, ok := middleware.GetUser(r.Context()); !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	list, err := h.Users.Approvers(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "approvers_failed", "failed to list approvers", reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload user.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Require("username", payload.Username)
	v.Require("fullName", payload.FullName)
	v.Require("password", payload.Password)
	v.OneOf("role", payload.Role, auth.RoleEmployee, auth.RoleManager, auth.RoleHRAdmin)
	if v.Reject(w, reqID) {
		return
	}

	created, err := h.Users.Create(r.Context(), payload)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrAlreadyExists):
			api.Fail(w, http.StatusConflict, "user_exists", err.Error(), reqID)
		case errors.Is(err, user.ErrWeakPassword), errors.Is(err, user.ErrInvalidRole), errors.Is(err, user.ErrInvalidInput):
			api.Fail(w, http.StatusBadRequest, "invalid_user", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "user_create_failed", "failed to create user", reqID)
		}
		return
	}

	if err := h.Provision.EnsureBalances(r.Context(), created.ID, time.Now().Year()); err != nil {
		slog.Warn("balance provisioning at registration failed", "userId", created.ID, "err", err)
	}

	h.record(r, actor, audit.ActionRoleUpdate, "user", created.ID.String(),
		fmt.Sprintf("registered %s (%s)", created.Username, created.Role))
	api.Created(w, created, reqID)
}

func (h *Handler) handleNextEmployeeCode(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	code, err := h.Users.NextEmployeeCode(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_code_failed", "failed to compute next employee code", reqID)
		return
	}
	api.Success(w, map[string]string{"employeeCode": code}, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", reqID)
		return
	}
	if actor.UserID != id && !actor.IsAdmin() {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot view another user's profile", reqID)
		return
	}

	u, err := h.Users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "user_get_failed", "failed to load user", reqID)
		return
	}
	api.Success(w, u, reqID)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", reqID)
		return
	}
	if actor.UserID != id && !actor.IsAdmin() {
		api.Fail(w, http.StatusForbidden, "forbidden", "cannot edit another user's profile", reqID)
		return
	}

	var payload user.ProfileInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	updated, err := h.Users.UpdateProfile(r.Context(), id, payload)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
		case errors.Is(err, user.ErrInvalidInput):
			api.Fail(w, http.StatusBadRequest, "invalid_profile", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "profile_update_failed", "failed to update profile", reqID)
		}
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleSetRole(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", reqID)
		return
	}

	var payload struct {
		Role          string `json:"role"`
		SeniorManager bool   `json:"seniorManager"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	result, err := h.Users.SetRole(r.Context(), actor, id, payload.Role, payload.SeniorManager)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
		case errors.Is(err, user.ErrInvalidRole):
			api.Fail(w, http.StatusBadRequest, "invalid_role", err.Error(), reqID)
		case errors.Is(err, user.ErrLastAdmin), errors.Is(err, user.ErrSelfChange), errors.Is(err, user.ErrInactiveTarget):
			api.Fail(w, http.StatusConflict, "role_change_blocked", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "role_update_failed", "failed to update role", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionRoleUpdate, "user", id.String(),
		fmt.Sprintf("role=%s senior=%t reassigned=%d", payload.Role, payload.SeniorManager, result.Reassigned))
	api.Success(w, result, reqID)
}

func (h *Handler) handleSetActive(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", reqID)
		return
	}

	var payload struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	updated, err := h.Users.SetActive(r.Context(), actor, id, payload.Active)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
		case errors.Is(err, user.ErrLastAdmin), errors.Is(err, user.ErrSelfChange):
			api.Fail(w, http.StatusConflict, "status_change_blocked", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "status_update_failed", "failed to update account status", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionUserStatus, "user", id.String(), fmt.Sprintf("active=%t", payload.Active))
	api.Success(w, updated, reqID)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid user id", reqID)
		return
	}

	var payload struct {
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	if err := h.Users.ResetPassword(r.Context(), id, payload.NewPassword); err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "user_not_found", "user not found", reqID)
		case errors.Is(err, user.ErrWeakPassword):
			api.Fail(w, http.StatusBadRequest, "weak_password", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "password_reset_failed", "failed to reset password", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionPasswordReset, "user", id.String(), "administrative password reset")
	api.Success(w, map[string]string{"status": "password reset"}, reqID)
}

func (h *Handler) record(r *http.Request, actor auth.UserContext, action, entity, entityID, detail string) {
	err := h.Audit.Record(r.Context(), &actor.UserID, actor.FullName, action, entity, entityID,
		detail, middleware.GetRequestID(r.Context()), shared.ClientIP(r))
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
