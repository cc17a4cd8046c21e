package policyhandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/policy"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Service *policy.Service
	Audit   *audit.Service
}

func NewHandler(service *policy.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/policy", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Put("/", h.handleUpdate)
		})
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	p, err := h.Service.Get(r.Context())
	if err != nil {
		if errors.Is(err, policy.ErrNotInitialized) {
			api.Fail(w, http.StatusNotFound, "policy_not_initialized", err.Error(), reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load policy", reqID)
		return
	}
	api.Success(w, p, reqID)
}

// handleUpdate changes the global entitlement defaults and reports how
// many current-year balances were synced to the new values.
func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var input policy.UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	updated, synced, err := h.Service.Update(r.Context(), input)
	if err != nil {
		if errors.Is(err, policy.ErrInvalidDays) {
			api.Fail(w, http.StatusBadRequest, "invalid_days", err.Error(), reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to update policy", reqID)
		return
	}

	if err := h.Audit.Record(r.Context(), &actor.UserID, actor.FullName, audit.ActionPolicyUpdate,
		"global_policy", "1", fmt.Sprintf("synced %d balances", synced),
		reqID, shared.ClientIP(r)); err != nil {
		slog.Warn("audit record failed", "action", audit.ActionPolicyUpdate, "err", err)
	}

	api.Success(w, map[string]any{"policy": updated, "syncedBalances": synced}, reqID)
}
