package settingshandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/settings"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Service *settings.Service
	Audit   *audit.Service
}

func NewHandler(service *settings.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

// RegisterPublicRoutes mounts the endpoints the login screen needs
// before authentication.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/settings/branding", h.handleBranding)
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/settings", func(r chi.Router) {
		r.Get("/carry-forward", h.handleCarryForward)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Put("/carry-forward", h.handleSetCarryForward)
			r.Put("/carry-forward/rules", h.handleSetCarryForwardRules)
			r.Put("/branding", h.handleSaveBranding)
		})
	})
}

func (h *Handler) handleCarryForward(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	cfg, err := h.Service.CarryForward(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load carry forward settings", reqID)
		return
	}
	api.Success(w, cfg, reqID)
}

// handleSetCarryForward flips the global carry-forward switch. A disable
// with active carry-forward requests in flight comes back with
// cleanupNeeded=true until the caller confirms.
func (h *Handler) handleSetCarryForward(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var toggle settings.CarryForwardToggle
	if err := json.NewDecoder(r.Body).Decode(&toggle); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	outcome, err := h.Service.SetCarryForward(r.Context(), toggle)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to update carry forward settings", reqID)
		return
	}

	if !outcome.CleanupNeeded {
		h.record(r, actor, audit.ActionSettingsUpdate, settings.KeyCarryForwardEnabled,
			fmt.Sprintf("enabled=%t cancelled=%d", outcome.Enabled, outcome.Cancelled))
	}
	api.Success(w, outcome, reqID)
}

func (h *Handler) handleSetCarryForwardRules(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload struct {
		MaxDays    decimal.Decimal `json:"maxDays"`
		ExpiryDate string          `json:"expiryDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	if err := h.Service.SetCarryForwardRules(r.Context(), payload.MaxDays, payload.ExpiryDate); err != nil {
		switch {
		case errors.Is(err, settings.ErrInvalidMaxDays):
			api.Fail(w, http.StatusBadRequest, "invalid_max_days", err.Error(), reqID)
		case errors.Is(err, settings.ErrInvalidExpiry):
			api.Fail(w, http.StatusBadRequest, "invalid_expiry", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to update carry forward rules", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionSettingsUpdate, settings.KeyCFMaxDays,
		fmt.Sprintf("maxDays=%s expiry=%s", payload.MaxDays, payload.ExpiryDate))
	api.Success(w, map[string]string{"status": "rules updated"}, reqID)
}

func (h *Handler) handleBranding(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	branding, err := h.Service.Branding(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load branding", reqID)
		return
	}
	api.Success(w, branding, reqID)
}

func (h *Handler) handleSaveBranding(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var input settings.BrandingInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	if err := h.Service.SaveBranding(r.Context(), input); err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to save branding", reqID)
		return
	}

	h.record(r, actor, audit.ActionBrandingUpdate, settings.KeyCompanyName, "branding updated")
	api.Success(w, map[string]string{"status": "branding saved"}, reqID)
}

func (h *Handler) record(r *http.Request, actor auth.UserContext, action, key, detail string) {
	err := h.Audit.Record(r.Context(), &actor.UserID, actor.FullName, action, "system_setting", key,
		detail, middleware.GetRequestID(r.Context()), shared.ClientIP(r))
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
