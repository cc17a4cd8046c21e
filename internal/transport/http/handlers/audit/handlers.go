package audithandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
		r.Get("/events", h.handleList)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	q := r.URL.Query()
	filter := audit.Filter{
		Action: q.Get("action"),
		Entity: q.Get("entity"),
		Actor:  q.Get("actor"),
	}

	total, err := h.Service.Count(r.Context(), filter)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to count audit events", reqID)
		return
	}

	p := shared.ParsePagination(r)
	events, err := h.Service.List(r.Context(), filter, p.PageSize, p.Offset())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load audit events", reqID)
		return
	}
	api.Success(w, map[string]any{"total": total, "events": events}, reqID)
}
