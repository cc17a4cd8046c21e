package holidayhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/holiday"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Service *holiday.Service
	Audit   *audit.Service
}

func NewHandler(service *holiday.Service, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Audit: auditSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/holidays", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Post("/", h.handleCreate)
			r.Put("/{holidayID}", h.handleUpdate)
			r.Delete("/{holidayID}", h.handleDelete)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	holidays, err := h.Service.List(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load holidays", reqID)
		return
	}
	api.Success(w, holidays, reqID)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload struct {
		Date string `json:"date"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	date, err := shared.ParseDate(payload.Date)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_date", "invalid holiday date", reqID)
		return
	}

	created, err := h.Service.Create(r.Context(), date, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, holiday.ErrDuplicateDate):
			api.Fail(w, http.StatusConflict, "duplicate_date", err.Error(), reqID)
		case errors.Is(err, holiday.ErrInvalidName):
			api.Fail(w, http.StatusBadRequest, "invalid_name", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to create holiday", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionHolidayCreate, created.ID.String(), created.Name)
	api.Created(w, created, reqID)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "holidayID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid holiday id", reqID)
		return
	}

	var payload struct {
		Date string `json:"date"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	date, err := shared.ParseDate(payload.Date)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_date", "invalid holiday date", reqID)
		return
	}

	updated, err := h.Service.Update(r.Context(), id, date, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, holiday.ErrNotFound):
			api.Fail(w, http.StatusNotFound, "holiday_not_found", err.Error(), reqID)
		case errors.Is(err, holiday.ErrDuplicateDate):
			api.Fail(w, http.StatusConflict, "duplicate_date", err.Error(), reqID)
		case errors.Is(err, holiday.ErrInvalidName):
			api.Fail(w, http.StatusBadRequest, "invalid_name", err.Error(), reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to update holiday", reqID)
		}
		return
	}

	h.record(r, actor, audit.ActionHolidayUpdate, updated.ID.String(), updated.Name)
	api.Success(w, updated, reqID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "holidayID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid holiday id", reqID)
		return
	}

	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, holiday.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "holiday_not_found", err.Error(), reqID)
			return
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to delete holiday", reqID)
		return
	}

	h.record(r, actor, audit.ActionHolidayDelete, id.String(), "")
	api.Success(w, map[string]string{"status": "holiday deleted"}, reqID)
}

func (h *Handler) record(r *http.Request, actor auth.UserContext, action, entityID, detail string) {
	err := h.Audit.Record(r.Context(), &actor.UserID, actor.FullName, action, "public_holiday", entityID,
		detail, middleware.GetRequestID(r.Context()), shared.ClientIP(r))
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
