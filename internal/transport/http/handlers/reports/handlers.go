package reportshandler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/reports"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
}

func NewHandler(service *reports.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
		r.Get("/leave-usage", h.handleLeaveUsage)
		r.Get("/overtime-usage", h.handleOvertimeUsage)
		r.Get("/job-runs", h.handleJobRuns)
		r.Get("/balance-summary.pdf", h.handleBalanceSummary)
	})
}

func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().Year(), nil
	}
	return strconv.Atoi(raw)
}

func (h *Handler) handleLeaveUsage(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	year, err := yearParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "invalid year", reqID)
		return
	}

	rows, err := h.Service.LeaveUsage(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to build leave usage report", reqID)
		return
	}
	api.Success(w, rows, reqID)
}

func (h *Handler) handleOvertimeUsage(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	year, err := yearParam(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_year", "invalid year", reqID)
		return
	}

	rows, err := h.Service.OvertimeUsage(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to build overtime usage report", reqID)
		return
	}
	api.Success(w, rows, reqID)
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	q := r.URL.Query()
	filter := reports.JobRunFilter{
		JobName: q.Get("job"),
		Status:  q.Get("status"),
	}
	if raw := q.Get("from"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid from date", reqID)
			return
		}
		filter.StartedFrom = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid to date", reqID)
			return
		}
		filter.StartedTo = &d
	}

	p := shared.ParsePagination(r)
	runs, total, err := h.Service.JobRuns(r.Context(), filter, p.PageSize, p.Offset())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to load job runs", reqID)
		return
	}
	api.Success(w, map[string]any{"total": total, "runs": runs}, reqID)
}

// handleBalanceSummary streams the generated PDF rather than wrapping it
// in the JSON envelope.
func (h *Handler) handleBalanceSummary(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	pdf, err := h.Service.BalanceSummaryPDF(r.Context(), actor)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "internal_error", "failed to generate report", reqID)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="balance-summary-%s.pdf"`, time.Now().Format("2006-01-02")))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	_, _ = w.Write(pdf)
}
