package leavehandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/audit"
	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

const (
	maxAttachmentBytes = 2 * 1024 * 1024
	maxMultipartMemory = 8 * 1024 * 1024
)

type Handler struct {
	Service     *leave.Service
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *leave.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Audit: auditSvc, Idempotency: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.Post("/requests", h.handleSubmit)
		r.Get("/requests", h.handleHistory)
		r.Get("/requests/{requestID}", h.handleGet)
		r.Post("/requests/{requestID}/cancel", h.handleCancel)
		r.Get("/balance", h.handleBalance)
		r.Get("/overview", h.handleOverview)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleManager, auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Post("/requests/{requestID}/action", h.handleAction)
			r.Get("/queue", h.handleQueue)
			r.Get("/all", h.handleAll)
			r.Get("/entitlements", h.handleEntitlements)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Get("/pending-l2", h.handlePendingL2)
			r.Post("/balances/adjust", h.handleAdjustBalances)
			r.Get("/carry-forward", h.handleCarryForwardList)
			r.Post("/carry-forward/merge", h.handleCarryForwardMerge)
		})
	})
}

// failDomain maps the leave package's sentinel errors onto the response
// envelope. Anything unrecognized is an internal error.
func failDomain(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, leave.ErrOverlap):
		api.Fail(w, http.StatusConflict, "overlapping_request", err.Error(), reqID)
	case errors.Is(err, leave.ErrInvalidDate):
		api.Fail(w, http.StatusBadRequest, "invalid_date", err.Error(), reqID)
	case errors.Is(err, leave.ErrInsufficientBalance):
		api.Fail(w, http.StatusBadRequest, "insufficient_balance", err.Error(), reqID)
	case errors.Is(err, leave.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), reqID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusBadRequest, "invalid_state", err.Error(), reqID)
	case errors.Is(err, leave.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), reqID)
	case errors.Is(err, leave.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), reqID)
	case errors.Is(err, leave.ErrEntitlementNotFound):
		api.Fail(w, http.StatusNotFound, "entitlement_not_found", err.Error(), reqID)
	case errors.Is(err, leave.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "request_not_found", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}

// handleSubmit accepts JSON or, when an attachment rides along,
// multipart form data. The employee is always the authenticated actor.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	input, err := h.decodeSubmit(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), reqID)
		return
	}
	input.EmployeeID = actor.UserID

	created, err := h.Service.Create(r.Context(), input)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) decodeSubmit(r *http.Request) (leave.CreateInput, error) {
	var input leave.CreateInput

	if mediaTypeIsMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return input, fmt.Errorf("invalid multipart payload")
		}
		approverID, err := uuid.Parse(r.FormValue("approverId"))
		if err != nil {
			return input, fmt.Errorf("invalid approver id")
		}
		start, err := shared.ParseDate(r.FormValue("startDate"))
		if err != nil {
			return input, fmt.Errorf("invalid start date")
		}
		end, err := shared.ParseDate(r.FormValue("endDate"))
		if err != nil {
			return input, fmt.Errorf("invalid end date")
		}
		input.ApproverID = approverID
		input.LeaveType = r.FormValue("leaveType")
		input.StartDate = start
		input.EndDate = end
		input.Reason = r.FormValue("reason")
		input.HalfDay = r.FormValue("halfDay") == "true"

		file, header, err := r.FormFile("attachment")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxAttachmentBytes+1))
			if err != nil {
				return input, fmt.Errorf("failed to read attachment")
			}
			if len(data) > maxAttachmentBytes {
				return input, fmt.Errorf("attachment exceeds %d bytes", maxAttachmentBytes)
			}
			input.Attachment = &leave.AttachmentData{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		}
		return input, nil
	}

	var payload struct {
		ApproverID string `json:"approverId"`
		LeaveType  string `json:"leaveType"`
		StartDate  string `json:"startDate"`
		EndDate    string `json:"endDate"`
		Reason     string `json:"reason"`
		HalfDay    bool   `json:"halfDay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return input, fmt.Errorf("invalid request payload")
	}
	approverID, err := uuid.Parse(payload.ApproverID)
	if err != nil {
		return input, fmt.Errorf("invalid approver id")
	}
	start, err := shared.ParseDate(payload.StartDate)
	if err != nil {
		return input, fmt.Errorf("invalid start date")
	}
	end, err := shared.ParseDate(payload.EndDate)
	if err != nil {
		return input, fmt.Errorf("invalid end date")
	}
	input.ApproverID = approverID
	input.LeaveType = payload.LeaveType
	input.StartDate = start
	input.EndDate = end
	input.Reason = payload.Reason
	input.HalfDay = payload.HalfDay
	return input, nil
}

func mediaTypeIsMultipart(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return len(ct) >= 19 && ct[:19] == "multipart/form-data"
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid request id", reqID)
		return
	}

	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if !canView(actor, req) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this request", reqID)
		return
	}
	api.Success(w, req, reqID)
}

// canView: the owner, either assigned approver, or an admin.
func canView(actor auth.UserContext, req leave.Request) bool {
	if actor.IsAdmin() || actor.UserID == req.EmployeeID || actor.UserID == req.ApproverID {
		return true
	}
	return req.ApproverL2ID != nil && actor.UserID == *req.ApproverL2ID
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	filter, err := historyFilter(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", err.Error(), reqID)
		return
	}

	page, err := h.Service.History(r.Context(), actor.UserID, filter)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, page, reqID)
}

func historyFilter(r *http.Request) (leave.HistoryFilter, error) {
	q := r.URL.Query()
	p := shared.ParsePagination(r)
	filter := leave.HistoryFilter{
		LeaveType: q.Get("leaveType"),
		Status:    q.Get("status"),
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
	if raw := q.Get("startDate"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid start date")
		}
		filter.StartDate = &d
	}
	if raw := q.Get("endDate"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid end date")
		}
		filter.EndDate = &d
	}
	if raw := q.Get("duration"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, fmt.Errorf("invalid duration")
		}
		filter.Duration = &d
	}
	return filter, nil
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid request id", reqID)
		return
	}

	req, err := h.Service.Get(r.Context(), id)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if !canAct(actor, req) {
		api.Fail(w, http.StatusForbidden, "forbidden", "request is not assigned to you", reqID)
		return
	}

	var payload struct {
		Decision string `json:"decision"`
		Remarks  string `json:"remarks"`
		L2ID     string `json:"l2Id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	input := leave.ActionInput{Decision: leave.Decision(payload.Decision), Remarks: payload.Remarks}
	if payload.L2ID != "" {
		l2, err := uuid.Parse(payload.L2ID)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid second approver id", reqID)
			return
		}
		input.L2ID = &l2
	}

	updated, err := h.Service.Act(r.Context(), actor, id, input)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

// canAct: the assigned L1 or L2 approver, or an admin override.
func canAct(actor auth.UserContext, req leave.Request) bool {
	if actor.IsAdmin() || actor.UserID == req.ApproverID {
		return true
	}
	return req.ApproverL2ID != nil && actor.UserID == *req.ApproverL2ID
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid request id", reqID)
		return
	}

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	updated, err := h.Service.Cancel(r.Context(), actor, id, payload.Reason)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	leaveType := r.URL.Query().Get("type")
	year := time.Now().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "invalid year", reqID)
			return
		}
		year = parsed
	}

	balance, err := h.Service.Balance(r.Context(), actor.UserID, year, leaveType)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, balance, reqID)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	overview, err := h.Service.Overview(r.Context(), actor.UserID)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, overview, reqID)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	q := r.URL.Query()
	p := shared.ParsePagination(r)
	filter := leave.QueueFilter{
		Search:    q.Get("search"),
		LeaveType: q.Get("leaveType"),
		Status:    q.Get("status"),
		Page:      p.Page,
		PageSize:  p.PageSize,
	}
	if raw := q.Get("startDate"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid start date", reqID)
			return
		}
		filter.StartDate = &d
	}
	if raw := q.Get("endDate"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid end date", reqID)
			return
		}
		filter.EndDate = &d
	}

	page, err := h.Service.ManagerQueue(r.Context(), actor.UserID, filter)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, page, reqID)
}

// handleAll is the decision archive. Admins see everything; managers see
// only requests they touched.
func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	q := r.URL.Query()
	filter := leave.AllFilter{
		Search: q.Get("search"),
		Status: q.Get("status"),
	}
	if raw := q.Get("startDate"); raw != "" {
		d, err := shared.ParseDate(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid start date", reqID)
			return
		}
		filter.StartDate = &d
	}
	if !actor.IsAdmin() {
		filter.ApproverID = &actor.UserID
		filter.ApproverName = actor.FullName
	}

	list, err := h.Service.All(r.Context(), filter)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handlePendingL2(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	list, err := h.Service.PendingL2(r.Context())
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, list, reqID)
}

func (h *Handler) handleEntitlements(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	rows, err := h.Service.TeamEntitlements(r.Context(), actor, r.URL.Query().Get("search"))
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, rows, reqID)
}

func (h *Handler) handleAdjustBalances(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	var payload leave.AdjustInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if payload.EmployeeID == uuid.Nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "employeeId is required", reqID)
		return
	}

	if err := h.Service.AdjustIndividual(r.Context(), payload); err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.record(r, actor, audit.ActionBalanceAdjust, "leave_balance", payload.EmployeeID.String(),
		fmt.Sprintf("year=%d", payload.Year))
	api.Success(w, map[string]string{"status": "balances adjusted"}, reqID)
}

func (h *Handler) handleCarryForwardList(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	q := r.URL.Query()
	filter := leave.CarryForwardFilter{
		Search: q.Get("search"),
		Merged: q.Get("merged") == "true",
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_year", "invalid year", reqID)
			return
		}
		filter.Year = year
	}

	rows, err := h.Service.CarryForwardList(r.Context(), filter)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, rows, reqID)
}

// handleCarryForwardMerge is replay-safe: an Idempotency-Key header makes
// a retried merge return the stored outcome instead of re-running.
func (h *Handler) handleCarryForwardMerge(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "failed to read payload", reqID)
		return
	}

	var payload struct {
		IDs []uuid.UUID `json:"ids"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	const endpoint = "leave.carry_forward_merge"
	idemKey := r.Header.Get("Idempotency-Key")
	requestHash := middleware.RequestHash(body)
	if idemKey != "" {
		stored, status, replay, err := h.Idempotency.Check(r.Context(), actor.UserID.String(), endpoint, idemKey, requestHash)
		if err != nil {
			if errors.Is(err, middleware.ErrIdempotencyConflict) {
				api.Fail(w, http.StatusConflict, "idempotency_conflict", err.Error(), reqID)
				return
			}
			api.Fail(w, http.StatusInternalServerError, "internal_error", "idempotency check failed", reqID)
			return
		}
		if replay {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write(stored)
			return
		}
	}

	merged, err := h.Service.MergeCarryForward(r.Context(), payload.IDs)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}

	h.record(r, actor, audit.ActionCarryForward, "leave_request", "",
		fmt.Sprintf("merged %d of %d", merged, len(payload.IDs)))

	result := api.Envelope{Success: true, Data: map[string]int{"mergedCount": merged}, RequestID: reqID}
	if idemKey != "" {
		encoded, err := json.Marshal(result)
		if err == nil {
			if err := h.Idempotency.Save(r.Context(), actor.UserID.String(), endpoint, idemKey, requestHash, http.StatusOK, encoded); err != nil {
				slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
			}
		}
	}
	api.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) record(r *http.Request, actor auth.UserContext, action, entity, entityID, detail string) {
	err := h.Audit.Record(r.Context(), &actor.UserID, actor.FullName, action, entity, entityID,
		detail, middleware.GetRequestID(r.Context()), shared.ClientIP(r))
	if err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}
