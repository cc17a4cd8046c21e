package overtimehandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/overtime"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

const (
	maxAttachmentBytes = 2 * 1024 * 1024
	maxMultipartMemory = 8 * 1024 * 1024
)

type Handler struct {
	Service *overtime.Service
}

func NewHandler(service *overtime.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/overtime", func(r chi.Router) {
		r.Post("/claims", h.handleApply)
		r.Get("/claims", h.handleMine)
		r.Get("/claims/{claimID}", h.handleGet)
		r.Post("/claims/{claimID}/cancel", h.handleCancel)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleManager, auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Post("/claims/{claimID}/action", h.handleAction)
			r.Get("/queue", h.handleQueue)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth.RoleHRAdmin, auth.RoleSuperuser))
			r.Get("/all", h.handleAll)
		})
	})
}

func failDomain(w http.ResponseWriter, err error, reqID string) {
	switch {
	case errors.Is(err, overtime.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_claim", err.Error(), reqID)
	case errors.Is(err, overtime.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_input", err.Error(), reqID)
	case errors.Is(err, overtime.ErrInvalidState):
		api.Fail(w, http.StatusBadRequest, "invalid_state", err.Error(), reqID)
	case errors.Is(err, overtime.ErrStatusConflict):
		api.Fail(w, http.StatusConflict, "status_conflict", err.Error(), reqID)
	case errors.Is(err, overtime.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), reqID)
	case errors.Is(err, overtime.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "claim_not_found", err.Error(), reqID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", reqID)
	}
}

func (h *Handler) handleApply(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	input, err := h.decodeApply(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", err.Error(), reqID)
		return
	}
	input.EmployeeID = actor.UserID

	created, err := h.Service.Apply(r.Context(), input)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Created(w, created, reqID)
}

func (h *Handler) decodeApply(r *http.Request) (overtime.ApplyInput, error) {
	var input overtime.ApplyInput

	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return input, fmt.Errorf("invalid multipart payload")
		}
		approverID, err := uuid.Parse(r.FormValue("approverId"))
		if err != nil {
			return input, fmt.Errorf("invalid approver id")
		}
		otDate, err := shared.ParseDate(r.FormValue("otDate"))
		if err != nil {
			return input, fmt.Errorf("invalid overtime date")
		}
		input.ApproverID = approverID
		input.OTDate = otDate
		input.OTType = r.FormValue("otType")
		input.OTUnit = r.FormValue("otUnit")
		input.StartTime = r.FormValue("startTime")
		input.EndTime = r.FormValue("endTime")
		input.Reason = r.FormValue("reason")

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
			input.Attachment = &overtime.AttachmentData{
				FileName:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			}
		}
		return input, nil
	}

	var payload struct {
		ApproverID string `json:"approverId"`
		OTDate     string `json:"otDate"`
		OTType     string `json:"otType"`
		OTUnit     string `json:"otUnit"`
		StartTime  string `json:"startTime"`
		EndTime    string `json:"endTime"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return input, fmt.Errorf("invalid request payload")
	}
	approverID, err := uuid.Parse(payload.ApproverID)
	if err != nil {
		return input, fmt.Errorf("invalid approver id")
	}
	otDate, err := shared.ParseDate(payload.OTDate)
	if err != nil {
		return input, fmt.Errorf("invalid overtime date")
	}
	input.ApproverID = approverID
	input.OTDate = otDate
	input.OTType = payload.OTType
	input.OTUnit = payload.OTUnit
	input.StartTime = payload.StartTime
	input.EndTime = payload.EndTime
	input.Reason = payload.Reason
	return input, nil
}

func (h *Handler) handleMine(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	claims, err := h.Service.Mine(r.Context(), actor.UserID)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, claims, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "claimID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid claim id", reqID)
		return
	}

	claim, err := h.Service.Get(r.Context(), id)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if !canView(actor, claim) {
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed to view this claim", reqID)
		return
	}
	api.Success(w, claim, reqID)
}

func canView(actor auth.UserContext, claim overtime.Request) bool {
	if actor.IsAdmin() || actor.UserID == claim.EmployeeID || actor.UserID == claim.ApproverID {
		return true
	}
	return claim.ApproverL2ID != nil && actor.UserID == *claim.ApproverL2ID
}

// canAct: the assigned L1 or L2 approver, or an admin override.
func canAct(actor auth.UserContext, claim overtime.Request) bool {
	if actor.IsAdmin() || actor.UserID == claim.ApproverID {
		return true
	}
	return claim.ApproverL2ID != nil && actor.UserID == *claim.ApproverL2ID
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "claimID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid claim id", reqID)
		return
	}

	claim, err := h.Service.Get(r.Context(), id)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	if !canAct(actor, claim) {
		api.Fail(w, http.StatusForbidden, "forbidden", "claim is not assigned to you", reqID)
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

	input := overtime.ActionInput{Decision: overtime.Decision(payload.Decision), Remarks: payload.Remarks}
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

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "claimID"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid claim id", reqID)
		return
	}

	updated, err := h.Service.Cancel(r.Context(), actor, id)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, updated, reqID)
}

func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, _ := middleware.GetUser(r.Context())

	claims, err := h.Service.Queue(r.Context(), actor.UserID)
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, claims, reqID)
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	claims, err := h.Service.All(r.Context())
	if err != nil {
		failDomain(w, err, reqID)
		return
	}
	api.Success(w, claims, reqID)
}
