package overtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/notifications"
	"leavedesk/internal/domain/policy"
	"leavedesk/internal/domain/user"
	"leavedesk/internal/platform/metrics"
	"leavedesk/internal/platform/storage"
)

var (
	ErrNotFound       = errors.New("overtime claim not found")
	ErrDuplicate      = errors.New("duplicate claim")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidState   = errors.New("claim state cannot be modified")
	ErrStatusConflict = errors.New("claim was changed concurrently, reload and retry")
	ErrForbidden      = errors.New("not allowed to act on this claim")
)

// Directory resolves identities referenced on claims.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

type PolicyAPI interface {
	Get(ctx context.Context) (policy.Policy, error)
}

type Attachments interface {
	Save(ctx context.Context, fileName, contentType string, data []byte) (storage.Attachment, error)
}

type Service struct {
	Store  StoreAPI
	Users  Directory
	Policy PolicyAPI
	Files  Attachments
	Notify *notifications.Service
}

func NewService(store StoreAPI, users Directory, pol PolicyAPI, files Attachments, notify *notifications.Service) *Service {
	return &Service{Store: store, Users: users, Policy: pol, Files: files, Notify: notify}
}

// Apply validates and persists a new claim. One active claim per
// employee, date and type; hour claims derive their value from the clock
// span, fixed units count as one.
func (s *Service) Apply(ctx context.Context, in ApplyInput) (Request, error) {
	in.OTType = strings.TrimSpace(in.OTType)
	in.OTUnit = strings.TrimSpace(in.OTUnit)
	if in.OTType == "" {
		return Request{}, fmt.Errorf("%w: overtime type is required", ErrInvalidInput)
	}
	if in.OTUnit == "" {
		in.OTUnit = UnitHours
	}
	if in.OTDate.IsZero() {
		return Request{}, fmt.Errorf("%w: overtime date is required", ErrInvalidInput)
	}

	employee, err := s.Users.GetByID(ctx, in.EmployeeID)
	if err != nil {
		return Request{}, err
	}
	manager, err := s.Users.GetByID(ctx, in.ApproverID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Request{}, fmt.Errorf("%w: approver not found", ErrInvalidInput)
		}
		return Request{}, err
	}

	if dup, err := s.Store.ActiveDuplicate(ctx, in.EmployeeID, in.OTDate, in.OTType); err == nil {
		return Request{}, fmt.Errorf("%w: you already have a %s claim for this date and type", ErrDuplicate, dup.Status)
	} else if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}

	total, err := TotalValue(in.OTUnit, in.StartTime, in.EndTime)
	if err != nil {
		return Request{}, err
	}

	attachmentRef := ""
	if in.Attachment != nil && in.Attachment.FileName != "" {
		att, err := s.Files.Save(ctx, in.Attachment.FileName, in.Attachment.ContentType, in.Attachment.Data)
		if err != nil {
			return Request{}, fmt.Errorf("store attachment: %w", err)
		}
		attachmentRef = att.Ref
	}

	created, err := s.Store.Insert(ctx, Request{
		EmployeeID:    in.EmployeeID,
		ApproverID:    in.ApproverID,
		OTDate:        in.OTDate,
		OTType:        in.OTType,
		OTUnit:        in.OTUnit,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		TotalValue:    total,
		Reason:        in.Reason,
		Status:        StatusPending,
		AttachmentRef: attachmentRef,
		StatusHistory: initialHistory(time.Now()),
	})
	if err != nil {
		return Request{}, err
	}
	created.EmployeeName = employee.FullName
	created.ApproverName = manager.FullName
	metrics.RecordOvertimeRequestCreated(in.OTType)

	s.Notify.OvertimeSubmitted(manager.Email, manager.FullName, employee.FullName,
		in.OTType, in.OTDate.Format(dateISO), durationLabel(created))

	return created, nil
}

// Act applies a manager decision. A first-stage approval escalates to the
// chosen second approver when the L2 policy is on and the actor is not a
// senior manager; everything else finalizes in place.
func (s *Service) Act(ctx context.Context, actor auth.UserContext, id uuid.UUID, in ActionInput) (Request, error) {
	if in.Decision != DecisionApproved && in.Decision != DecisionRejected {
		return Request{}, fmt.Errorf("%w: decision must be %s or %s", ErrInvalidInput, DecisionApproved, DecisionRejected)
	}

	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}

	pol, err := s.Policy.Get(ctx)
	if err != nil {
		return Request{}, err
	}
	employee, err := s.Users.GetByID(ctx, r.EmployeeID)
	if err != nil {
		return Request{}, err
	}

	now := time.Now()
	dateStr := r.OTDate.Format(dateISO)

	if in.Decision == DecisionApproved && pol.L2ApprovalEnabled && r.Status == StatusPending && !actor.SeniorManager {
		if in.L2ID == nil {
			return Request{}, fmt.Errorf("%w: a second approver must be selected", ErrInvalidInput)
		}
		l2, err := s.Users.GetByID(ctx, *in.L2ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return Request{}, fmt.Errorf("%w: second approver not found", ErrInvalidInput)
			}
			return Request{}, err
		}
		line := historyLine(fmt.Sprintf("L1 Approved by %s. Routed to %s", actor.FullName, l2.FullName), now)
		if err := s.Store.RouteToL2(ctx, id, r.Status, l2.ID, in.Remarks, line); err != nil {
			return Request{}, err
		}
		s.Notify.OvertimeL2Request(l2.Email, l2.FullName, actor.FullName, employee.FullName,
			r.OTType, dateStr, durationLabel(r))
		return s.Store.Get(ctx, id)
	}

	target := StatusApproved
	legend := "Final Approval by " + actor.FullName
	if in.Decision == DecisionRejected {
		target = StatusRejected
		legend = "Rejected by " + actor.FullName
	}
	if !r.Status.CanTransition(target) {
		return Request{}, fmt.Errorf("%w: cannot move a %s claim to %s", ErrInvalidState, r.Status, target)
	}
	if err := s.Store.Decide(ctx, id, r.Status, target, in.Remarks, historyLine(legend, now)); err != nil {
		return Request{}, err
	}

	remarks := in.Remarks
	if strings.TrimSpace(remarks) == "" {
		remarks = "No remarks provided."
	}
	s.Notify.OvertimeDecision(employee.Email, employee.FullName, actor.FullName,
		string(target), r.OTType, dateStr, remarks)

	return s.Store.Get(ctx, id)
}

// Cancel withdraws an in-flight claim. Decided claims stay decided.
func (s *Service) Cancel(ctx context.Context, actor auth.UserContext, id uuid.UUID) (Request, error) {
	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !actor.CanActFor(r.EmployeeID) {
		return Request{}, ErrForbidden
	}
	if !r.Status.CanTransition(StatusWithdrawn) {
		return Request{}, fmt.Errorf("%w: only pending claims can be withdrawn", ErrInvalidState)
	}
	line := historyLine("Withdrawn by Employee", time.Now())
	if err := s.Store.Withdraw(ctx, id, r.Status, line); err != nil {
		return Request{}, err
	}
	return s.Store.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.Store.Get(ctx, id)
}

// Mine lists the employee's own claims, newest date first.
func (s *Service) Mine(ctx context.Context, employeeID uuid.UUID) ([]Request, error) {
	return s.Store.ListByEmployee(ctx, employeeID)
}

// All is the admin audit view over every claim.
func (s *Service) All(ctx context.Context) ([]Request, error) {
	return s.Store.ListAll(ctx)
}

// Queue lists claims awaiting the approver at either stage.
func (s *Service) Queue(ctx context.Context, approverID uuid.UUID) ([]Request, error) {
	return s.Store.ManagerQueue(ctx, approverID)
}

func durationLabel(r Request) string {
	return r.TotalValue.String() + " " + r.OTUnit
}
