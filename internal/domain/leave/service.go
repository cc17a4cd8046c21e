package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/notifications"
	"leavedesk/internal/domain/policy"
	"leavedesk/internal/domain/user"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/platform/metrics"
	"leavedesk/internal/platform/storage"
)

var (
	ErrNotFound            = errors.New("leave request not found")
	ErrEntitlementNotFound = errors.New("entitlement not found")
	ErrOverlap             = errors.New("overlapping request")
	ErrInvalidDate         = errors.New("invalid date selection")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("request state cannot be modified")
	ErrStatusConflict      = errors.New("request was changed concurrently, reload and retry")
	ErrForbidden           = errors.New("not allowed to act on this request")
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Directory resolves identities referenced on requests.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
}

type PolicyAPI interface {
	Get(ctx context.Context) (policy.Policy, error)
}

// Calendar supplies public holidays as a YYYY-MM-DD keyed map.
type Calendar interface {
	Between(ctx context.Context, start, end time.Time) (map[string]string, error)
}

type Attachments interface {
	Save(ctx context.Context, fileName, contentType string, data []byte) (storage.Attachment, error)
}

type Service struct {
	Store  StoreAPI
	Users  Directory
	Policy PolicyAPI
	Cal    Calendar
	Files  Attachments
	Jobs   *jobs.Service
	Notify *notifications.Service
}

func NewService(store StoreAPI, users Directory, pol PolicyAPI, cal Calendar, files Attachments, jobSvc *jobs.Service, notify *notifications.Service) *Service {
	return &Service{Store: store, Users: users, Policy: pol, Cal: cal, Files: files, Jobs: jobSvc, Notify: notify}
}

// calculateShared produces the wallet view for one bucket. Annual and
// Emergency requests drain the shared Annual wallet; a carry-forward tag
// on an annual request overrides its cost with the declared amount.
// includePending is accepted for call-site clarity; both modes count the
// full in-flight status set today.
func (s *Service) calculateShared(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, includePending bool) (Balance, error) {
	bucket, countedTypes := Bucket(leaveType)

	row, err := s.Store.BalanceRow(ctx, employeeID, year, bucket)
	if err != nil {
		return Balance{}, err
	}

	consumption, err := s.Store.Consumption(ctx, employeeID, year, countedTypes, activeStatuses)
	if err != nil {
		return Balance{}, err
	}

	taken := decimal.Zero
	pending := decimal.Zero
	for _, c := range consumption {
		days := c.Days
		if c.LeaveType == policy.TypeAnnual {
			if cf, ok := CarryForwardDays(c.Reason); ok {
				days = cf
			}
		}
		if pendingStatuses[c.Status] {
			pending = pending.Add(days)
		}
		taken = taken.Add(days)
	}

	return Balance{
		EmployeeID:        employeeID,
		Year:              year,
		LeaveType:         bucket,
		Entitlement:       row.Entitlement,
		CarryForwardTotal: row.CarryForwardTotal,
		Remaining:         row.Entitlement.Add(row.CarryForwardTotal).Sub(taken),
		Taken:             taken,
		PendingTotal:      pending,
	}, nil
}

// Balance is the display-mode wallet read, provisioning lazily first.
func (s *Service) Balance(ctx context.Context, employeeID uuid.UUID, year int, leaveType string) (Balance, error) {
	if !policy.ValidType(leaveType) {
		return Balance{}, fmt.Errorf("%w: unknown leave type %q", ErrInvalidInput, leaveType)
	}
	if err := s.EnsureBalances(ctx, employeeID, year); err != nil {
		return Balance{}, err
	}
	return s.calculateShared(ctx, employeeID, year, leaveType, false)
}

func (s *Service) validationBalance(ctx context.Context, employeeID uuid.UUID, year int, leaveType string) (Balance, error) {
	if err := s.EnsureBalances(ctx, employeeID, year); err != nil {
		return Balance{}, err
	}
	return s.calculateShared(ctx, employeeID, year, leaveType, true)
}

// Create validates and persists a new request. Checks run in a fixed
// order so the caller always gets the most specific failure: collision,
// then calendar, then duration, then balance.
func (s *Service) Create(ctx context.Context, in CreateInput) (Request, error) {
	in.LeaveType = strings.TrimSpace(in.LeaveType)
	if !policy.ValidType(in.LeaveType) {
		return Request{}, fmt.Errorf("%w: unknown leave type %q", ErrInvalidInput, in.LeaveType)
	}
	if in.EndDate.Before(in.StartDate) {
		return Request{}, fmt.Errorf("%w: end date is before start date", ErrInvalidInput)
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

	start, end := in.StartDate, in.EndDate
	if in.HalfDay {
		end = start
	}

	if collision, err := s.Store.ActiveOverlap(ctx, in.EmployeeID, start, end); err == nil {
		label := "Leave"
		if IsCarryForward(collision.Reason) {
			label = "Carry Forward"
		}
		return Request{}, fmt.Errorf("%w: a %s request (%s) already covers %s to %s",
			ErrOverlap, label, collision.Status,
			collision.StartDate.Format(dateISO), collision.EndDate.Format(dateISO))
	} else if !errors.Is(err, ErrNotFound) {
		return Request{}, err
	}

	holidays, err := s.Cal.Between(ctx, start, end)
	if err != nil {
		return Request{}, err
	}
	for _, d := range []time.Time{start, end} {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return Request{}, fmt.Errorf("%w: %s (%s) is a weekend", ErrInvalidDate, d.Format(dateISO), wd)
		}
		if name, ok := holidays[d.Format(dateISO)]; ok {
			return Request{}, fmt.Errorf("%w: %s is %s", ErrInvalidDate, d.Format(dateISO), name)
		}
	}

	var days decimal.Decimal
	if in.HalfDay {
		days = decimal.NewFromFloat(0.5)
	} else {
		days = decimal.NewFromInt(int64(WorkingDays(start, end, holidays)))
	}

	year := start.Year()
	isCF := IsCarryForward(in.Reason)
	switch {
	case isCF:
		cost := days
		if tagged, ok := CarryForwardDays(in.Reason); ok {
			cost = tagged
		}
		bal, err := s.validationBalance(ctx, in.EmployeeID, year, policy.TypeAnnual)
		if err != nil {
			return Request{}, err
		}
		if cost.GreaterThan(bal.Remaining) {
			return Request{}, fmt.Errorf("%w: you have %s Annual Leave days but attempted to carry forward %s",
				ErrInsufficientBalance, bal.Remaining, cost)
		}
	case in.LeaveType != policy.TypeUnpaid:
		bal, err := s.validationBalance(ctx, in.EmployeeID, year, in.LeaveType)
		if err != nil {
			return Request{}, err
		}
		if bal.Remaining.LessThan(days) {
			return Request{}, fmt.Errorf("%w: remaining %s", ErrInsufficientBalance, bal.Remaining)
		}
	default:
		if err := s.EnsureBalances(ctx, in.EmployeeID, year); err != nil {
			return Request{}, err
		}
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
		LeaveType:     in.LeaveType,
		StartDate:     start,
		EndDate:       end,
		Reason:        in.Reason,
		Status:        StatusPending,
		DaysTaken:     days,
		AttachmentRef: attachmentRef,
		StatusHistory: initialHistory(time.Now()),
	})
	if err != nil {
		if errors.Is(err, ErrOverlap) {
			return Request{}, fmt.Errorf("%w: another request for these dates was submitted first", ErrOverlap)
		}
		return Request{}, err
	}
	created.EmployeeName = employee.FullName
	created.ApproverName = manager.FullName
	metrics.RecordLeaveRequestCreated(in.LeaveType)

	startStr, endStr, daysStr := start.Format(dateISO), end.Format(dateISO), days.String()
	if in.LeaveType == policy.TypeMedical {
		s.Notify.MedicalLeaveSubmitted(manager.Email, manager.FullName, employee.FullName, startStr, endStr, daysStr)
	} else {
		displayType := in.LeaveType
		if isCF {
			displayType = "Carry Forward"
		}
		s.Notify.LeaveSubmitted(manager.Email, manager.FullName, employee.FullName, displayType, startStr, endStr, daysStr)
	}

	return created, nil
}

// Act applies a manager decision. The routing table decides whether the
// step finalizes or escalates; the conditional store update serializes
// concurrent actions on the same request.
func (s *Service) Act(ctx context.Context, actor auth.UserContext, id uuid.UUID, in ActionInput) (Request, error) {
	if in.Decision != DecisionApproved && in.Decision != DecisionRejected {
		return Request{}, fmt.Errorf("%w: decision must be %s or %s", ErrInvalidInput, DecisionApproved, DecisionRejected)
	}

	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	switch r.Status {
	case StatusPending, StatusPendingL2, StatusPendingCancel:
	default:
		return Request{}, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}

	pol, err := s.Policy.Get(ctx)
	if err != nil {
		return Request{}, err
	}
	employee, err := s.Users.GetByID(ctx, r.EmployeeID)
	if err != nil {
		return Request{}, err
	}

	journey := JourneyOf(r.Status, r.StatusHistory)

	// A stale assigned L2 (deactivated or demoted since routing) falls
	// through to finalization instead of orphaning the cancellation.
	l2Valid := false
	var assignedL2 user.User
	if r.ApproverL2ID != nil {
		u, err := s.Users.GetByID(ctx, *r.ApproverL2ID)
		switch {
		case err == nil:
			assignedL2 = u
			l2Valid = u.IsActive && u.SeniorManager
		case !errors.Is(err, user.ErrNotFound):
			return Request{}, err
		}
	}

	var chosenL2 user.User
	l2Chosen := false
	if journey == JourneyNormal && in.Decision == DecisionApproved && in.L2ID != nil && r.Status == StatusPending {
		u, err := s.Users.GetByID(ctx, *in.L2ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return Request{}, fmt.Errorf("%w: second approver not found", ErrInvalidInput)
			}
			return Request{}, err
		}
		chosenL2 = u
		l2Chosen = true
	}

	outcome := Decide(DecisionInput{
		Journey:       journey,
		Decision:      in.Decision,
		Status:        r.Status,
		L2Enabled:     pol.L2ApprovalEnabled,
		ActorIsHR:     actor.Role == auth.RoleHRAdmin,
		ActorIsSenior: actor.SeniorManager,
		ActingAsL1:    actor.UserID == r.ApproverID,
		L2Assigned:    r.ApproverL2ID != nil,
		L2Valid:       l2Valid,
		L2Chosen:      l2Chosen,
	})

	var target Status
	switch outcome {
	case OutcomeRouteCancelToL2, OutcomeRouteToL2:
		target = StatusPendingL2
	case OutcomeFinalizeCancel:
		target = StatusCancelled
	case OutcomeRevertCancel, OutcomeApprove:
		target = StatusApproved
	case OutcomeReject:
		target = StatusRejected
	}
	if !r.Status.CanTransition(target) {
		return Request{}, fmt.Errorf("%w: cannot move a %s request to %s", ErrInvalidState, r.Status, target)
	}

	now := time.Now()
	startStr, endStr := r.StartDate.Format(dateISO), r.EndDate.Format(dateISO)

	switch outcome {
	case OutcomeRouteCancelToL2:
		line := historyLine("L1 Approved Cancellation. Routed to "+assignedL2.FullName, now, in.Remarks)
		if err := s.Store.Transition(ctx, id, r.Status, StatusPendingL2, line); err != nil {
			return Request{}, err
		}
		s.Notify.CancellationL2Request(assignedL2.Email, assignedL2.FullName, actor.FullName, employee.FullName, r.LeaveType, startStr, endStr)

	case OutcomeFinalizeCancel:
		legend := "Cancellation FINALIZED"
		if actor.Role == auth.RoleHRAdmin {
			legend += " by HR Admin"
		}
		legend += " by " + actor.FullName
		if err := s.Store.FinalizeCancel(ctx, id, r.Status, historyLine(legend, now, in.Remarks)); err != nil {
			return Request{}, err
		}
		s.Notify.CancellationApproved(employee.Email, employee.FullName, actor.FullName, r.LeaveType, startStr, endStr)

	case OutcomeRevertCancel:
		line := historyLine("Cancellation REJECTED by "+actor.FullName, now, in.Remarks)
		if err := s.Store.Transition(ctx, id, r.Status, StatusApproved, line); err != nil {
			return Request{}, err
		}
		s.Notify.CancellationRejected(employee.Email, employee.FullName, actor.FullName, r.LeaveType, startStr, endStr, in.Remarks)

	case OutcomeRouteToL2:
		line := historyLine("L1 Approved. Routed to "+chosenL2.FullName, now, in.Remarks)
		if err := s.Store.RouteToL2(ctx, id, r.Status, chosenL2.ID, line); err != nil {
			return Request{}, err
		}
		s.Notify.LeaveL2Request(chosenL2.Email, chosenL2.FullName, actor.FullName, employee.FullName, r.LeaveType, startStr, endStr)

	case OutcomeApprove:
		line := historyLine("Fully Approved by "+actor.FullName, now, in.Remarks)
		if err := s.Store.Approve(ctx, id, r.Status, line); err != nil {
			return Request{}, err
		}
		s.Notify.LeaveApproved(employee.Email, employee.FullName, actor.FullName, r.LeaveType, startStr, endStr)

	case OutcomeReject:
		line := historyLine("Rejected by "+actor.FullName, now, in.Remarks)
		if err := s.Store.Reject(ctx, id, r.Status, line); err != nil {
			return Request{}, err
		}
		s.Notify.LeaveRejected(employee.Email, employee.FullName, actor.FullName, r.LeaveType, startStr, endStr, in.Remarks)
	}

	return s.Store.Get(ctx, id)
}

// Cancel is the employee-side exit: a pending request withdraws
// immediately, an approved or L2-staged one starts the cancellation
// journey back through its approver.
func (s *Service) Cancel(ctx context.Context, actor auth.UserContext, id uuid.UUID, reason string) (Request, error) {
	r, err := s.Store.Get(ctx, id)
	if err != nil {
		return Request{}, err
	}
	if !actor.CanActFor(r.EmployeeID) {
		return Request{}, ErrForbidden
	}

	now := time.Now()
	switch r.Status {
	case StatusPending:
		line := historyLine("Withdrawn by Employee", now, "")
		if err := s.Store.Transition(ctx, id, StatusPending, StatusWithdrawn, line); err != nil {
			return Request{}, err
		}

	case StatusApproved, StatusPendingL2:
		if strings.TrimSpace(reason) == "" {
			reason = "No reason provided"
		}
		line := historyLine(fmt.Sprintf("Cancellation Requested by Employee (Reason: %s)", reason), now, "")
		if err := s.Store.Transition(ctx, id, r.Status, StatusPendingCancel, line); err != nil {
			return Request{}, err
		}
		if manager, err := s.Users.GetByID(ctx, r.ApproverID); err == nil {
			s.Notify.CancellationRequested(manager.Email, manager.FullName, r.EmployeeName, r.LeaveType,
				r.StartDate.Format(dateISO), r.EndDate.Format(dateISO), reason)
		}

	default:
		return Request{}, fmt.Errorf("%w: request is %s", ErrInvalidState, r.Status)
	}

	return s.Store.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) History(ctx context.Context, employeeID uuid.UUID, f HistoryFilter) (Page, error) {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
	list, total, err := s.Store.ListByEmployee(ctx, employeeID, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Total: total, Pages: pageCount(total, f.PageSize), Requests: list}, nil
}

func (s *Service) ManagerQueue(ctx context.Context, approverID uuid.UUID, f QueueFilter) (Page, error) {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
	list, total, err := s.Store.ManagerQueue(ctx, approverID, f)
	if err != nil {
		return Page{}, err
	}
	return Page{Total: total, Pages: pageCount(total, f.PageSize), Requests: list}, nil
}

func (s *Service) All(ctx context.Context, f AllFilter) ([]Request, error) {
	return s.Store.ListAll(ctx, f)
}

func (s *Service) PendingL2(ctx context.Context) ([]Request, error) {
	return s.Store.PendingL2(ctx)
}

// Overview assembles the employee dashboard for the current year.
func (s *Service) Overview(ctx context.Context, employeeID uuid.UUID) (Overview, error) {
	year := time.Now().Year()
	if err := s.EnsureBalances(ctx, employeeID, year); err != nil {
		return Overview{}, err
	}

	balances, err := s.Store.BalanceRows(ctx, employeeID, year)
	if err != nil {
		return Overview{}, err
	}
	entitlements := make([]EntitlementSlice, 0, len(balances))
	for _, b := range balances {
		entitlements = append(entitlements, EntitlementSlice{Type: b.LeaveType, Days: b.Entitlement})
	}

	requests, err := s.Store.ListYear(ctx, employeeID, year)
	if err != nil {
		return Overview{}, err
	}
	unpaid, err := s.Store.UnpaidApprovedTotal(ctx, employeeID, year)
	if err != nil {
		return Overview{}, err
	}

	cfTotal := decimal.Zero
	logs := make([]OverviewLog, 0, len(requests))
	for _, r := range requests {
		days := r.DaysTaken
		isCF := IsCarryForward(r.Reason)
		if isCF {
			if v, ok := CarryForwardDays(r.Reason); ok {
				days = v
				if r.Status == StatusApproved {
					cfTotal = cfTotal.Add(v)
				}
			}
		}
		action, displayStatus := ClassifyLog(r.Status, r.StatusHistory, r.Reason)
		logs = append(logs, OverviewLog{
			ID:        r.ID,
			Date:      r.StartDate.Format(dateISO),
			Action:    action,
			LeaveType: r.LeaveType,
			Days:      days,
			Status:    displayStatus,
			Reason:    r.Reason,
			IsCF:      isCF,
		})
	}

	return Overview{Entitlements: entitlements, Logs: logs, UnpaidTotal: unpaid, CFTotal: cfTotal}, nil
}

// TeamEntitlements is the approver-facing balance report. Admins see
// every wallet holder; managers see their reporting scope. Missing
// wallet rows are healed on the way through.
func (s *Service) TeamEntitlements(ctx context.Context, actor auth.UserContext, search string) ([]EntitlementRow, error) {
	year := time.Now().Year()

	var members []TeamMember
	var err error
	switch {
	case actor.IsAdmin():
		members, err = s.Store.BalanceHolders(ctx, year, search)
	case actor.Role == auth.RoleManager:
		members, err = s.Store.TeamMembers(ctx, actor.UserID, search)
	default:
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, err
	}

	rows := make([]EntitlementRow, 0, len(members))
	for _, m := range members {
		if err := s.EnsureBalances(ctx, m.ID, year); err != nil {
			return nil, err
		}

		row := EntitlementRow{EmployeeID: m.ID, Name: m.FullName, Status: "Active"}
		if !m.IsActive {
			row.Status = "Inactive"
		}

		buckets := []struct {
			leaveType   string
			remaining   *decimal.Decimal
			entitlement *decimal.Decimal
		}{
			{policy.TypeAnnual, &row.AnnualRemaining, &row.AnnualEntitlement},
			{policy.TypeMedical, &row.MedicalRemaining, &row.MedicalEntitlement},
			{policy.TypeEmergency, &row.EmergencyRemaining, &row.EmergencyEntitlement},
			{policy.TypeCompassionate, &row.CompassionateRemaining, &row.CompassionateEntitlement},
		}
		for _, b := range buckets {
			bal, err := s.calculateShared(ctx, m.ID, year, b.leaveType, false)
			if err != nil {
				return nil, err
			}
			*b.remaining = bal.Remaining
			*b.entitlement = bal.Entitlement
		}

		unpaid, err := s.Store.UnpaidApprovedTotal(ctx, m.ID, 0)
		if err != nil {
			return nil, err
		}
		reasons, err := s.Store.ApprovedCarryForwardReasons(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		cf := decimal.Zero
		for _, reason := range reasons {
			if v, ok := CarryForwardDays(reason); ok {
				cf = cf.Add(v)
			}
		}
		row.UnpaidTaken = unpaid
		row.CarryForwardTotal = cf
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func pageCount(total, size int) int {
	if total == 0 {
		return 1
	}
	return (total + size - 1) / size
}
