package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the closed set of request states. Transitions outside
// validTransitions are rejected before any write.
type Status string

const (
	StatusPending       Status = "Pending"
	StatusApproved      Status = "Approved"
	StatusRejected      Status = "Rejected"
	StatusWithdrawn     Status = "Withdrawn"
	StatusPendingCancel Status = "Pending Cancel"
	StatusPendingL2     Status = "Pending L2 Approval"
	StatusCancelled     Status = "Cancelled"
	StatusMerged        Status = "Merged"
)

var validTransitions = map[Status][]Status{
	StatusPending:       {StatusApproved, StatusRejected, StatusWithdrawn, StatusPendingL2},
	StatusPendingL2:     {StatusApproved, StatusRejected, StatusPendingCancel, StatusCancelled},
	StatusApproved:      {StatusPendingCancel, StatusMerged},
	StatusPendingCancel: {StatusPendingL2, StatusCancelled, StatusApproved},
}

func (s Status) CanTransition(to Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is accepted.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// activeStatuses reserve days, block overlapping submissions and count as
// consumption. pendingStatuses feed the pending_total aggregate only.
var (
	activeStatuses  = []string{"Pending", "Pending L2 Approval", "Approved", "Pending Cancel"}
	pendingStatuses = map[Status]bool{StatusPending: true, StatusPendingL2: true}
)

type Request struct {
	ID             uuid.UUID       `json:"id"`
	EmployeeID     uuid.UUID       `json:"employeeId"`
	EmployeeName   string          `json:"employeeName"`
	ApproverID     uuid.UUID       `json:"approverId"`
	ApproverName   string          `json:"approverName"`
	ApproverL2ID   *uuid.UUID      `json:"approverL2Id,omitempty"`
	ApproverL2Name string          `json:"approverL2Name,omitempty"`
	LeaveType      string          `json:"leaveType"`
	StartDate      time.Time       `json:"startDate"`
	EndDate        time.Time       `json:"endDate"`
	Reason         string          `json:"reason"`
	Status         Status          `json:"status"`
	DaysTaken      decimal.Decimal `json:"daysTaken"`
	AttachmentRef  string          `json:"attachmentRef,omitempty"`
	StatusHistory  string          `json:"statusHistory"`
	ManagerRemarks string          `json:"managerRemarks,omitempty"`
	ApprovedAt     *time.Time      `json:"approvedAt,omitempty"`
	RejectedAt     *time.Time      `json:"rejectedAt,omitempty"`
	CancelledAt    *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Balance is the computed wallet view for one employee, year and bucket.
// Remaining is always derived, never stored.
type Balance struct {
	EmployeeID        uuid.UUID       `json:"employeeId"`
	Year              int             `json:"year"`
	LeaveType         string          `json:"leaveType"`
	Entitlement       decimal.Decimal `json:"entitlement"`
	CarryForwardTotal decimal.Decimal `json:"carryForwardTotal"`
	Remaining         decimal.Decimal `json:"remaining"`
	Taken             decimal.Decimal `json:"taken"`
	PendingTotal      decimal.Decimal `json:"pendingTotal"`
}

type CreateInput struct {
	EmployeeID uuid.UUID       `json:"employeeId"`
	ApproverID uuid.UUID       `json:"approverId"`
	LeaveType  string          `json:"leaveType"`
	StartDate  time.Time       `json:"startDate"`
	EndDate    time.Time       `json:"endDate"`
	Reason     string          `json:"reason"`
	HalfDay    bool            `json:"halfDay"`
	Attachment *AttachmentData `json:"-"`
}

// AttachmentData carries uploaded file bytes from the transport layer.
type AttachmentData struct {
	FileName    string
	ContentType string
	Data        []byte
}

type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

type ActionInput struct {
	Decision Decision   `json:"decision"`
	Remarks  string     `json:"remarks"`
	L2ID     *uuid.UUID `json:"l2Id,omitempty"`
}

type HistoryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	LeaveType string
	Status    string
	Duration  *decimal.Decimal
	Page      int
	PageSize  int
}

type QueueFilter struct {
	Search    string
	StartDate *time.Time
	EndDate   *time.Time
	LeaveType string
	Status    string
	Page      int
	PageSize  int
}

type Page struct {
	Total    int       `json:"total"`
	Pages    int       `json:"pages"`
	Requests []Request `json:"requests"`
}

// EntitlementRow is one line of the team entitlement report.
type EntitlementRow struct {
	EmployeeID               uuid.UUID       `json:"employeeId"`
	Name                     string          `json:"name"`
	Status                   string          `json:"status"`
	AnnualRemaining          decimal.Decimal `json:"annualRemaining"`
	AnnualEntitlement        decimal.Decimal `json:"annualEntitlement"`
	MedicalRemaining         decimal.Decimal `json:"medicalRemaining"`
	MedicalEntitlement       decimal.Decimal `json:"medicalEntitlement"`
	EmergencyRemaining       decimal.Decimal `json:"emergencyRemaining"`
	EmergencyEntitlement     decimal.Decimal `json:"emergencyEntitlement"`
	CompassionateRemaining   decimal.Decimal `json:"compassionateRemaining"`
	CompassionateEntitlement decimal.Decimal `json:"compassionateEntitlement"`
	UnpaidTaken              decimal.Decimal `json:"unpaidTaken"`
	CarryForwardTotal        decimal.Decimal `json:"carryForwardTotal"`
}

// CarryForwardRow is one line of the carry-forward processing list.
type CarryForwardRow struct {
	ID               uuid.UUID       `json:"id"`
	EmployeeID       uuid.UUID       `json:"employeeId"`
	EmployeeName     string          `json:"employeeName"`
	OriginYear       int             `json:"originYear"`
	TargetYear       int             `json:"targetYear"`
	CFDays           decimal.Decimal `json:"cfDays"`
	Merged           bool            `json:"merged"`
	TargetYearRemain decimal.Decimal `json:"targetYearRemaining"`
}

type CarryForwardFilter struct {
	Search string
	Year   int
	Merged bool
}

// AllFilter scopes the decision archive. A nil ApproverID means an
// admin-wide view; otherwise only requests that approver touched show.
type AllFilter struct {
	ApproverID   *uuid.UUID
	ApproverName string
	Search       string
	StartDate    *time.Time
	Status       string
}

// Overview backs the employee dashboard: per-type entitlements, the
// classified request log and two running totals.
type Overview struct {
	Entitlements []EntitlementSlice `json:"entitlements"`
	Logs         []OverviewLog      `json:"logs"`
	UnpaidTotal  decimal.Decimal    `json:"unpaidTotal"`
	CFTotal      decimal.Decimal    `json:"cfTotal"`
}

type EntitlementSlice struct {
	Type string          `json:"type"`
	Days decimal.Decimal `json:"days"`
}

type OverviewLog struct {
	ID        uuid.UUID       `json:"id"`
	Date      string          `json:"date"`
	Action    string          `json:"action"`
	LeaveType string          `json:"leaveType"`
	Days      decimal.Decimal `json:"days"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason"`
	IsCF      bool            `json:"isCf"`
}

type AdjustInput struct {
	EmployeeID    uuid.UUID        `json:"employeeId"`
	Year          int              `json:"year"`
	Annual        *decimal.Decimal `json:"annual"`
	Medical       *decimal.Decimal `json:"medical"`
	Emergency     *decimal.Decimal `json:"emergency"`
	Compassionate *decimal.Decimal `json:"compassionate"`
}
