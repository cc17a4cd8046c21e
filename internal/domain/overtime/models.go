package overtime

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the closed set of claim states. Overtime has no cancellation
// journey; claims either finalize at L1, pass through L2 once, or are
// withdrawn while still in flight.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusWithdrawn Status = "Withdrawn"
	StatusPendingL2 Status = "Pending L2 Approval"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusApproved, StatusRejected, StatusWithdrawn, StatusPendingL2},
	StatusPendingL2: {StatusApproved, StatusRejected, StatusWithdrawn},
}

func (s Status) CanTransition(to Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// activeStatuses hold a date+type slot and block duplicate claims.
var activeStatuses = []string{"Pending", "Pending L2 Approval", "Approved"}

type Request struct {
	ID             uuid.UUID       `json:"id"`
	EmployeeID     uuid.UUID       `json:"employeeId"`
	EmployeeName   string          `json:"employeeName"`
	ApproverID     uuid.UUID       `json:"approverId"`
	ApproverName   string          `json:"approverName"`
	ApproverL2ID   *uuid.UUID      `json:"approverL2Id,omitempty"`
	ApproverL2Name string          `json:"approverL2Name,omitempty"`
	OTDate         time.Time       `json:"otDate"`
	OTType         string          `json:"otType"`
	OTUnit         string          `json:"otUnit"`
	StartTime      string          `json:"startTime,omitempty"`
	EndTime        string          `json:"endTime,omitempty"`
	TotalValue     decimal.Decimal `json:"totalValue"`
	Reason         string          `json:"reason"`
	Status         Status          `json:"status"`
	StatusHistory  string          `json:"statusHistory"`
	ManagerRemarks string          `json:"managerRemarks,omitempty"`
	AttachmentRef  string          `json:"attachmentRef,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

type ApplyInput struct {
	EmployeeID uuid.UUID       `json:"employeeId"`
	ApproverID uuid.UUID       `json:"approverId"`
	OTDate     time.Time       `json:"otDate"`
	OTType     string          `json:"otType"`
	OTUnit     string          `json:"otUnit"`
	StartTime  string          `json:"startTime"`
	EndTime    string          `json:"endTime"`
	Reason     string          `json:"reason"`
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
