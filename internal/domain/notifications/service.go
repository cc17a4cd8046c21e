package notifications

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// Service dispatches transactional email. Sends happen on a background
// goroutine so request handling never blocks on SMTP.
type Service struct {
	Mailer Mailer
	From   string
}

func New(mailer Mailer, from string) *Service {
	return &Service{Mailer: mailer, From: from}
}

const sendTimeout = 15 * time.Second

func (s *Service) send(to, subject, body string) {
	if s == nil || s.Mailer == nil {
		return
	}
	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.Mailer.Send(ctx, s.From, to, subject, body); err != nil {
			slog.Warn("email send failed", "to", to, "subject", subject, "err", err)
		}
	}()
}

func (s *Service) LeaveSubmitted(to, managerName, employeeName, leaveType, start, end, days string) {
	s.send(to, "Action Required: Leave Request from "+employeeName,
		leaveSubmittedBody(managerName, employeeName, leaveType, start, end, days))
}

func (s *Service) MedicalLeaveSubmitted(to, managerName, employeeName, start, end, days string) {
	s.send(to, "ACTION REQUIRED: Medical Leave - "+employeeName,
		medicalLeaveBody(managerName, employeeName, start, end, days))
}

func (s *Service) LeaveApproved(to, employeeName, managerName, leaveType, start, end string) {
	s.send(to, "Leave Approved: "+leaveType,
		leaveApprovedBody(employeeName, managerName, leaveType, start, end))
}

func (s *Service) LeaveRejected(to, employeeName, managerName, leaveType, start, end, reason string) {
	s.send(to, "Leave Rejected: "+leaveType,
		leaveRejectedBody(employeeName, managerName, leaveType, start, end, reason))
}

func (s *Service) LeaveL2Request(to, l2Name, l1Name, employeeName, leaveType, start, end string) {
	s.send(to, "ACTION REQUIRED: L2 Approval - "+employeeName,
		leaveL2RequestBody(l2Name, l1Name, employeeName, leaveType, start, end))
}

func (s *Service) CancellationRequested(to, managerName, employeeName, leaveType, start, end, reason string) {
	s.send(to, "ACTION REQUIRED: Cancellation Request - "+employeeName,
		cancellationRequestedBody(managerName, employeeName, leaveType, start, end, reason))
}

func (s *Service) CancellationL2Request(to, l2Name, l1Name, employeeName, leaveType, start, end string) {
	s.send(to, "ACTION REQUIRED: L2 Cancellation - "+employeeName,
		cancellationL2RequestBody(l2Name, l1Name, employeeName, leaveType, start, end))
}

func (s *Service) CancellationApproved(to, employeeName, managerName, leaveType, start, end string) {
	s.send(to, "Leave Cancelled: "+leaveType,
		cancellationApprovedBody(employeeName, managerName, leaveType, start, end))
}

func (s *Service) CancellationRejected(to, employeeName, managerName, leaveType, start, end, remarks string) {
	s.send(to, "Cancellation Denied: "+leaveType,
		cancellationRejectedBody(employeeName, managerName, leaveType, start, end, remarks))
}

func (s *Service) OvertimeSubmitted(to, managerName, employeeName, otType, otDate, duration string) {
	s.send(to, "Action Required: OT Claim from "+employeeName,
		overtimeSubmittedBody(managerName, employeeName, otType, otDate, duration))
}

func (s *Service) OvertimeL2Request(to, l2Name, l1Name, employeeName, otType, otDate, duration string) {
	s.send(to, "Action Required: L2 OT Approval for "+employeeName,
		overtimeL2RequestBody(l2Name, l1Name, employeeName, otType, otDate, duration))
}

func (s *Service) OvertimeDecision(to, employeeName, managerName, status, otType, otDate, remarks string) {
	s.send(to, "OT Claim "+status,
		overtimeDecisionBody(employeeName, managerName, status, otType, otDate, remarks))
}

func (s *Service) UserWelcome(to, name, username, password string) {
	s.send(to, "Welcome to the Team", userWelcomeBody(name, username, password))
}

func (s *Service) RoleUpdated(to, name, role string, senior bool) {
	s.send(to, "System Permissions Updated", roleUpdatedBody(name, role, senior))
}

func (s *Service) AccountStatus(to, name string, active bool) {
	label := "DEACTIVATED"
	if active {
		label = "ACTIVATED"
	}
	s.send(to, "Account Security Alert: Status "+label, accountStatusBody(name, active))
}

func (s *Service) AdminPasswordReset(to, name, newPassword string) {
	s.send(to, "Security Alert: Administrator Password Reset", adminPasswordResetBody(name, newPassword))
}

func (s *Service) PasswordChanged(to, name, when string) {
	s.send(to, "Security Alert: Password Changed", passwordChangedBody(name, when))
}

func (s *Service) CredentialsRecovery(to, name, username, tempPassword string) {
	s.send(to, "Account Recovery: Credentials Reset", credentialsRecoveryBody(name, username, tempPassword))
}
