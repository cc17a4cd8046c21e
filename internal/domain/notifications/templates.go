package notifications

import "fmt"

const divider = "--------------------------------"

func leaveSubmittedBody(managerName, employeeName, leaveType, start, end, days string) string {
	return fmt.Sprintf(`Hi %s,

Action Required: New Leave Request

%s
Employee:   %s
Leave Type: %s
Duration:   %s Days
Dates:      %s to %s
%s

Please log in to the Dashboard to Approve or Reject this request.

Best regards,
Leave System
`, managerName, divider, employeeName, leaveType, days, start, end, divider)
}

func medicalLeaveBody(managerName, employeeName, start, end, days string) string {
	return fmt.Sprintf(`Hi %s,

Urgent: %s has submitted a Medical Leave request.

%s
Duration:   %s Days
Dates:      %s to %s
%s

Medical leave may require a supporting document. Please review and action promptly.

Best regards,
Leave System
`, managerName, employeeName, divider, days, start, end, divider)
}

func leaveApprovedBody(employeeName, managerName, leaveType, start, end string) string {
	return fmt.Sprintf(`Hi %s,

Good news! Your leave request has been APPROVED.

%s
Approver:   %s
Type:       %s
Dates:      %s to %s
Status:     APPROVED
%s

Your leave balance has been deducted accordingly.

Best regards,
Leave System
`, employeeName, divider, managerName, leaveType, start, end, divider)
}

func leaveRejectedBody(employeeName, managerName, leaveType, start, end, reason string) string {
	return fmt.Sprintf(`Hi %s,

Your leave request has been REJECTED.

%s
Approver:   %s
Type:       %s
Dates:      %s to %s
Status:     REJECTED
Reason:     %s
%s

The days have been returned to your balance.

Best regards,
Leave System
`, employeeName, divider, managerName, leaveType, start, end, reason, divider)
}

func leaveL2RequestBody(l2Name, l1Name, employeeName, leaveType, start, end string) string {
	return fmt.Sprintf(`Hi %s,

%s has approved a leave request that now requires your second-level approval.

%s
Employee:   %s
Type:       %s
Dates:      %s to %s
%s

Please log in to the Dashboard to finalize this request.

Best regards,
Leave System
`, l2Name, l1Name, divider, employeeName, leaveType, start, end, divider)
}

func cancellationRequestedBody(managerName, employeeName, leaveType, start, end, reason string) string {
	return fmt.Sprintf(`Hi %s,

%s has requested to cancel an approved leave.

%s
Type:       %s
Dates:      %s to %s
Reason:     %s
%s

Please log in to confirm or reject the cancellation.

Best regards,
Leave System
`, managerName, employeeName, divider, leaveType, start, end, reason, divider)
}

func cancellationL2RequestBody(l2Name, l1Name, employeeName, leaveType, start, end string) string {
	return fmt.Sprintf(`Hi %s,

%s has approved a leave cancellation that now requires your second-level confirmation.

%s
Employee:   %s
Type:       %s
Dates:      %s to %s
%s

Please log in to the Dashboard to finalize the cancellation.

Best regards,
Leave System
`, l2Name, l1Name, divider, employeeName, leaveType, start, end, divider)
}

func cancellationApprovedBody(employeeName, managerName, leaveType, start, end string) string {
	return fmt.Sprintf(`Hi %s,

Your leave cancellation has been confirmed.

%s
Approver:   %s
Type:       %s
Dates:      %s to %s
Status:     CANCELLED
%s

The days have been returned to your balance.

Best regards,
Leave System
`, employeeName, divider, managerName, leaveType, start, end, divider)
}

func cancellationRejectedBody(employeeName, managerName, leaveType, start, end, remarks string) string {
	return fmt.Sprintf(`Hi %s,

Your leave cancellation request has been DENIED. The leave remains approved.

%s
Approver:   %s
Type:       %s
Dates:      %s to %s
Remarks:    %s
%s

Best regards,
Leave System
`, employeeName, divider, managerName, leaveType, start, end, remarks, divider)
}

func overtimeSubmittedBody(managerName, employeeName, otType, otDate, duration string) string {
	return fmt.Sprintf(`Hi %s,

Action Required: New Overtime Claim

%s
Employee:   %s
OT Type:    %s
Date:       %s
Duration:   %s
%s

Please log in to the Dashboard to Approve or Reject this claim.

Best regards,
Leave System
`, managerName, divider, employeeName, otType, otDate, duration, divider)
}

func overtimeL2RequestBody(l2Name, l1Name, employeeName, otType, otDate, duration string) string {
	return fmt.Sprintf(`Hi %s,

%s has approved an overtime claim that now requires your second-level approval.

%s
Employee:   %s
OT Type:    %s
Date:       %s
Duration:   %s
%s

Please log in to the Dashboard to finalize this claim.

Best regards,
Leave System
`, l2Name, l1Name, divider, employeeName, otType, otDate, duration, divider)
}

func overtimeDecisionBody(employeeName, managerName, status, otType, otDate, remarks string) string {
	return fmt.Sprintf(`Hi %s,

Your overtime claim has been %s.

%s
Approver:   %s
OT Type:    %s
Date:       %s
Remarks:    %s
%s

Best regards,
Leave System
`, employeeName, status, divider, managerName, otType, otDate, remarks, divider)
}

func userWelcomeBody(name, username, password string) string {
	return fmt.Sprintf(`Hi %s,

Welcome to the team! Your account has been created.

Here are your login credentials:
%s
Username: %s
Password: %s
%s

Please log in immediately and change your password via the 'My Profile' section.

Best regards,
HR Team
`, name, divider, username, password, divider)
}

func roleUpdatedBody(name, role string, senior bool) string {
	l2Text := "DISABLED"
	if senior {
		l2Text = "ENABLED"
	}
	return fmt.Sprintf(`Hi %s,

Your system permissions have been updated.

%s
New Role:        %s
L2 Approval:     %s (Senior Manager Status)
%s

You may need to log out and log back in for these changes to take effect.

Best regards,
HR Admin Team
`, name, divider, role, l2Text, divider)
}

func accountStatusBody(name string, active bool) string {
	if active {
		return fmt.Sprintf(`Hi %s,

Your account has been ACTIVATED. You can now log in to the system.

Best regards,
HR Admin Team
`, name)
	}
	return fmt.Sprintf(`Hi %s,

Your account has been DEACTIVATED. Any active sessions have been terminated.

If you believe this is an error, please contact HR.

Best regards,
HR Admin Team
`, name)
}

func adminPasswordResetBody(name, newPassword string) string {
	return fmt.Sprintf(`Hi %s,

Security Alert: Your password has been reset by an Administrator.

Here are your new login credentials:
%s
New Password: %s
%s

Please log in and change this password immediately.

Best regards,
Leave System
`, name, divider, newPassword, divider)
}

func passwordChangedBody(name, when string) string {
	return fmt.Sprintf(`Hi %s,

This is an automated security alert to confirm that your account password was successfully changed on %s.
%s
Security Check:
- If you performed this change, you can safely ignore this email.
- If you DID NOT perform this change, please contact HR immediately.
%s
`, name, when, divider, divider)
}

func credentialsRecoveryBody(name, username, tempPassword string) string {
	return fmt.Sprintf(`Hi %s,

We received a request to recover access to your account.

Here are your login credentials:
%s
Username:           %s
Temporary Password: %s
%s

Please log in and change this password immediately.

Best regards,
Leave System
`, name, divider, username, tempPassword, divider)
}
