package leave

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/policy"
)

const (
	dateISO           = "2006-01-02"
	historyTimeFormat = "2006-01-02 15:04"

	cfTagMarker = "[CARRY FORWARD"
)

var cfTagPattern = regexp.MustCompile(`\[CARRY FORWARD:\s*([\d.]+)\s*DAYS\]`)

// IsCarryForward reports whether a reason carries the carry-forward tag.
func IsCarryForward(reason string) bool {
	return strings.Contains(reason, cfTagMarker)
}

// CarryForwardDays extracts the declared day amount from a tagged reason.
func CarryForwardDays(reason string) (decimal.Decimal, bool) {
	m := cfTagPattern.FindStringSubmatch(reason)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Bucket returns the entitlement bucket of record for a leave type and
// the set of types whose consumption drains it. Annual and Emergency
// Leave share the Annual wallet; every other type stands alone.
func Bucket(leaveType string) (string, []string) {
	if leaveType == policy.TypeAnnual || leaveType == policy.TypeEmergency {
		return policy.TypeAnnual, []string{policy.TypeAnnual, policy.TypeEmergency}
	}
	return leaveType, []string{leaveType}
}

// WorkingDays counts weekdays in the inclusive range, skipping dates
// present in holidays (keyed YYYY-MM-DD).
func WorkingDays(start, end time.Time, holidays map[string]string) int {
	count := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		if _, ok := holidays[d.Format(dateISO)]; ok {
			continue
		}
		count++
	}
	return count
}

// Journey discriminates the approval sub-flow a request is in. It is
// always derived from persisted state, never stored separately.
type Journey int

const (
	JourneyNormal Journey = iota
	JourneyCancellation
)

// JourneyOf classifies from the current status plus the history log. A
// cancellation line in the history pins the request to the cancellation
// flow even while it sits at the L2 stage.
func JourneyOf(status Status, history string) Journey {
	if status == StatusPendingCancel || strings.Contains(history, "Cancellation") {
		return JourneyCancellation
	}
	return JourneyNormal
}

// Outcome is the resolved next step for a manager decision.
type Outcome int

const (
	OutcomeApprove Outcome = iota
	OutcomeReject
	OutcomeRouteToL2
	OutcomeFinalizeCancel
	OutcomeRouteCancelToL2
	OutcomeRevertCancel
)

// DecisionInput captures everything the routing table looks at.
type DecisionInput struct {
	Journey       Journey
	Decision      Decision
	Status        Status
	L2Enabled     bool
	ActorIsHR     bool
	ActorIsSenior bool
	ActingAsL1    bool
	L2Assigned    bool
	L2Valid       bool
	L2Chosen      bool
}

// Decide resolves the next step for a manager action. A cancellation
// approval escalates to L2 only from the first stage, and only when the
// L2 policy is on, the actor is a non-senior L1 without HR standing, and
// the assigned L2 is still an active senior manager. Everything else
// finalizes in place. On the normal journey, supplying an L2 name routes
// the request onward instead of approving it outright.
func Decide(in DecisionInput) Outcome {
	if in.Journey == JourneyCancellation {
		if in.Decision != DecisionApproved {
			return OutcomeRevertCancel
		}
		if in.Status == StatusPendingCancel &&
			!in.ActorIsHR && in.L2Enabled && in.ActingAsL1 && !in.ActorIsSenior &&
			in.L2Assigned && in.L2Valid {
			return OutcomeRouteCancelToL2
		}
		return OutcomeFinalizeCancel
	}

	if in.Decision != DecisionApproved {
		return OutcomeReject
	}
	if in.L2Chosen {
		return OutcomeRouteToL2
	}
	return OutcomeApprove
}

// ClassifyLog labels a request for the dashboard history feed.
func ClassifyLog(status Status, history, reason string) (action, displayStatus string) {
	action = "Leave Request"
	if IsCarryForward(reason) {
		action = "Carry Forward Request"
	}
	switch {
	case strings.Contains(history, "Cancellation"):
		action = "Cancellation Request"
	case status == StatusWithdrawn:
		action = "Withdrawn Request"
	}

	displayStatus = string(status)
	if status == StatusApproved && strings.Contains(history, "Cancellation REJECTED") {
		displayStatus = "Cancel Rejected"
	}
	return action, displayStatus
}

func historyLine(legend string, at time.Time, remarks string) string {
	line := fmt.Sprintf("\n> %s (%s)", legend, at.Format(historyTimeFormat))
	if remarks != "" {
		line += " | Note: " + remarks
	}
	return line
}

func initialHistory(at time.Time) string {
	return fmt.Sprintf("Submitted (%s)", at.Format(historyTimeFormat))
}
