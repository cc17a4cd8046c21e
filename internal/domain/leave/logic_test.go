package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/policy"
)

func TestCarryForwardDays(t *testing.T) {
	tests := []struct {
		reason string
		want   string
		ok     bool
	}{
		{"[CARRY FORWARD: 5 DAYS] unused 2024 balance", "5", true},
		{"[CARRY FORWARD: 2.5 DAYS]", "2.5", true},
		{"[CARRY FORWARD:10 DAYS]", "10", true},
		{"family trip", "0", false},
		{"[CARRY FORWARD: DAYS]", "0", false},
	}
	for _, tt := range tests {
		got, ok := CarryForwardDays(tt.reason)
		if ok != tt.ok {
			t.Fatalf("CarryForwardDays(%q) ok = %v, want %v", tt.reason, ok, tt.ok)
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Fatalf("CarryForwardDays(%q) = %s, want %s", tt.reason, got, tt.want)
		}
	}
}

func TestIsCarryForward(t *testing.T) {
	if !IsCarryForward("[CARRY FORWARD: 3 DAYS] rollover") {
		t.Fatal("tagged reason not recognized")
	}
	if IsCarryForward("regular annual leave") {
		t.Fatal("untagged reason recognized as carry forward")
	}
}

func TestBucketSharesAnnualAndEmergency(t *testing.T) {
	bucket, drains := Bucket(policy.TypeEmergency)
	if bucket != policy.TypeAnnual {
		t.Fatalf("emergency bucket = %q, want %q", bucket, policy.TypeAnnual)
	}
	if len(drains) != 2 {
		t.Fatalf("emergency drains %d types, want 2", len(drains))
	}

	bucket, drains = Bucket(policy.TypeMedical)
	if bucket != policy.TypeMedical || len(drains) != 1 {
		t.Fatalf("medical bucket = %q drains %v, want standalone", bucket, drains)
	}
}

func TestWorkingDays(t *testing.T) {
	// Mon 2025-06-02 .. Fri 2025-06-06 is a full working week.
	mon := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	fri := time.Date(2025, 6, 6, 0, 0, 0, 0, time.UTC)

	if got := WorkingDays(mon, fri, nil); got != 5 {
		t.Fatalf("full week = %d, want 5", got)
	}

	// Spanning the weekend into the next Monday adds exactly one day.
	nextMon := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	if got := WorkingDays(mon, nextMon, nil); got != 6 {
		t.Fatalf("week plus monday = %d, want 6", got)
	}

	// A holiday inside the range is skipped.
	holidays := map[string]string{"2025-06-04": "Founders Day"}
	if got := WorkingDays(mon, fri, holidays); got != 4 {
		t.Fatalf("week with holiday = %d, want 4", got)
	}

	// Saturday-to-Sunday yields zero.
	sat := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)
	if got := WorkingDays(sat, sun, nil); got != 0 {
		t.Fatalf("weekend only = %d, want 0", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusPending.CanTransition(StatusPendingL2) {
		t.Fatal("pending -> pending L2 should be allowed")
	}
	if StatusRejected.CanTransition(StatusApproved) {
		t.Fatal("rejected is terminal, no transition out")
	}
	if StatusPending.CanTransition(StatusMerged) {
		t.Fatal("pending cannot jump straight to merged")
	}
	for _, s := range []Status{StatusRejected, StatusWithdrawn, StatusCancelled, StatusMerged} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	if StatusApproved.Terminal() {
		t.Fatal("approved is not terminal")
	}
}

func TestJourneyOf(t *testing.T) {
	if JourneyOf(StatusPendingCancel, "Submitted") != JourneyCancellation {
		t.Fatal("pending cancel should be on the cancellation journey")
	}
	// After routing to L2 the status alone no longer tells; the history does.
	if JourneyOf(StatusPendingL2, "Submitted\n> Cancellation Requested (2025-01-02 09:00)") != JourneyCancellation {
		t.Fatal("L2 stage with cancellation history should stay on the cancellation journey")
	}
	if JourneyOf(StatusPendingL2, "Submitted") != JourneyNormal {
		t.Fatal("plain L2 stage should be on the normal journey")
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		in   DecisionInput
		want Outcome
	}{
		{
			"normal reject",
			DecisionInput{Journey: JourneyNormal, Decision: DecisionRejected},
			OutcomeReject,
		},
		{
			"normal approve without L2",
			DecisionInput{Journey: JourneyNormal, Decision: DecisionApproved},
			OutcomeApprove,
		},
		{
			"normal approve with L2 chosen routes onward",
			DecisionInput{Journey: JourneyNormal, Decision: DecisionApproved, L2Chosen: true},
			OutcomeRouteToL2,
		},
		{
			"cancellation reject reverts to approved",
			DecisionInput{Journey: JourneyCancellation, Decision: DecisionRejected, Status: StatusPendingCancel},
			OutcomeRevertCancel,
		},
		{
			"cancellation by junior L1 escalates when policy is on",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingCancel, L2Enabled: true, ActingAsL1: true,
				L2Assigned: true, L2Valid: true,
			},
			OutcomeRouteCancelToL2,
		},
		{
			"cancellation by senior L1 finalizes in place",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingCancel, L2Enabled: true, ActingAsL1: true,
				ActorIsSenior: true, L2Assigned: true, L2Valid: true,
			},
			OutcomeFinalizeCancel,
		},
		{
			"cancellation by HR finalizes in place",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingCancel, L2Enabled: true, ActingAsL1: true,
				ActorIsHR: true, L2Assigned: true, L2Valid: true,
			},
			OutcomeFinalizeCancel,
		},
		{
			"cancellation with inactive L2 finalizes in place",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingCancel, L2Enabled: true, ActingAsL1: true,
				L2Assigned: true, L2Valid: false,
			},
			OutcomeFinalizeCancel,
		},
		{
			"cancellation at L2 stage finalizes",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingL2, L2Enabled: true, L2Assigned: true, L2Valid: true,
			},
			OutcomeFinalizeCancel,
		},
		{
			"cancellation with policy off finalizes",
			DecisionInput{
				Journey: JourneyCancellation, Decision: DecisionApproved,
				Status: StatusPendingCancel, ActingAsL1: true, L2Assigned: true, L2Valid: true,
			},
			OutcomeFinalizeCancel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.in); got != tt.want {
				t.Fatalf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyLog(t *testing.T) {
	action, status := ClassifyLog(StatusPending, "Submitted", "family trip")
	if action != "Leave Request" || status != "Pending" {
		t.Fatalf("plain request = (%q, %q)", action, status)
	}

	action, _ = ClassifyLog(StatusPending, "Submitted", "[CARRY FORWARD: 4 DAYS]")
	if action != "Carry Forward Request" {
		t.Fatalf("carry forward action = %q", action)
	}

	action, _ = ClassifyLog(StatusPendingCancel, "Submitted\n> Cancellation Requested (2025-01-02 09:00)", "trip")
	if action != "Cancellation Request" {
		t.Fatalf("cancellation action = %q", action)
	}

	action, _ = ClassifyLog(StatusWithdrawn, "Submitted", "trip")
	if action != "Withdrawn Request" {
		t.Fatalf("withdrawn action = %q", action)
	}

	_, status = ClassifyLog(StatusApproved, "Submitted\n> Cancellation REJECTED by Sam (2025-01-03 10:00)", "trip")
	if status != "Cancel Rejected" {
		t.Fatalf("cancel rejected display = %q", status)
	}
}
