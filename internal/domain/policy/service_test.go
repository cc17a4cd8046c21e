package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	policy    Policy
	updated   *Policy
	syncCalls map[string]decimal.Decimal
	rowsPer   int
}

func (f *fakeStore) Get(ctx context.Context) (Policy, error) {
	return f.policy, nil
}

func (f *fakeStore) Update(ctx context.Context, p Policy) error {
	f.updated = &p
	f.policy = p
	return nil
}

func (f *fakeStore) SyncEntitlements(ctx context.Context, year int, leaveType string, days decimal.Decimal) (int, error) {
	if f.syncCalls == nil {
		f.syncCalls = map[string]decimal.Decimal{}
	}
	f.syncCalls[leaveType] = days
	return f.rowsPer, nil
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func basePolicy() Policy {
	return Policy{
		AnnualDays:        d("14"),
		MedicalDays:       d("14"),
		EmergencyDays:     d("0"),
		CompassionateDays: d("3"),
	}
}

func TestUpdateAppliesPartialInput(t *testing.T) {
	store := &fakeStore{policy: basePolicy(), rowsPer: 5}
	svc := NewService(store)

	annual := d("18")
	l2 := true
	p, synced, err := svc.Update(context.Background(), UpdateInput{Annual: &annual, L2Enabled: &l2})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !p.AnnualDays.Equal(d("18")) {
		t.Fatalf("annual = %s, want 18", p.AnnualDays)
	}
	if !p.MedicalDays.Equal(d("14")) || !p.CompassionateDays.Equal(d("3")) {
		t.Fatalf("untouched fields changed: %+v", p)
	}
	if !p.L2ApprovalEnabled {
		t.Fatalf("l2 flag not applied")
	}
	if store.updated == nil {
		t.Fatalf("store never updated")
	}
	// One sync per provisioned type, each touching rowsPer balances.
	if synced != 4*store.rowsPer {
		t.Fatalf("synced = %d, want %d", synced, 4*store.rowsPer)
	}
	if got := store.syncCalls[TypeAnnual]; !got.Equal(d("18")) {
		t.Fatalf("annual sync pushed %s, want 18", got)
	}
	if got := store.syncCalls[TypeEmergency]; !got.Equal(d("0")) {
		t.Fatalf("emergency sync pushed %s, want 0", got)
	}
	if _, ok := store.syncCalls[TypeUnpaid]; ok {
		t.Fatalf("unpaid leave must not be synced")
	}
}

func TestUpdateRejectsNegativeDays(t *testing.T) {
	store := &fakeStore{policy: basePolicy()}
	svc := NewService(store)

	neg := d("-1")
	_, _, err := svc.Update(context.Background(), UpdateInput{Medical: &neg})
	if !errors.Is(err, ErrInvalidDays) {
		t.Fatalf("err = %v, want ErrInvalidDays", err)
	}
	if store.updated != nil {
		t.Fatalf("store updated despite invalid input")
	}
}

func TestL2Enabled(t *testing.T) {
	store := &fakeStore{policy: basePolicy()}
	store.policy.L2ApprovalEnabled = true
	svc := NewService(store)

	on, err := svc.L2Enabled(context.Background())
	if err != nil {
		t.Fatalf("l2 enabled: %v", err)
	}
	if !on {
		t.Fatalf("expected l2 enabled")
	}
}

func TestDefaultFor(t *testing.T) {
	p := basePolicy()
	cases := []struct {
		leaveType string
		want      string
	}{
		{TypeAnnual, "14"},
		{TypeMedical, "14"},
		{TypeEmergency, "0"},
		{TypeCompassionate, "3"},
		{TypeUnpaid, "0"},
	}
	for _, tc := range cases {
		if got := p.DefaultFor(tc.leaveType); !got.Equal(d(tc.want)) {
			t.Fatalf("DefaultFor(%s) = %s, want %s", tc.leaveType, got, tc.want)
		}
	}
}

func TestValidType(t *testing.T) {
	if !ValidType(TypeUnpaid) {
		t.Fatalf("unpaid leave should be valid")
	}
	if ValidType("Sabbatical") {
		t.Fatalf("unknown type should be invalid")
	}
}
