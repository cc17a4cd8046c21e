package leave

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/policy"
	"leavedesk/internal/domain/user"
)

// fakeStore is an in-memory StoreAPI with the same conditional-update
// semantics as the pgx implementation.
type fakeStore struct {
	requests map[uuid.UUID]*Request
	balances map[string]*BalanceRow
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		requests: make(map[uuid.UUID]*Request),
		balances: make(map[string]*BalanceRow),
	}
}

func balKey(employeeID uuid.UUID, year int, leaveType string) string {
	return employeeID.String() + "|" + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "|" + leaveType
}

func (f *fakeStore) Insert(ctx context.Context, r Request) (Request, error) {
	r.ID = uuid.New()
	now := time.Now()
	r.CreatedAt, r.UpdatedAt = now, now
	cp := r
	f.requests[r.ID] = &cp
	return r, nil
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	r, ok := f.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *r, nil
}

func (f *fakeStore) ActiveOverlap(ctx context.Context, employeeID uuid.UUID, start, end time.Time) (Request, error) {
	for _, r := range f.requests {
		if r.EmployeeID != employeeID {
			continue
		}
		active := false
		for _, s := range activeStatuses {
			if string(r.Status) == s {
				active = true
			}
		}
		if !active {
			continue
		}
		if !start.After(r.EndDate) && !end.Before(r.StartDate) {
			return *r, nil
		}
	}
	return Request{}, ErrNotFound
}

func (f *fakeStore) ListByEmployee(ctx context.Context, employeeID uuid.UUID, _ HistoryFilter) ([]Request, int, error) {
	var out []Request
	for _, r := range f.requests {
		if r.EmployeeID == employeeID {
			out = append(out, *r)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListYear(ctx context.Context, employeeID uuid.UUID, year int) ([]Request, error) {
	var out []Request
	for _, r := range f.requests {
		if r.EmployeeID == employeeID && r.StartDate.Year() == year {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) ManagerQueue(ctx context.Context, approverID uuid.UUID, _ QueueFilter) ([]Request, int, error) {
	var out []Request
	for _, r := range f.requests {
		if r.ApproverID == approverID {
			out = append(out, *r)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) ListAll(ctx context.Context, _ AllFilter) ([]Request, error) { return nil, nil }
func (f *fakeStore) PendingL2(ctx context.Context) ([]Request, error)           { return nil, nil }

func (f *fakeStore) transition(id uuid.UUID, from, to Status, line string) error {
	r, ok := f.requests[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != from {
		return ErrStatusConflict
	}
	r.Status = to
	r.StatusHistory += line
	r.UpdatedAt = time.Now()
	return nil
}

func (f *fakeStore) Transition(ctx context.Context, id uuid.UUID, from, to Status, line string) error {
	return f.transition(id, from, to, line)
}

func (f *fakeStore) Approve(ctx context.Context, id uuid.UUID, from Status, line string) error {
	return f.transition(id, from, StatusApproved, line)
}

func (f *fakeStore) Reject(ctx context.Context, id uuid.UUID, from Status, line string) error {
	return f.transition(id, from, StatusRejected, line)
}

func (f *fakeStore) FinalizeCancel(ctx context.Context, id uuid.UUID, from Status, line string) error {
	return f.transition(id, from, StatusCancelled, line)
}

func (f *fakeStore) RouteToL2(ctx context.Context, id uuid.UUID, from Status, l2ID uuid.UUID, line string) error {
	if err := f.transition(id, from, StatusPendingL2, line); err != nil {
		return err
	}
	f.requests[id].ApproverL2ID = &l2ID
	return nil
}

func (f *fakeStore) BalanceRow(ctx context.Context, employeeID uuid.UUID, year int, leaveType string) (BalanceRow, error) {
	b, ok := f.balances[balKey(employeeID, year, leaveType)]
	if !ok {
		return BalanceRow{}, ErrEntitlementNotFound
	}
	return *b, nil
}

func (f *fakeStore) BalanceRows(ctx context.Context, employeeID uuid.UUID, year int) ([]BalanceRow, error) {
	var out []BalanceRow
	for k, b := range f.balances {
		if strings.HasPrefix(k, employeeID.String()+"|") && strings.Contains(k, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ProvisionBalance(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, entitlement decimal.Decimal) error {
	key := balKey(employeeID, year, leaveType)
	if _, ok := f.balances[key]; ok {
		return nil
	}
	f.balances[key] = &BalanceRow{LeaveType: leaveType, Entitlement: entitlement}
	return nil
}

func (f *fakeStore) SetEntitlement(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, days decimal.Decimal) error {
	key := balKey(employeeID, year, leaveType)
	if b, ok := f.balances[key]; ok {
		b.Entitlement = days
		return nil
	}
	f.balances[key] = &BalanceRow{LeaveType: leaveType, Entitlement: days}
	return nil
}

func (f *fakeStore) Consumption(ctx context.Context, employeeID uuid.UUID, year int, types, statuses []string) ([]ConsumptionRow, error) {
	var out []ConsumptionRow
	for _, r := range f.requests {
		if r.EmployeeID != employeeID || r.StartDate.Year() != year {
			continue
		}
		typeMatch, statusMatch := false, false
		for _, t := range types {
			if r.LeaveType == t {
				typeMatch = true
			}
		}
		for _, s := range statuses {
			if string(r.Status) == s {
				statusMatch = true
			}
		}
		if typeMatch && statusMatch {
			out = append(out, ConsumptionRow{LeaveType: r.LeaveType, Status: r.Status, Reason: r.Reason, Days: r.DaysTaken})
		}
	}
	return out, nil
}

func (f *fakeStore) UnpaidApprovedTotal(ctx context.Context, employeeID uuid.UUID, year int) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, r := range f.requests {
		if r.EmployeeID == employeeID && r.LeaveType == policy.TypeUnpaid && r.Status == StatusApproved {
			if year != 0 && r.StartDate.Year() != year {
				continue
			}
			total = total.Add(r.DaysTaken)
		}
	}
	return total, nil
}

func (f *fakeStore) ApprovedCarryForwardReasons(ctx context.Context, employeeID uuid.UUID) ([]string, error) {
	var out []string
	for _, r := range f.requests {
		if r.EmployeeID == employeeID && r.Status == StatusApproved && IsCarryForward(r.Reason) {
			out = append(out, r.Reason)
		}
	}
	return out, nil
}

func (f *fakeStore) CarryForwardRequests(ctx context.Context, _ string) ([]Request, error) {
	var out []Request
	for _, r := range f.requests {
		if IsCarryForward(r.Reason) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) MergeOne(ctx context.Context, id, employeeID uuid.UUID, targetYear int, cfDays, defaultEntitlement decimal.Decimal, line string) (bool, error) {
	r, ok := f.requests[id]
	if !ok || r.Status != StatusApproved {
		return false, nil
	}
	r.Status = StatusMerged
	r.StatusHistory += line

	key := balKey(employeeID, targetYear, policy.TypeAnnual)
	b, ok := f.balances[key]
	if !ok {
		b = &BalanceRow{LeaveType: policy.TypeAnnual, Entitlement: defaultEntitlement}
		f.balances[key] = b
	}
	b.CarryForwardTotal = b.CarryForwardTotal.Add(cfDays)
	return true, nil
}

func (f *fakeStore) TeamMembers(ctx context.Context, approverID uuid.UUID, _ string) ([]TeamMember, error) {
	return nil, nil
}

func (f *fakeStore) BalanceHolders(ctx context.Context, year int, _ string) ([]TeamMember, error) {
	return nil, nil
}

type fakeDirectory map[uuid.UUID]user.User

func (f fakeDirectory) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, ok := f[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

type fakePolicy struct{ p policy.Policy }

func (f fakePolicy) Get(ctx context.Context) (policy.Policy, error) { return f.p, nil }

type fakeCalendar map[string]string

func (f fakeCalendar) Between(ctx context.Context, start, end time.Time) (map[string]string, error) {
	return f, nil
}

type fixture struct {
	svc      *Service
	store    *fakeStore
	employee user.User
	manager  user.User
	senior   user.User
}

func newFixture(t *testing.T, l2Enabled bool) *fixture {
	t.Helper()

	employee := user.User{ID: uuid.New(), FullName: "Eve Employee", Email: "eve@example.com", Role: auth.RoleEmployee, IsActive: true}
	manager := user.User{ID: uuid.New(), FullName: "Mark Manager", Email: "mark@example.com", Role: auth.RoleManager, IsActive: true}
	senior := user.User{ID: uuid.New(), FullName: "Sam Senior", Email: "sam@example.com", Role: auth.RoleManager, SeniorManager: true, IsActive: true}

	store := newFakeStore()
	pol := policy.Policy{
		AnnualDays:        decimal.NewFromInt(14),
		MedicalDays:       decimal.NewFromInt(14),
		EmergencyDays:     decimal.Zero,
		CompassionateDays: decimal.NewFromInt(3),
		L2ApprovalEnabled: l2Enabled,
	}
	svc := NewService(store,
		fakeDirectory{employee.ID: employee, manager.ID: manager, senior.ID: senior},
		fakePolicy{p: pol}, fakeCalendar{}, nil, nil, nil)

	return &fixture{svc: svc, store: store, employee: employee, manager: manager, senior: senior}
}

func (fx *fixture) actorFor(u user.User) auth.UserContext {
	return auth.UserContext{UserID: u.ID, FullName: u.FullName, Role: u.Role, SeniorManager: u.SeniorManager}
}

// Mon 2025-06-02 .. Fri 2025-06-06 is a clean working week.
func day(d int) time.Time { return time.Date(2025, 6, d, 0, 0, 0, 0, time.UTC) }

func (fx *fixture) submit(t *testing.T, leaveType string, start, end time.Time, reason string) Request {
	t.Helper()
	r, err := fx.svc.Create(context.Background(), CreateInput{
		EmployeeID: fx.employee.ID,
		ApproverID: fx.manager.ID,
		LeaveType:  leaveType,
		StartDate:  start,
		EndDate:    end,
		Reason:     reason,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return r
}

func TestBalanceProvisionsLazily(t *testing.T) {
	fx := newFixture(t, false)

	bal, err := fx.svc.Balance(context.Background(), fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Entitlement.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("entitlement = %s, want 14", bal.Entitlement)
	}
	if !bal.Remaining.Equal(bal.Entitlement) {
		t.Fatalf("fresh remaining = %s, want entitlement %s", bal.Remaining, bal.Entitlement)
	}

	// All five wallet rows exist after the first read.
	rows, _ := fx.store.BalanceRows(context.Background(), fx.employee.ID, 2025)
	if len(rows) != 5 {
		t.Fatalf("provisioned %d wallet rows, want 5", len(rows))
	}
}

func TestSharedAnnualEmergencyBucket(t *testing.T) {
	fx := newFixture(t, false)

	annual := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip") // 3 days
	if err := fx.store.Approve(context.Background(), annual.ID, StatusPending, "\n> ok"); err != nil {
		t.Fatalf("approve: %v", err)
	}
	fx.submit(t, policy.TypeEmergency, day(9), day(11), "urgent") // 3 days, pending

	bal, err := fx.svc.Balance(context.Background(), fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Taken.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("taken = %s, want 6", bal.Taken)
	}
	if !bal.Remaining.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("remaining = %s, want 8", bal.Remaining)
	}
	if !bal.PendingTotal.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("pending = %s, want 3", bal.PendingTotal)
	}

	// The emergency view resolves to the same shared wallet.
	ebal, err := fx.svc.Balance(context.Background(), fx.employee.ID, 2025, policy.TypeEmergency)
	if err != nil {
		t.Fatalf("Balance emergency: %v", err)
	}
	if !ebal.Remaining.Equal(bal.Remaining) {
		t.Fatalf("emergency remaining = %s, annual remaining = %s, want equal", ebal.Remaining, bal.Remaining)
	}
}

func TestCarryForwardTagOverridesCost(t *testing.T) {
	fx := newFixture(t, false)

	// Four working days of span, but the tag declares 2.5.
	fx.submit(t, policy.TypeAnnual, day(2), day(5), "[CARRY FORWARD: 2.5 DAYS] unused 2024 days")

	bal, err := fx.svc.Balance(context.Background(), fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Taken.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("taken = %s, want 2.5", bal.Taken)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown type", func(t *testing.T) {
		fx := newFixture(t, false)
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: "Sabbatical", StartDate: day(2), EndDate: day(3)})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("end before start", func(t *testing.T) {
		fx := newFixture(t, false)
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(5), EndDate: day(2)})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("weekend start", func(t *testing.T) {
		fx := newFixture(t, false)
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(7), EndDate: day(9), Reason: "x"})
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("err = %v, want ErrInvalidDate", err)
		}
	})

	t.Run("holiday boundary", func(t *testing.T) {
		fx := newFixture(t, false)
		fx.svc.Cal = fakeCalendar{"2025-06-02": "Founders Day"}
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(3), Reason: "x"})
		if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("err = %v, want ErrInvalidDate", err)
		}
	})

	t.Run("overlap", func(t *testing.T) {
		fx := newFixture(t, false)
		fx.submit(t, policy.TypeAnnual, day(2), day(4), "first")
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(4), EndDate: day(5), Reason: "second"})
		if !errors.Is(err, ErrOverlap) {
			t.Fatalf("err = %v, want ErrOverlap", err)
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		fx := newFixture(t, false)
		// 14 entitled; ask for the whole month of June weekdays (21 days).
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(30), Reason: "long trip"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})

	t.Run("unknown approver", func(t *testing.T) {
		fx := newFixture(t, false)
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: uuid.New(),
			LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(3), Reason: "x"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("err = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("carry forward beyond remaining", func(t *testing.T) {
		fx := newFixture(t, false)
		_, err := fx.svc.Create(ctx, CreateInput{EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
			LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(3),
			Reason: "[CARRY FORWARD: 20 DAYS] too many"})
		if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("err = %v, want ErrInsufficientBalance", err)
		}
	})
}

func TestUnpaidLeaveBypassesBalanceCheck(t *testing.T) {
	fx := newFixture(t, false)

	// A month of unpaid leave with a zero wallet is fine.
	r := fx.submit(t, policy.TypeUnpaid, day(2), day(30), "sabbatical")
	if r.Status != StatusPending {
		t.Fatalf("status = %s, want Pending", r.Status)
	}
	if !r.DaysTaken.Equal(decimal.NewFromInt(21)) {
		t.Fatalf("days = %s, want 21", r.DaysTaken)
	}
}

func TestHalfDayCostsHalf(t *testing.T) {
	fx := newFixture(t, false)
	r, err := fx.svc.Create(context.Background(), CreateInput{
		EmployeeID: fx.employee.ID, ApproverID: fx.manager.ID,
		LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(5),
		Reason: "appointment", HalfDay: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !r.DaysTaken.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("days = %s, want 0.5", r.DaysTaken)
	}
	// Half day collapses to the start date.
	if !r.EndDate.Equal(r.StartDate) {
		t.Fatalf("half day end = %s, want %s", r.EndDate, r.StartDate)
	}
}

func TestActApproveWithoutL2(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")
	updated, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved})
	if err != nil {
		t.Fatalf("Act: %v", err)
	}
	if updated.Status != StatusApproved {
		t.Fatalf("status = %s, want Approved", updated.Status)
	}
	if !strings.Contains(updated.StatusHistory, "Fully Approved by "+fx.manager.FullName) {
		t.Fatalf("history missing approval line: %q", updated.StatusHistory)
	}
}

func TestActRouteToL2AndFinalApproval(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")

	routed, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID,
		ActionInput{Decision: DecisionApproved, L2ID: &fx.senior.ID})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if routed.Status != StatusPendingL2 {
		t.Fatalf("status = %s, want Pending L2 Approval", routed.Status)
	}
	if routed.ApproverL2ID == nil || *routed.ApproverL2ID != fx.senior.ID {
		t.Fatal("L2 not recorded on the request")
	}

	final, err := fx.svc.Act(ctx, fx.actorFor(fx.senior), r.ID, ActionInput{Decision: DecisionApproved})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != StatusApproved {
		t.Fatalf("status = %s, want Approved", final.Status)
	}
}

func TestActOnTerminalRequest(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionRejected}); err != nil {
		t.Fatalf("reject: %v", err)
	}
	_, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestWithdrawPendingRestoresBalance(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")
	updated, err := fx.svc.Cancel(ctx, fx.actorFor(fx.employee), r.ID, "")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if updated.Status != StatusWithdrawn {
		t.Fatalf("status = %s, want Withdrawn", updated.Status)
	}

	bal, err := fx.svc.Balance(ctx, fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Remaining.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("remaining after withdraw = %s, want 14", bal.Remaining)
	}
}

func TestCancelForbiddenForOtherEmployee(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")
	_, err := fx.svc.Cancel(ctx, fx.actorFor(fx.manager), r.ID, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCancellationRejectedKeepsConsumption(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip") // 3 days
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := fx.svc.Cancel(ctx, fx.actorFor(fx.employee), r.ID, "plans changed"); err != nil {
		t.Fatalf("request cancel: %v", err)
	}

	rejected, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionRejected, Remarks: "coverage needed"})
	if err != nil {
		t.Fatalf("reject cancellation: %v", err)
	}
	if rejected.Status != StatusApproved {
		t.Fatalf("status = %s, want Approved", rejected.Status)
	}
	if !strings.Contains(rejected.StatusHistory, "Cancellation REJECTED by "+fx.manager.FullName) {
		t.Fatalf("history missing rejection line: %q", rejected.StatusHistory)
	}

	// Days stay spent.
	bal, err := fx.svc.Balance(ctx, fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Remaining.Equal(decimal.NewFromInt(11)) {
		t.Fatalf("remaining = %s, want 11", bal.Remaining)
	}
}

func TestCancellationEscalatesThroughL2(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")

	// L1 routes through the senior manager, L2 approves, then the
	// employee asks to cancel.
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved, L2ID: &fx.senior.ID}); err != nil {
		t.Fatalf("route: %v", err)
	}
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.senior), r.ID, ActionInput{Decision: DecisionApproved}); err != nil {
		t.Fatalf("L2 approve: %v", err)
	}
	if _, err := fx.svc.Cancel(ctx, fx.actorFor(fx.employee), r.ID, "plans changed"); err != nil {
		t.Fatalf("request cancel: %v", err)
	}

	// Non-senior L1 approval of the cancellation escalates to the
	// assigned L2 instead of finalizing.
	routed, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved})
	if err != nil {
		t.Fatalf("L1 cancellation approve: %v", err)
	}
	if routed.Status != StatusPendingL2 {
		t.Fatalf("status = %s, want Pending L2 Approval", routed.Status)
	}
	if JourneyOf(routed.Status, routed.StatusHistory) != JourneyCancellation {
		t.Fatal("request lost its cancellation journey at the L2 stage")
	}

	final, err := fx.svc.Act(ctx, fx.actorFor(fx.senior), r.ID, ActionInput{Decision: DecisionApproved})
	if err != nil {
		t.Fatalf("L2 cancellation approve: %v", err)
	}
	if final.Status != StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", final.Status)
	}

	// Cancellation returns the days.
	bal, err := fx.svc.Balance(ctx, fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Remaining.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("remaining = %s, want 14", bal.Remaining)
	}
}

func TestSeniorL1FinalizesCancellationDirectly(t *testing.T) {
	fx := newFixture(t, true)
	ctx := context.Background()

	// Senior manager is the L1 approver here.
	r, err := fx.svc.Create(ctx, CreateInput{
		EmployeeID: fx.employee.ID, ApproverID: fx.senior.ID,
		LeaveType: policy.TypeAnnual, StartDate: day(2), EndDate: day(4), Reason: "trip",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.senior), r.ID, ActionInput{Decision: DecisionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := fx.svc.Cancel(ctx, fx.actorFor(fx.employee), r.ID, "plans changed"); err != nil {
		t.Fatalf("request cancel: %v", err)
	}

	final, err := fx.svc.Act(ctx, fx.actorFor(fx.senior), r.ID, ActionInput{Decision: DecisionApproved})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if final.Status != StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", final.Status)
	}
}

func TestAdjustIndividual(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	days := decimal.NewFromInt(20)
	err := fx.svc.AdjustIndividual(ctx, AdjustInput{EmployeeID: fx.employee.ID, Year: 2025, Annual: &days})
	if err != nil {
		t.Fatalf("AdjustIndividual: %v", err)
	}

	bal, err := fx.svc.Balance(ctx, fx.employee.ID, 2025, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if !bal.Entitlement.Equal(days) {
		t.Fatalf("entitlement = %s, want 20", bal.Entitlement)
	}

	negative := decimal.NewFromInt(-1)
	err = fx.svc.AdjustIndividual(ctx, AdjustInput{EmployeeID: fx.employee.ID, Year: 2025, Medical: &negative})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative adjustment err = %v, want ErrInvalidInput", err)
	}
}

func TestMergeCarryForward(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	cf := fx.submit(t, policy.TypeAnnual, day(2), day(3), "[CARRY FORWARD: 4 DAYS] rollover")
	pendingCF := fx.submit(t, policy.TypeAnnual, day(9), day(10), "[CARRY FORWARD: 2 DAYS] also rollover")
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), cf.ID, ActionInput{Decision: DecisionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	// Only the approved request merges; the pending one is skipped.
	merged, err := fx.svc.MergeCarryForward(ctx, []uuid.UUID{cf.ID, pendingCF.ID, uuid.New()})
	if err != nil {
		t.Fatalf("MergeCarryForward: %v", err)
	}
	if merged != 1 {
		t.Fatalf("merged = %d, want 1", merged)
	}

	got, _ := fx.svc.Get(ctx, cf.ID)
	if got.Status != StatusMerged {
		t.Fatalf("status = %s, want Merged", got.Status)
	}

	// The 2026 wallet is credited: default 14 plus 4 carried days.
	bal, err := fx.svc.Balance(ctx, fx.employee.ID, 2026, policy.TypeAnnual)
	if err != nil {
		t.Fatalf("Balance 2026: %v", err)
	}
	if !bal.CarryForwardTotal.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("carry forward total = %s, want 4", bal.CarryForwardTotal)
	}
	if !bal.Remaining.Equal(decimal.NewFromInt(18)) {
		t.Fatalf("remaining = %s, want 18", bal.Remaining)
	}

	// A replayed merge is a no-op.
	merged, err = fx.svc.MergeCarryForward(ctx, []uuid.UUID{cf.ID})
	if err != nil {
		t.Fatalf("replay merge: %v", err)
	}
	if merged != 0 {
		t.Fatalf("replay merged = %d, want 0", merged)
	}

	// No selection at all is an input error.
	if _, err := fx.svc.MergeCarryForward(ctx, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty merge err = %v, want ErrInvalidInput", err)
	}
}

func TestCarryForwardList(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	cf := fx.submit(t, policy.TypeAnnual, day(2), day(3), "[CARRY FORWARD: 4 DAYS] rollover")
	if _, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), cf.ID, ActionInput{Decision: DecisionApproved}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	rows, err := fx.svc.CarryForwardList(ctx, CarryForwardFilter{Merged: false})
	if err != nil {
		t.Fatalf("CarryForwardList: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("unmerged rows = %d, want 1", len(rows))
	}
	if rows[0].OriginYear != 2025 || rows[0].TargetYear != 2026 {
		t.Fatalf("origin/target = %d/%d, want 2025/2026", rows[0].OriginYear, rows[0].TargetYear)
	}
	if !rows[0].CFDays.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("cf days = %s, want 4", rows[0].CFDays)
	}

	if _, err := fx.svc.MergeCarryForward(ctx, []uuid.UUID{cf.ID}); err != nil {
		t.Fatalf("merge: %v", err)
	}

	rows, err = fx.svc.CarryForwardList(ctx, CarryForwardFilter{Merged: true})
	if err != nil {
		t.Fatalf("CarryForwardList merged: %v", err)
	}
	if len(rows) != 1 || !rows[0].Merged {
		t.Fatalf("merged lane rows = %v", rows)
	}
}

// conflictStore reports a concurrent change on every decision write.
type conflictStore struct{ *fakeStore }

func (c conflictStore) Approve(ctx context.Context, id uuid.UUID, from Status, line string) error {
	return ErrStatusConflict
}

func TestConcurrentActionConflict(t *testing.T) {
	fx := newFixture(t, false)
	ctx := context.Background()

	r := fx.submit(t, policy.TypeAnnual, day(2), day(4), "trip")
	fx.svc.Store = conflictStore{fx.store}

	_, err := fx.svc.Act(ctx, fx.actorFor(fx.manager), r.ID, ActionInput{Decision: DecisionApproved})
	if !errors.Is(err, ErrStatusConflict) {
		t.Fatalf("err = %v, want ErrStatusConflict", err)
	}
}
