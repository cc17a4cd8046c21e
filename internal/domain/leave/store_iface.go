package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StoreAPI is the persistence surface the service depends on. *Store is
// the pgx implementation; tests substitute fakes.
type StoreAPI interface {
	Insert(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	ActiveOverlap(ctx context.Context, employeeID uuid.UUID, start, end time.Time) (Request, error)
	ListByEmployee(ctx context.Context, employeeID uuid.UUID, f HistoryFilter) ([]Request, int, error)
	ListYear(ctx context.Context, employeeID uuid.UUID, year int) ([]Request, error)
	ManagerQueue(ctx context.Context, approverID uuid.UUID, f QueueFilter) ([]Request, int, error)
	ListAll(ctx context.Context, f AllFilter) ([]Request, error)
	PendingL2(ctx context.Context) ([]Request, error)

	Transition(ctx context.Context, id uuid.UUID, from, to Status, line string) error
	Approve(ctx context.Context, id uuid.UUID, from Status, line string) error
	Reject(ctx context.Context, id uuid.UUID, from Status, line string) error
	FinalizeCancel(ctx context.Context, id uuid.UUID, from Status, line string) error
	RouteToL2(ctx context.Context, id uuid.UUID, from Status, l2ID uuid.UUID, line string) error

	BalanceRow(ctx context.Context, employeeID uuid.UUID, year int, leaveType string) (BalanceRow, error)
	BalanceRows(ctx context.Context, employeeID uuid.UUID, year int) ([]BalanceRow, error)
	ProvisionBalance(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, entitlement decimal.Decimal) error
	SetEntitlement(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, days decimal.Decimal) error
	Consumption(ctx context.Context, employeeID uuid.UUID, year int, types, statuses []string) ([]ConsumptionRow, error)
	UnpaidApprovedTotal(ctx context.Context, employeeID uuid.UUID, year int) (decimal.Decimal, error)
	ApprovedCarryForwardReasons(ctx context.Context, employeeID uuid.UUID) ([]string, error)
	CarryForwardRequests(ctx context.Context, search string) ([]Request, error)
	MergeOne(ctx context.Context, id, employeeID uuid.UUID, targetYear int, cfDays, defaultEntitlement decimal.Decimal, line string) (bool, error)
	TeamMembers(ctx context.Context, approverID uuid.UUID, search string) ([]TeamMember, error)
	BalanceHolders(ctx context.Context, year int, search string) ([]TeamMember, error)
}
