package overtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StoreAPI is the persistence surface the service depends on. *Store is
// the pgx implementation; tests substitute fakes.
type StoreAPI interface {
	Insert(ctx context.Context, r Request) (Request, error)
	Get(ctx context.Context, id uuid.UUID) (Request, error)
	ActiveDuplicate(ctx context.Context, employeeID uuid.UUID, otDate time.Time, otType string) (Request, error)
	ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]Request, error)
	ListAll(ctx context.Context) ([]Request, error)
	ManagerQueue(ctx context.Context, approverID uuid.UUID) ([]Request, error)

	Decide(ctx context.Context, id uuid.UUID, from, to Status, remarks, line string) error
	RouteToL2(ctx context.Context, id uuid.UUID, from Status, l2ID uuid.UUID, remarks, line string) error
	Withdraw(ctx context.Context, id uuid.UUID, from Status, line string) error
}
