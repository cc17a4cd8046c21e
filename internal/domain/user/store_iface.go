package user

import (
	"context"

	"github.com/google/uuid"
)

type StoreAPI interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Credentials(ctx context.Context, username string) (uuid.UUID, string, bool, error)
	PasswordHash(ctx context.Context, id uuid.UUID) (string, error)
	UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, input CreateInput, passwordHash, employeeCode string) (User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetSession(ctx context.Context, id uuid.UUID, sessionID string) error
	SessionRow(ctx context.Context, id uuid.UUID) (User, string, error)
	SetRole(ctx context.Context, id uuid.UUID, role string, senior bool) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	List(ctx context.Context, filter ListFilter) ([]User, error)
	Approvers(ctx context.Context) ([]Summary, error)
	OtherActiveAdmins(ctx context.Context, excludeID uuid.UUID) (int, error)
	MaxEmployeeSeq(ctx context.Context, year int) (int, error)
	ReassignL1Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error)
	ReassignL2Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error)
}
