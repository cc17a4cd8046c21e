package policy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(ctx context.Context) (Policy, error) {
	var p Policy
	err := s.DB.QueryRow(ctx, `
		SELECT annual_days, medical_days, emergency_days, compassionate_days, l2_approval_enabled, updated_at
		FROM global_policy
		WHERE id = 1
	`).Scan(&p.AnnualDays, &p.MedicalDays, &p.EmergencyDays, &p.CompassionateDays, &p.L2ApprovalEnabled, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, ErrNotInitialized
	}
	return p, err
}

func (s *Store) Update(ctx context.Context, p Policy) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE global_policy
		SET annual_days = $1, medical_days = $2, emergency_days = $3, compassionate_days = $4,
			l2_approval_enabled = $5, updated_at = now()
		WHERE id = 1
	`, p.AnnualDays, p.MedicalDays, p.EmergencyDays, p.CompassionateDays, p.L2ApprovalEnabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotInitialized
	}
	return nil
}

// SyncEntitlements pushes a new default onto every balance row of the
// given type for the given year. Prior years stay untouched.
func (s *Store) SyncEntitlements(ctx context.Context, year int, leaveType string, days decimal.Decimal) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_balances
		SET entitlement = $1, updated_at = now()
		WHERE year = $2 AND leave_type = $3
	`, days, year, leaveType)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
