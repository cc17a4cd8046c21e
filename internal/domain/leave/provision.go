package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/policy"
)

var provisionedTypes = []string{
	policy.TypeAnnual,
	policy.TypeMedical,
	policy.TypeEmergency,
	policy.TypeCompassionate,
	policy.TypeUnpaid,
}

// EnsureBalances lazily provisions the full wallet set for one employee
// and year at the current policy defaults. Existing rows are untouched.
func (s *Service) EnsureBalances(ctx context.Context, employeeID uuid.UUID, year int) error {
	pol, err := s.Policy.Get(ctx)
	if err != nil {
		return err
	}
	for _, leaveType := range provisionedTypes {
		if err := s.Store.ProvisionBalance(ctx, employeeID, year, leaveType, pol.DefaultFor(leaveType)); err != nil {
			return err
		}
	}
	return nil
}

// AdjustIndividual overrides per-employee entitlements for the given
// year. Only the types named in the input change; unset ones keep their
// current value.
func (s *Service) AdjustIndividual(ctx context.Context, in AdjustInput) error {
	if in.Year == 0 {
		in.Year = time.Now().Year()
	}

	adjustments := []struct {
		leaveType string
		days      *decimal.Decimal
	}{
		{policy.TypeAnnual, in.Annual},
		{policy.TypeMedical, in.Medical},
		{policy.TypeEmergency, in.Emergency},
		{policy.TypeCompassionate, in.Compassionate},
	}
	for _, a := range adjustments {
		if a.days == nil {
			continue
		}
		if a.days.IsNegative() {
			return fmt.Errorf("%w: %s entitlement cannot be negative", ErrInvalidInput, a.leaveType)
		}
		if err := s.Store.SetEntitlement(ctx, in.EmployeeID, in.Year, a.leaveType, *a.days); err != nil {
			return err
		}
	}
	return nil
}
