package policy

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Leave type names as stored on balances and requests.
const (
	TypeAnnual        = "Annual Leave"
	TypeMedical       = "Medical Leave"
	TypeEmergency     = "Emergency Leave"
	TypeCompassionate = "Compassionate Leave"
	TypeUnpaid        = "Unpaid Leave"
)

var (
	ErrNotInitialized = errors.New("global policy has not been initialized")
	ErrInvalidDays    = errors.New("entitlement days must be zero or positive")
)

func ValidType(leaveType string) bool {
	switch leaveType {
	case TypeAnnual, TypeMedical, TypeEmergency, TypeCompassionate, TypeUnpaid:
		return true
	}
	return false
}

type Policy struct {
	AnnualDays        decimal.Decimal `json:"annualDays"`
	MedicalDays       decimal.Decimal `json:"medicalDays"`
	EmergencyDays     decimal.Decimal `json:"emergencyDays"`
	CompassionateDays decimal.Decimal `json:"compassionateDays"`
	L2ApprovalEnabled bool            `json:"l2ApprovalEnabled"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// DefaultFor returns the policy entitlement for a leave type. Unpaid
// leave always provisions at zero.
func (p Policy) DefaultFor(leaveType string) decimal.Decimal {
	switch leaveType {
	case TypeAnnual:
		return p.AnnualDays
	case TypeEmergency:
		return p.EmergencyDays
	case TypeMedical:
		return p.MedicalDays
	case TypeCompassionate:
		return p.CompassionateDays
	}
	return decimal.Zero
}

type UpdateInput struct {
	Annual        *decimal.Decimal `json:"annual"`
	Medical       *decimal.Decimal `json:"medical"`
	Emergency     *decimal.Decimal `json:"emergency"`
	Compassionate *decimal.Decimal `json:"compassionate"`
	L2Enabled     *bool            `json:"l2Enabled"`
}

type StoreAPI interface {
	Get(ctx context.Context) (Policy, error)
	Update(ctx context.Context, p Policy) error
	SyncEntitlements(ctx context.Context, year int, leaveType string, days decimal.Decimal) (int, error)
}

type Service struct {
	Store StoreAPI
}

func NewService(store StoreAPI) *Service {
	return &Service{Store: store}
}

func (s *Service) Get(ctx context.Context) (Policy, error) {
	return s.Store.Get(ctx)
}

func (s *Service) L2Enabled(ctx context.Context) (bool, error) {
	p, err := s.Store.Get(ctx)
	if err != nil {
		return false, err
	}
	return p.L2ApprovalEnabled, nil
}

// Update applies the provided fields and pushes the new defaults onto
// every current-year balance row. Returns the updated policy and the
// number of balance rows synced.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Policy, int, error) {
	p, err := s.Store.Get(ctx)
	if err != nil {
		return Policy{}, 0, err
	}

	for _, v := range []*decimal.Decimal{input.Annual, input.Medical, input.Emergency, input.Compassionate} {
		if v != nil && v.IsNegative() {
			return Policy{}, 0, ErrInvalidDays
		}
	}

	if input.Annual != nil {
		p.AnnualDays = *input.Annual
	}
	if input.Medical != nil {
		p.MedicalDays = *input.Medical
	}
	if input.Emergency != nil {
		p.EmergencyDays = *input.Emergency
	}
	if input.Compassionate != nil {
		p.CompassionateDays = *input.Compassionate
	}
	if input.L2Enabled != nil {
		p.L2ApprovalEnabled = *input.L2Enabled
	}

	if err := s.Store.Update(ctx, p); err != nil {
		return Policy{}, 0, err
	}

	year := time.Now().Year()
	synced := 0
	for leaveType, days := range map[string]decimal.Decimal{
		TypeAnnual:        p.AnnualDays,
		TypeMedical:       p.MedicalDays,
		TypeEmergency:     p.EmergencyDays,
		TypeCompassionate: p.CompassionateDays,
	} {
		n, err := s.Store.SyncEntitlements(ctx, year, leaveType, days)
		if err != nil {
			return Policy{}, synced, err
		}
		synced += n
	}
	return p, synced, nil
}
