package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
)

// Setting keys as stored in system_settings. Seeded at bootstrap.
const (
	KeyCarryForwardEnabled = "carry_forward_enabled"
	KeyCFMaxDays           = "cf_max_days"
	KeyCFExpiryDate        = "cf_expiry_date"
	KeyCompanyName         = "company_name"
	KeyCompanySubInfo      = "company_sub_info"
	KeyCompanyLogo         = "company_logo"
	KeyBroadcastEnabled    = "broadcast_enabled"
	KeyBroadcastMessage    = "broadcast_message"
	KeyBroadcastStart      = "broadcast_start"
	KeyBroadcastEnd        = "broadcast_end"
	KeyMaintenanceMode     = "maintenance_mode"
	KeySystemVersion       = "system_version"
)

var (
	ErrNotFound       = errors.New("setting not found")
	ErrInvalidMaxDays = errors.New("carry forward max days must be zero or positive")
	ErrInvalidExpiry  = errors.New("expiry date must be in YYYY-MM-DD format")
)

const (
	maxCompanyNameLen = 20
	maxCompanySubLen  = 35

	defaultCFMaxDays = 365.0

	flagCacheSize = 4
	flagCacheTTL  = 15 * time.Second

	historyTimeFormat = "2006-01-02 15:04"
	dateISO           = "2006-01-02"
)

type CarryForwardConfig struct {
	Enabled    bool            `json:"enabled"`
	MaxDays    decimal.Decimal `json:"maxDays"`
	ExpiryDate string          `json:"expiryDate"`
}

type CarryForwardToggle struct {
	Enabled        bool `json:"enabled"`
	ConfirmCleanup bool `json:"confirmCleanup"`
}

// ToggleOutcome reports what a carry-forward toggle did. CleanupNeeded
// means the disable was held back pending confirmation because active
// carry-forward requests exist.
type ToggleOutcome struct {
	Enabled       bool `json:"enabled"`
	CleanupNeeded bool `json:"cleanupNeeded"`
	ActiveCount   int  `json:"activeCount"`
	Cancelled     int  `json:"cancelled"`
}

type Branding struct {
	SystemVersion    string `json:"systemVersion"`
	CompanyName      string `json:"companyName"`
	CompanySubInfo   string `json:"companySubInfo"`
	CompanyLogo      string `json:"companyLogo"`
	BroadcastEnabled bool   `json:"broadcastEnabled"`
	BroadcastMessage string `json:"broadcastMessage"`
	BroadcastStart   string `json:"broadcastStart"`
	BroadcastEnd     string `json:"broadcastEnd"`
	MaintenanceMode  bool   `json:"maintenanceMode"`
}

type BrandingInput struct {
	CompanyName      string `json:"companyName"`
	CompanySubInfo   string `json:"companySubInfo"`
	CompanyLogo      string `json:"companyLogo"`
	BroadcastEnabled bool   `json:"broadcastEnabled"`
	BroadcastMessage string `json:"broadcastMessage"`
	BroadcastStart   string `json:"broadcastStart"`
	BroadcastEnd     string `json:"broadcastEnd"`
	MaintenanceMode  bool   `json:"maintenanceMode"`
}

type StoreAPI interface {
	Get(ctx context.Context, key string) (string, error)
	All(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	CountActiveCarryForward(ctx context.Context) (int, error)
	CancelActiveCarryForward(ctx context.Context, remark, historyLine string) (int, error)
}

// Service reads and writes system settings. The maintenance flag sits on
// the hot path of every request, so it goes through a short-lived cache
// that writes purge.
type Service struct {
	Store StoreAPI
	flags *expirable.LRU[string, string]
}

func NewService(store StoreAPI) *Service {
	return &Service{
		Store: store,
		flags: expirable.NewLRU[string, string](flagCacheSize, nil, flagCacheTTL),
	}
}

func (s *Service) CarryForward(ctx context.Context) (CarryForwardConfig, error) {
	values, err := s.Store.All(ctx)
	if err != nil {
		return CarryForwardConfig{}, err
	}

	cfg := CarryForwardConfig{
		Enabled:    values[KeyCarryForwardEnabled] == "true",
		MaxDays:    decimal.NewFromFloat(defaultCFMaxDays),
		ExpiryDate: values[KeyCFExpiryDate],
	}
	if raw := values[KeyCFMaxDays]; raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil {
			cfg.MaxDays = parsed
		}
	}
	return cfg, nil
}

// SetCarryForward flips the carry-forward feature. Disabling while tagged
// requests are still in flight needs ConfirmCleanup; with it, those
// requests are cancelled before the flag goes off.
func (s *Service) SetCarryForward(ctx context.Context, in CarryForwardToggle) (ToggleOutcome, error) {
	if in.Enabled {
		if err := s.Store.Set(ctx, KeyCarryForwardEnabled, "true"); err != nil {
			return ToggleOutcome{}, err
		}
		s.flags.Remove(KeyCarryForwardEnabled)
		return ToggleOutcome{Enabled: true}, nil
	}

	count, err := s.Store.CountActiveCarryForward(ctx)
	if err != nil {
		return ToggleOutcome{}, err
	}
	if count > 0 && !in.ConfirmCleanup {
		return ToggleOutcome{CleanupNeeded: true, ActiveCount: count}, nil
	}

	cancelled := 0
	if count > 0 {
		stamp := time.Now().Format(historyTimeFormat)
		line := fmt.Sprintf("\n> Cancelled by System: carry forward disabled (%s)", stamp)
		cancelled, err = s.Store.CancelActiveCarryForward(ctx, "System: Feature disabled by Admin. Auto-cancelled.", line)
		if err != nil {
			return ToggleOutcome{}, err
		}
	}

	if err := s.Store.Set(ctx, KeyCarryForwardEnabled, "false"); err != nil {
		return ToggleOutcome{}, err
	}
	s.flags.Remove(KeyCarryForwardEnabled)
	return ToggleOutcome{ActiveCount: count, Cancelled: cancelled}, nil
}

func (s *Service) SetCarryForwardRules(ctx context.Context, maxDays decimal.Decimal, expiryDate string) error {
	if maxDays.IsNegative() {
		return ErrInvalidMaxDays
	}
	if expiryDate != "" {
		if _, err := time.Parse(dateISO, expiryDate); err != nil {
			return ErrInvalidExpiry
		}
	}
	if err := s.Store.Set(ctx, KeyCFMaxDays, maxDays.String()); err != nil {
		return err
	}
	return s.Store.Set(ctx, KeyCFExpiryDate, expiryDate)
}

func (s *Service) Branding(ctx context.Context) (Branding, error) {
	values, err := s.Store.All(ctx)
	if err != nil {
		return Branding{}, err
	}

	pick := func(key, fallback string) string {
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		return fallback
	}

	return Branding{
		SystemVersion:    pick(KeySystemVersion, "1.0.0"),
		CompanyName:      pick(KeyCompanyName, "LeaveDesk"),
		CompanySubInfo:   values[KeyCompanySubInfo],
		CompanyLogo:      values[KeyCompanyLogo],
		BroadcastEnabled: values[KeyBroadcastEnabled] == "true",
		BroadcastMessage: values[KeyBroadcastMessage],
		BroadcastStart:   values[KeyBroadcastStart],
		BroadcastEnd:     values[KeyBroadcastEnd],
		MaintenanceMode:  values[KeyMaintenanceMode] == "true",
	}, nil
}

func (s *Service) SaveBranding(ctx context.Context, in BrandingInput) error {
	updates := []struct {
		key   string
		value string
	}{
		{KeyCompanyName, truncate(in.CompanyName, maxCompanyNameLen)},
		{KeyCompanySubInfo, truncate(in.CompanySubInfo, maxCompanySubLen)},
		{KeyCompanyLogo, in.CompanyLogo},
		{KeyBroadcastEnabled, formatBool(in.BroadcastEnabled)},
		{KeyBroadcastMessage, in.BroadcastMessage},
		{KeyBroadcastStart, in.BroadcastStart},
		{KeyBroadcastEnd, in.BroadcastEnd},
		{KeyMaintenanceMode, formatBool(in.MaintenanceMode)},
	}
	for _, u := range updates {
		if err := s.Store.Set(ctx, u.key, u.value); err != nil {
			return err
		}
	}
	s.flags.Remove(KeyMaintenanceMode)
	return nil
}

// MaintenanceEnabled satisfies the maintenance middleware. Lookup errors
// fail open so an outage cannot lock everyone out.
func (s *Service) MaintenanceEnabled(ctx context.Context) bool {
	if v, ok := s.flags.Get(KeyMaintenanceMode); ok {
		return v == "true"
	}

	v, err := s.Store.Get(ctx, KeyMaintenanceMode)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("maintenance flag lookup failed", slog.Any("error", err))
		}
		v = "false"
	}
	s.flags.Add(KeyMaintenanceMode, v)
	return v == "true"
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
