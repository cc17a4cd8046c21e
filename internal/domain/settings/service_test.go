package settings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

type fakeStore struct {
	values    map[string]string
	activeCF  int
	getCalls  int
	getErr    error
	cancelled []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, error) {
	f.getCalls++
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) All(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeStore) CountActiveCarryForward(ctx context.Context) (int, error) {
	return f.activeCF, nil
}

func (f *fakeStore) CancelActiveCarryForward(ctx context.Context, remark, historyLine string) (int, error) {
	f.cancelled = append(f.cancelled, historyLine)
	n := f.activeCF
	f.activeCF = 0
	return n, nil
}

func TestCarryForwardDefaults(t *testing.T) {
	store := newFakeStore()
	store.values[KeyCarryForwardEnabled] = "true"
	svc := NewService(store)

	cfg, err := svc.CarryForward(context.Background())
	if err != nil {
		t.Fatalf("carry forward: %v", err)
	}
	if !cfg.Enabled {
		t.Fatalf("expected enabled")
	}
	if !cfg.MaxDays.Equal(decimal.NewFromInt(365)) {
		t.Fatalf("maxDays = %s, want default 365", cfg.MaxDays)
	}

	store.values[KeyCFMaxDays] = "10.5"
	cfg, err = svc.CarryForward(context.Background())
	if err != nil {
		t.Fatalf("carry forward: %v", err)
	}
	if !cfg.MaxDays.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("maxDays = %s, want 10.5", cfg.MaxDays)
	}
}

func TestSetCarryForwardEnable(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	out, err := svc.SetCarryForward(context.Background(), CarryForwardToggle{Enabled: true})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !out.Enabled {
		t.Fatalf("outcome not enabled")
	}
	if store.values[KeyCarryForwardEnabled] != "true" {
		t.Fatalf("flag not persisted")
	}
}

func TestSetCarryForwardDisableNeedsConfirmation(t *testing.T) {
	store := newFakeStore()
	store.values[KeyCarryForwardEnabled] = "true"
	store.activeCF = 3
	svc := NewService(store)
	ctx := context.Background()

	out, err := svc.SetCarryForward(ctx, CarryForwardToggle{Enabled: false})
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if !out.CleanupNeeded || out.ActiveCount != 3 {
		t.Fatalf("expected cleanup prompt, got %+v", out)
	}
	if store.values[KeyCarryForwardEnabled] != "true" {
		t.Fatalf("flag flipped without confirmation")
	}

	out, err = svc.SetCarryForward(ctx, CarryForwardToggle{Enabled: false, ConfirmCleanup: true})
	if err != nil {
		t.Fatalf("confirmed disable: %v", err)
	}
	if out.CleanupNeeded {
		t.Fatalf("cleanup still pending after confirmation")
	}
	if out.Cancelled != 3 {
		t.Fatalf("cancelled = %d, want 3", out.Cancelled)
	}
	if store.values[KeyCarryForwardEnabled] != "false" {
		t.Fatalf("flag not disabled")
	}
	if len(store.cancelled) != 1 || !strings.Contains(store.cancelled[0], "Cancelled by System") {
		t.Fatalf("missing cancellation history line: %v", store.cancelled)
	}
}

func TestSetCarryForwardDisableWithNoActive(t *testing.T) {
	store := newFakeStore()
	store.values[KeyCarryForwardEnabled] = "true"
	svc := NewService(store)

	out, err := svc.SetCarryForward(context.Background(), CarryForwardToggle{Enabled: false})
	if err != nil {
		t.Fatalf("disable: %v", err)
	}
	if out.CleanupNeeded || out.Cancelled != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if store.values[KeyCarryForwardEnabled] != "false" {
		t.Fatalf("flag not disabled")
	}
}

func TestSetCarryForwardRules(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.SetCarryForwardRules(ctx, decimal.NewFromInt(-1), ""); !errors.Is(err, ErrInvalidMaxDays) {
		t.Fatalf("negative err = %v, want ErrInvalidMaxDays", err)
	}
	if err := svc.SetCarryForwardRules(ctx, decimal.NewFromInt(10), "31-12-2025"); !errors.Is(err, ErrInvalidExpiry) {
		t.Fatalf("bad date err = %v, want ErrInvalidExpiry", err)
	}
	if err := svc.SetCarryForwardRules(ctx, decimal.NewFromInt(10), "2025-12-31"); err != nil {
		t.Fatalf("rules: %v", err)
	}
	if store.values[KeyCFMaxDays] != "10" || store.values[KeyCFExpiryDate] != "2025-12-31" {
		t.Fatalf("rules not persisted: %v", store.values)
	}
}

func TestBrandingFallbacks(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	b, err := svc.Branding(context.Background())
	if err != nil {
		t.Fatalf("branding: %v", err)
	}
	if b.CompanyName != "LeaveDesk" || b.SystemVersion != "1.0.0" {
		t.Fatalf("defaults missing: %+v", b)
	}

	store.values[KeyCompanyName] = "Acme"
	store.values[KeyBroadcastEnabled] = "true"
	b, err = svc.Branding(context.Background())
	if err != nil {
		t.Fatalf("branding: %v", err)
	}
	if b.CompanyName != "Acme" || !b.BroadcastEnabled {
		t.Fatalf("stored values ignored: %+v", b)
	}
}

func TestSaveBrandingTruncates(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	err := svc.SaveBranding(context.Background(), BrandingInput{
		CompanyName:    strings.Repeat("A", 30),
		CompanySubInfo: strings.Repeat("b", 50),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := store.values[KeyCompanyName]; len(got) != maxCompanyNameLen {
		t.Fatalf("company name len = %d, want %d", len(got), maxCompanyNameLen)
	}
	if got := store.values[KeyCompanySubInfo]; len(got) != maxCompanySubLen {
		t.Fatalf("sub info len = %d, want %d", len(got), maxCompanySubLen)
	}
}

func TestMaintenanceEnabledCachesFlag(t *testing.T) {
	store := newFakeStore()
	store.values[KeyMaintenanceMode] = "true"
	svc := NewService(store)
	ctx := context.Background()

	if !svc.MaintenanceEnabled(ctx) {
		t.Fatalf("expected maintenance on")
	}
	if !svc.MaintenanceEnabled(ctx) {
		t.Fatalf("expected maintenance on")
	}
	if store.getCalls != 1 {
		t.Fatalf("getCalls = %d, second check should hit the cache", store.getCalls)
	}

	// SaveBranding purges the flag so the change is visible immediately.
	if err := svc.SaveBranding(ctx, BrandingInput{MaintenanceMode: false}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if svc.MaintenanceEnabled(ctx) {
		t.Fatalf("maintenance still on after save")
	}
}

func TestMaintenanceEnabledFailsOpen(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	svc := NewService(store)

	if svc.MaintenanceEnabled(context.Background()) {
		t.Fatalf("lookup failure must fail open")
	}
}
