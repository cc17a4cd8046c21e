package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/platform/config"
)

// Seed is idempotent: every step inserts only when its row is absent.
func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if err := ensureSuperuser(ctx, pool, cfg); err != nil {
		return err
	}

	if err := ensureGlobalPolicy(ctx, pool); err != nil {
		return err
	}

	if err := ensureDefaultSettings(ctx, pool); err != nil {
		return err
	}

	return nil
}

func ensureSuperuser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	var exists bool
	err := pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)", cfg.SeedAdminUsername).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPassword(cfg.SeedAdminPassword)
	if err != nil {
		return err
	}

	code := fmt.Sprintf("EMP-%d-0001", time.Now().Year())
	_, err = pool.Exec(ctx,
		`INSERT INTO users (username, full_name, email, password_hash, role, is_active, employee_code)
		 VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		cfg.SeedAdminUsername, "System Administrator", cfg.SeedAdminEmail, hash, auth.RoleSuperuser, code)
	if err != nil {
		return err
	}

	slog.Info("seeded superuser account", "username", cfg.SeedAdminUsername)
	return nil
}

func ensureGlobalPolicy(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO global_policy (id, annual_days, medical_days, emergency_days, compassionate_days, l2_approval_enabled)
		 VALUES (1, 14, 14, 2, 3, FALSE)
		 ON CONFLICT (id) DO NOTHING`)
	return err
}

func ensureDefaultSettings(ctx context.Context, pool *pgxpool.Pool) error {
	defaults := map[string]string{
		"carry_forward_enabled": "false",
		"cf_max_days":           "365.0",
		"cf_expiry_date":        "",
		"company_name":          "LeaveDesk",
		"company_sub_info":      "",
		"company_logo":          "",
		"broadcast_enabled":     "false",
		"broadcast_message":     "",
		"broadcast_start":       "",
		"broadcast_end":         "",
		"maintenance_mode":      "false",
		"system_version":        "1.0.0",
	}

	for key, value := range defaults {
		_, err := pool.Exec(ctx,
			"INSERT INTO system_settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING",
			key, value)
		if err != nil {
			return err
		}
	}
	return nil
}
