package jobs

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	JobCarryForwardMerge = "carry_forward_merge"
	JobPolicySync        = "policy_entitlement_sync"
	JobBalanceProvision  = "balance_provision"
)

// Service records administrative job executions in job_runs. Jobs run
// synchronously inside the request that triggered them.
type Service struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Service {
	return &Service{DB: db}
}

func (s *Service) RunNow(ctx context.Context, jobName string, run func(context.Context) (string, error)) (string, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx,
		"INSERT INTO job_runs (job_name, status) VALUES ($1, $2) RETURNING id",
		jobName, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "job", jobName, "err", err)
	}

	detail, err := run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		if detail == "" {
			detail = err.Error()
		}
	}

	if runID != "" {
		if _, updErr := s.DB.Exec(ctx,
			"UPDATE job_runs SET status = $1, detail = $2, finished_at = now() WHERE id = $3",
			status, detail, runID); updErr != nil {
			slog.Warn("job run update failed", "job", jobName, "err", updErr)
		}
	}
	return detail, err
}
