package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.DB.QueryRow(ctx, `
		SELECT value
		FROM system_settings
		WHERE key = $1
	`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}

func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT key, value
		FROM system_settings
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, rows.Err()
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO system_settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	return err
}

// CountActiveCarryForward counts carry-forward requests that are still in
// flight, meaning any tagged annual request not in a terminal status.
func (s *Store) CountActiveCarryForward(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
		SELECT count(*)
		FROM leave_requests
		WHERE leave_type = 'Annual Leave'
		  AND reason LIKE '%[CARRY FORWARD%'
		  AND NOT (status = ANY($1))
	`, terminalStatuses).Scan(&count)
	return count, err
}

// CancelActiveCarryForward force-cancels every in-flight carry-forward
// request, stamping the given remark and history line on each.
func (s *Store) CancelActiveCarryForward(ctx context.Context, remark, historyLine string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Cancelled',
			manager_remarks = $1,
			status_history = status_history || $2,
			cancelled_at = now(),
			updated_at = now()
		WHERE leave_type = 'Annual Leave'
		  AND reason LIKE '%[CARRY FORWARD%'
		  AND NOT (status = ANY($3))
	`, remark, historyLine, terminalStatuses)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

var terminalStatuses = []string{"Cancelled", "Rejected", "Withdrawn", "Merged"}
