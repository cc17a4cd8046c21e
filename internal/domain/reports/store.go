package reports

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/leave"
	"leavedesk/internal/domain/overtime"
	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// UsageRow aggregates one employee's activity for one leave type.
type UsageRow struct {
	EmployeeID    uuid.UUID       `json:"employeeId"`
	EmployeeName  string          `json:"employeeName"`
	LeaveType     string          `json:"leaveType"`
	ApprovedDays  decimal.Decimal `json:"approvedDays"`
	RequestCount  int             `json:"requestCount"`
	ApprovedCount int             `json:"approvedCount"`
	RejectedCount int             `json:"rejectedCount"`
}

func (s *Store) LeaveUsage(ctx context.Context, year int) ([]UsageRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT lr.employee_id, e.full_name, lr.leave_type,
			COALESCE(sum(lr.days_taken) FILTER (WHERE lr.status = $2), 0),
			count(*),
			count(*) FILTER (WHERE lr.status = $2),
			count(*) FILTER (WHERE lr.status = $3)
		FROM leave_requests lr
		JOIN users e ON e.id = lr.employee_id
		WHERE date_part('year', lr.start_date) = $1
		GROUP BY lr.employee_id, e.full_name, lr.leave_type
		ORDER BY e.full_name, lr.leave_type
	`, year, leave.StatusApproved, leave.StatusRejected)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UsageRow
	for rows.Next() {
		var r UsageRow
		if err := rows.Scan(&r.EmployeeID, &r.EmployeeName, &r.LeaveType,
			&r.ApprovedDays, &r.RequestCount, &r.ApprovedCount, &r.RejectedCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// OvertimeUsageRow aggregates one employee's approved claims for one
// overtime type. Values only sum within a unit, so the unit rides along.
type OvertimeUsageRow struct {
	EmployeeID    uuid.UUID       `json:"employeeId"`
	EmployeeName  string          `json:"employeeName"`
	OTType        string          `json:"otType"`
	OTUnit        string          `json:"otUnit"`
	ApprovedValue decimal.Decimal `json:"approvedValue"`
	ClaimCount    int             `json:"claimCount"`
}

func (s *Store) OvertimeUsage(ctx context.Context, year int) ([]OvertimeUsageRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT ot.employee_id, e.full_name, ot.ot_type, ot.ot_unit,
			COALESCE(sum(ot.total_value) FILTER (WHERE ot.status = $2), 0),
			count(*)
		FROM overtime_requests ot
		JOIN users e ON e.id = ot.employee_id
		WHERE date_part('year', ot.ot_date) = $1
		GROUP BY ot.employee_id, e.full_name, ot.ot_type, ot.ot_unit
		ORDER BY e.full_name, ot.ot_type
	`, year, overtime.StatusApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OvertimeUsageRow
	for rows.Next() {
		var r OvertimeUsageRow
		if err := rows.Scan(&r.EmployeeID, &r.EmployeeName, &r.OTType, &r.OTUnit,
			&r.ApprovedValue, &r.ClaimCount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type JobRun struct {
	ID         uuid.UUID  `json:"id"`
	JobName    string     `json:"jobName"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

type JobRunFilter struct {
	JobName     string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
}

func (s *Store) ListJobRuns(ctx context.Context, filter JobRunFilter, limit, offset int) ([]JobRun, error) {
	query, args := buildJobRunsBaseQuery(filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		var r JobRun
		if err := rows.Scan(&r.ID, &r.JobName, &r.Status, &r.Detail, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *Store) CountJobRuns(ctx context.Context, filter JobRunFilter) (int, error) {
	query, args := buildJobRunsBaseQuery(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT count(*) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildJobRunsBaseQuery(filter JobRunFilter) (string, []any) {
	query := `
		SELECT id, job_name, status, detail, started_at, finished_at
		FROM job_runs
		WHERE 1=1`
	var args []any

	if value := strings.TrimSpace(filter.JobName); value != "" {
		query += " AND job_name = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if filter.StartedFrom != nil && !filter.StartedFrom.IsZero() {
		query += " AND started_at >= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedFrom)
	}
	if filter.StartedTo != nil && !filter.StartedTo.IsZero() {
		query += " AND started_at <= $" + strconv.Itoa(len(args)+1)
		args = append(args, *filter.StartedTo)
	}

	return query, args
}
