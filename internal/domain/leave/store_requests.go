package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestSelect = `
	SELECT lr.id, lr.employee_id, e.full_name, lr.approver_id, a.full_name,
		lr.approver_l2_id, COALESCE(l2.full_name, ''),
		lr.leave_type, lr.start_date, lr.end_date, lr.reason, lr.status, lr.days_taken,
		lr.attachment_ref, lr.status_history, lr.manager_remarks,
		lr.approved_at, lr.rejected_at, lr.cancelled_at, lr.created_at, lr.updated_at
	FROM leave_requests lr
	JOIN users e ON e.id = lr.employee_id
	JOIN users a ON a.id = lr.approver_id
	LEFT JOIN users l2 ON l2.id = lr.approver_l2_id`

func scanRequest(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.EmployeeID, &r.EmployeeName, &r.ApproverID, &r.ApproverName,
		&r.ApproverL2ID, &r.ApproverL2Name,
		&r.LeaveType, &r.StartDate, &r.EndDate, &r.Reason, &r.Status, &r.DaysTaken,
		&r.AttachmentRef, &r.StatusHistory, &r.ManagerRemarks,
		&r.ApprovedAt, &r.RejectedAt, &r.CancelledAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, r Request) (Request, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO leave_requests (employee_id, approver_id, leave_type, start_date, end_date,
			reason, status, days_taken, attachment_ref, status_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`, r.EmployeeID, r.ApproverID, r.LeaveType, r.StartDate, r.EndDate,
		r.Reason, r.Status, r.DaysTaken, r.AttachmentRef, r.StatusHistory).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if isExclusionViolation(err) {
		return Request{}, ErrOverlap
	}
	return r, err
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, requestSelect+` WHERE lr.id = $1`, id))
}

// ActiveOverlap returns the first in-flight request whose date span
// intersects [start, end]. ErrNotFound means the span is clear.
func (s *Store) ActiveOverlap(ctx context.Context, employeeID uuid.UUID, start, end time.Time) (Request, error) {
	return scanRequest(s.DB.QueryRow(ctx, requestSelect+`
		WHERE lr.employee_id = $1
		  AND lr.status = ANY($2)
		  AND lr.start_date <= $3
		  AND lr.end_date >= $4
		LIMIT 1
	`, employeeID, activeStatuses, end, start))
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID uuid.UUID, f HistoryFilter) ([]Request, int, error) {
	where := []string{"lr.employee_id = $1"}
	args := []any{employeeID}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.StartDate != nil {
		add("lr.start_date = $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("lr.end_date = $%d", *f.EndDate)
	}
	if f.LeaveType != "" {
		add("lr.leave_type = $%d", f.LeaveType)
	}
	if f.Status != "" {
		add("lr.status = $%d", f.Status)
	}
	if f.Duration != nil {
		add("lr.days_taken = $%d", *f.Duration)
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.DB.QueryRow(ctx, "SELECT count(*) FROM leave_requests lr"+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.DB.Query(ctx, requestSelect+clause+
		fmt.Sprintf(" ORDER BY lr.start_date DESC, lr.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectRequests(rows)
	return list, total, err
}

// ManagerQueue returns the approver's inbox: lane one is first-level work
// (fresh requests and cancellations), lane two is requests routed to them
// for second-level sign-off.
func (s *Store) ManagerQueue(ctx context.Context, approverID uuid.UUID, f QueueFilter) ([]Request, int, error) {
	where := []string{`((lr.approver_id = $1 AND lr.status = ANY($2))
		OR (lr.approver_l2_id = $1 AND lr.status = 'Pending L2 Approval'))`}
	args := []any{approverID, []string{"Pending", "Pending Cancel"}}

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Search != "" {
		add("e.full_name ILIKE $%d", "%"+f.Search+"%")
	}
	if f.StartDate != nil {
		add("lr.start_date = $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("lr.end_date = $%d", *f.EndDate)
	}
	if f.LeaveType != "" {
		add("lr.leave_type = $%d", f.LeaveType)
	}
	if f.Status != "" {
		add("lr.status = $%d", f.Status)
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT count(*) FROM leave_requests lr JOIN users e ON e.id = lr.employee_id" + clause
	if err := s.DB.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := s.DB.Query(ctx, requestSelect+clause+
		fmt.Sprintf(" ORDER BY lr.created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	list, err := collectRequests(rows)
	return list, total, err
}

// ListAll is the decision-archive view. With an ApproverID it narrows to
// requests that approver touched at either level, including ones handed
// to them by escalation (matched through history mentions).
func (s *Store) ListAll(ctx context.Context, f AllFilter) ([]Request, error) {
	var where []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ApproverID != nil {
		args = append(args, *f.ApproverID, "%"+f.ApproverName+"%")
		where = append(where, fmt.Sprintf(
			"(lr.approver_id = $%d OR lr.approver_l2_id = $%d OR lr.status_history ILIKE $%d)",
			len(args)-1, len(args)-1, len(args)))
	}
	if f.Search != "" {
		add("e.full_name ILIKE $%d", "%"+f.Search+"%")
	}
	if f.StartDate != nil {
		add("lr.start_date = $%d", *f.StartDate)
	}
	if f.Status != "" {
		add("lr.status = $%d", f.Status)
	}

	query := requestSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY lr.created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// ListYear returns every request whose span starts in the given year,
// newest first. Feeds the dashboard overview.
func (s *Store) ListYear(ctx context.Context, employeeID uuid.UUID, year int) ([]Request, error) {
	rows, err := s.DB.Query(ctx, requestSelect+`
		WHERE lr.employee_id = $1 AND date_part('year', lr.start_date) = $2
		ORDER BY lr.start_date DESC, lr.created_at DESC
	`, employeeID, year)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// PendingL2 lists every request parked at the second approval stage.
// Admins use it as a pre-flight check before turning the L2 policy off.
func (s *Store) PendingL2(ctx context.Context) ([]Request, error) {
	rows, err := s.DB.Query(ctx, requestSelect+`
		WHERE lr.status = 'Pending L2 Approval'
		ORDER BY lr.created_at
	`)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// Transition is the base conditional status flip. Zero rows affected
// means another actor got there first.
func (s *Store) Transition(ctx context.Context, id uuid.UUID, from, to Status, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = $1, status_history = status_history || $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, to, line, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) Approve(ctx context.Context, id uuid.UUID, from Status, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Approved', status_history = status_history || $1, approved_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, line, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) Reject(ctx context.Context, id uuid.UUID, from Status, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Rejected', status_history = status_history || $1, rejected_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, line, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) FinalizeCancel(ctx context.Context, id uuid.UUID, from Status, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Cancelled', status_history = status_history || $1, cancelled_at = now(), updated_at = now()
		WHERE id = $2 AND status = $3
	`, line, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) RouteToL2(ctx context.Context, id uuid.UUID, from Status, l2ID uuid.UUID, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Pending L2 Approval', approver_l2_id = $1, status_history = status_history || $2, updated_at = now()
		WHERE id = $3 AND status = $4
	`, l2ID, line, id, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
