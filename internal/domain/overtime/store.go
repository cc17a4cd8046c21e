package overtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// isUniqueViolation matches the partial unique index on the active
// date+type slot firing on a racing insert that slipped past the pre-check.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const claimSelect = `
	SELECT ot.id, ot.employee_id, e.full_name, ot.approver_id, a.full_name,
		ot.approver_l2_id, COALESCE(l2.full_name, ''),
		ot.ot_date, ot.ot_type, ot.ot_unit, ot.start_time, ot.end_time, ot.total_value,
		ot.reason, ot.status, ot.status_history, ot.manager_remarks, ot.attachment_ref,
		ot.created_at, ot.updated_at
	FROM overtime_requests ot
	JOIN users e ON e.id = ot.employee_id
	JOIN users a ON a.id = ot.approver_id
	LEFT JOIN users l2 ON l2.id = ot.approver_l2_id`

func scanClaim(row pgx.Row) (Request, error) {
	var r Request
	err := row.Scan(&r.ID, &r.EmployeeID, &r.EmployeeName, &r.ApproverID, &r.ApproverName,
		&r.ApproverL2ID, &r.ApproverL2Name,
		&r.OTDate, &r.OTType, &r.OTUnit, &r.StartTime, &r.EndTime, &r.TotalValue,
		&r.Reason, &r.Status, &r.StatusHistory, &r.ManagerRemarks, &r.AttachmentRef,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func collectClaims(rows pgx.Rows) ([]Request, error) {
	defer rows.Close()
	var out []Request
	for rows.Next() {
		r, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Insert(ctx context.Context, r Request) (Request, error) {
	err := s.DB.QueryRow(ctx, `
		INSERT INTO overtime_requests (employee_id, approver_id, ot_date, ot_type, ot_unit,
			start_time, end_time, total_value, reason, status, attachment_ref, status_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, r.EmployeeID, r.ApproverID, r.OTDate, r.OTType, r.OTUnit,
		r.StartTime, r.EndTime, r.TotalValue, r.Reason, r.Status, r.AttachmentRef, r.StatusHistory).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if isUniqueViolation(err) {
		return Request{}, ErrDuplicate
	}
	return r, err
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Request, error) {
	return scanClaim(s.DB.QueryRow(ctx, claimSelect+` WHERE ot.id = $1`, id))
}

// ActiveDuplicate returns the in-flight or approved claim already holding
// this employee's date+type slot. ErrNotFound means the slot is free.
func (s *Store) ActiveDuplicate(ctx context.Context, employeeID uuid.UUID, otDate time.Time, otType string) (Request, error) {
	return scanClaim(s.DB.QueryRow(ctx, claimSelect+`
		WHERE ot.employee_id = $1
		  AND ot.ot_date = $2
		  AND ot.ot_type = $3
		  AND ot.status = ANY($4)
		LIMIT 1
	`, employeeID, otDate, otType, activeStatuses))
}

func (s *Store) ListByEmployee(ctx context.Context, employeeID uuid.UUID) ([]Request, error) {
	rows, err := s.DB.Query(ctx, claimSelect+`
		WHERE ot.employee_id = $1
		ORDER BY ot.ot_date DESC, ot.created_at DESC
	`, employeeID)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

func (s *Store) ListAll(ctx context.Context) ([]Request, error) {
	rows, err := s.DB.Query(ctx, claimSelect+` ORDER BY ot.created_at DESC`)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

// ManagerQueue returns the approver's inbox: fresh claims awaiting their
// first-level decision plus claims routed to them for second-level
// sign-off.
func (s *Store) ManagerQueue(ctx context.Context, approverID uuid.UUID) ([]Request, error) {
	rows, err := s.DB.Query(ctx, claimSelect+`
		WHERE (ot.approver_id = $1 AND ot.status = 'Pending')
		   OR (ot.approver_l2_id = $1 AND ot.status = 'Pending L2 Approval')
		ORDER BY ot.ot_date ASC
	`, approverID)
	if err != nil {
		return nil, err
	}
	return collectClaims(rows)
}

// Decide moves a claim to its decided status, recording the remarks and
// appending the history line. The update is conditional on the expected
// current status; zero rows affected surfaces as ErrStatusConflict.
func (s *Store) Decide(ctx context.Context, id uuid.UUID, from, to Status, remarks, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE overtime_requests
		SET status = $3, manager_remarks = $4, status_history = status_history || $5, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to, remarks, line)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) RouteToL2(ctx context.Context, id uuid.UUID, from Status, l2ID uuid.UUID, remarks, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE overtime_requests
		SET status = 'Pending L2 Approval', approver_l2_id = $3, manager_remarks = $4,
			status_history = status_history || $5, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, l2ID, remarks, line)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (s *Store) Withdraw(ctx context.Context, id uuid.UUID, from Status, line string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE overtime_requests
		SET status = 'Withdrawn', status_history = status_history || $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, line)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}
