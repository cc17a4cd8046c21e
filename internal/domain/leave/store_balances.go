package leave

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceRow is the stored part of a wallet. Consumption is never stored
// here; the calculator derives it from requests.
type BalanceRow struct {
	LeaveType         string
	Entitlement       decimal.Decimal
	CarryForwardTotal decimal.Decimal
}

// ConsumptionRow is one request's contribution to a bucket's usage.
type ConsumptionRow struct {
	LeaveType string
	Status    Status
	Reason    string
	Days      decimal.Decimal
}

// TeamMember is an employee visible in an approver's entitlement report.
type TeamMember struct {
	ID       uuid.UUID
	FullName string
	IsActive bool
}

func (s *Store) BalanceRow(ctx context.Context, employeeID uuid.UUID, year int, leaveType string) (BalanceRow, error) {
	var b BalanceRow
	err := s.DB.QueryRow(ctx, `
		SELECT leave_type, entitlement, carry_forward_total
		FROM leave_balances
		WHERE employee_id = $1 AND year = $2 AND leave_type = $3
	`, employeeID, year, leaveType).Scan(&b.LeaveType, &b.Entitlement, &b.CarryForwardTotal)
	if errors.Is(err, pgx.ErrNoRows) {
		return BalanceRow{}, ErrEntitlementNotFound
	}
	return b, err
}

func (s *Store) BalanceRows(ctx context.Context, employeeID uuid.UUID, year int) ([]BalanceRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT leave_type, entitlement, carry_forward_total
		FROM leave_balances
		WHERE employee_id = $1 AND year = $2
		ORDER BY leave_type
	`, employeeID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BalanceRow
	for rows.Next() {
		var b BalanceRow
		if err := rows.Scan(&b.LeaveType, &b.Entitlement, &b.CarryForwardTotal); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ProvisionBalance creates a wallet row if absent and leaves existing
// rows untouched, so lazy provisioning never clobbers adjustments.
func (s *Store) ProvisionBalance(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, entitlement decimal.Decimal) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO leave_balances (employee_id, year, leave_type, entitlement)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id, year, leave_type) DO NOTHING
	`, employeeID, year, leaveType, entitlement)
	return err
}

// SetEntitlement overrides one wallet's base entitlement, creating the
// row when the year was never provisioned.
func (s *Store) SetEntitlement(ctx context.Context, employeeID uuid.UUID, year int, leaveType string, days decimal.Decimal) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO leave_balances (employee_id, year, leave_type, entitlement)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (employee_id, year, leave_type)
		DO UPDATE SET entitlement = EXCLUDED.entitlement, updated_at = now()
	`, employeeID, year, leaveType, days)
	return err
}

func (s *Store) Consumption(ctx context.Context, employeeID uuid.UUID, year int, types, statuses []string) ([]ConsumptionRow, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT leave_type, status, reason, days_taken
		FROM leave_requests
		WHERE employee_id = $1
		  AND leave_type = ANY($2)
		  AND status = ANY($3)
		  AND date_part('year', start_date) = $4
	`, employeeID, types, statuses, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConsumptionRow
	for rows.Next() {
		var c ConsumptionRow
		if err := rows.Scan(&c.LeaveType, &c.Status, &c.Reason, &c.Days); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UnpaidApprovedTotal sums approved unpaid leave. Year zero means all
// years.
func (s *Store) UnpaidApprovedTotal(ctx context.Context, employeeID uuid.UUID, year int) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(sum(days_taken), 0)
		FROM leave_requests
		WHERE employee_id = $1 AND leave_type = 'Unpaid Leave' AND status = 'Approved'`
	args := []any{employeeID}
	if year != 0 {
		query += " AND date_part('year', start_date) = $2"
		args = append(args, year)
	}

	var total decimal.Decimal
	err := s.DB.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

func (s *Store) ApprovedCarryForwardReasons(ctx context.Context, employeeID uuid.UUID) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT reason
		FROM leave_requests
		WHERE employee_id = $1 AND status = 'Approved' AND reason LIKE '%[CARRY FORWARD%'
	`, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reasons []string
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	return reasons, rows.Err()
}

func (s *Store) CarryForwardRequests(ctx context.Context, search string) ([]Request, error) {
	query := requestSelect + ` WHERE lr.reason LIKE '%[CARRY FORWARD:%'`
	args := []any{}
	if search != "" {
		query += " AND e.full_name ILIKE $1"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY lr.created_at DESC"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

// MergeOne credits cfDays into the target year's annual wallet and flips
// the request to Merged in one transaction. The conditional update makes
// retries and double-submits no-ops: a request already merged reports
// false instead of crediting twice.
func (s *Store) MergeOne(ctx context.Context, id, employeeID uuid.UUID, targetYear int, cfDays, defaultEntitlement decimal.Decimal, line string) (bool, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE leave_requests
		SET status = 'Merged', status_history = status_history || $1, updated_at = now()
		WHERE id = $2 AND status = 'Approved'
	`, line, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO leave_balances (employee_id, year, leave_type, entitlement, carry_forward_total)
		VALUES ($1, $2, 'Annual Leave', $3, $4)
		ON CONFLICT (employee_id, year, leave_type)
		DO UPDATE SET carry_forward_total = leave_balances.carry_forward_total + EXCLUDED.carry_forward_total, updated_at = now()
	`, employeeID, targetYear, defaultEntitlement, cfDays)
	if err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

// TeamMembers is a manager's reporting scope: profile-assigned reports
// plus anyone who has routed a request to them.
func (s *Store) TeamMembers(ctx context.Context, approverID uuid.UUID, search string) ([]TeamMember, error) {
	query := `
		SELECT DISTINCT u.id, u.full_name, u.is_active
		FROM users u
		WHERE u.role <> 'superuser'
		  AND (u.manager_id = $1
			OR u.id IN (SELECT employee_id FROM leave_requests WHERE approver_id = $1))`
	args := []any{approverID}
	if search != "" {
		query += " AND u.full_name ILIKE $2"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY u.full_name"
	return s.queryTeamMembers(ctx, query, args...)
}

// BalanceHolders is the admin-wide scope: every non-ghost employee with a
// wallet for the year.
func (s *Store) BalanceHolders(ctx context.Context, year int, search string) ([]TeamMember, error) {
	query := `
		SELECT DISTINCT u.id, u.full_name, u.is_active
		FROM leave_balances lb
		JOIN users u ON u.id = lb.employee_id
		WHERE lb.year = $1 AND u.role <> 'superuser'`
	args := []any{year}
	if search != "" {
		query += " AND u.full_name ILIKE $2"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY u.full_name"
	return s.queryTeamMembers(ctx, query, args...)
}

func (s *Store) queryTeamMembers(ctx context.Context, query string, args ...any) ([]TeamMember, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TeamMember
	for rows.Next() {
		var m TeamMember
		if err := rows.Scan(&m.ID, &m.FullName, &m.IsActive); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
