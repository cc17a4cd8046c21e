package user

import (
	"context"
	"errors"
	"fmt"

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

const userColumns = `id, username, full_name, email, role, is_senior_manager, manager_id, is_active,
		employee_code, gender, marital_status, mobile, job_title, business_unit, department,
		joined_date, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.Role, &u.SeniorManager, &u.ManagerID,
		&u.IsActive, &u.EmployeeCode, &u.Gender, &u.MaritalStatus, &u.Mobile, &u.JobTitle,
		&u.BusinessUnit, &u.Department, &u.JoinedDate, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id))
}

func (s *Store) GetByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username))
}

func (s *Store) FindByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.DB.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1)
		LIMIT 1
	`, email))
}

func (s *Store) Credentials(ctx context.Context, username string) (uuid.UUID, string, bool, error) {
	var (
		id     uuid.UUID
		hash   string
		active bool
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id, password_hash, is_active
		FROM users
		WHERE username = $1
	`, username).Scan(&id, &hash, &active)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, "", false, ErrNotFound
	}
	return id, hash, active, err
}

func (s *Store) PasswordHash(ctx context.Context, id uuid.UUID) (string, error) {
	var hash string
	err := s.DB.QueryRow(ctx, "SELECT password_hash FROM users WHERE id = $1", id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

func (s *Store) UsernameOrEmailExists(ctx context.Context, username, email string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users WHERE username = $1 OR (email <> '' AND lower(email) = lower($2))
		)
	`, username, email).Scan(&exists)
	return exists, err
}

func (s *Store) Create(ctx context.Context, input CreateInput, passwordHash, employeeCode string) (User, error) {
	row := s.DB.QueryRow(ctx, `
		INSERT INTO users (username, full_name, email, password_hash, role, is_senior_manager, manager_id,
			employee_code, gender, marital_status, mobile, job_title, business_unit, department, joined_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING `+userColumns+`
	`, input.Username, input.FullName, input.Email, passwordHash, input.Role, input.SeniorManager,
		input.ManagerID, employeeCode, input.Gender, input.MaritalStatus, input.Mobile,
		input.JobTitle, input.BusinessUnit, input.Department, input.JoinedDate)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return User{}, ErrAlreadyExists
	}
	return u, err
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, input ProfileInput) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE users
		SET full_name = $1, email = $2, manager_id = $3, gender = $4, marital_status = $5,
			mobile = $6, job_title = $7, business_unit = $8, department = $9, joined_date = $10,
			updated_at = now()
		WHERE id = $11
	`, input.FullName, input.Email, input.ManagerID, input.Gender, input.MaritalStatus,
		input.Mobile, input.JobTitle, input.BusinessUnit, input.Department, input.JoinedDate, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := s.DB.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2", passwordHash, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetSession(ctx context.Context, id uuid.UUID, sessionID string) error {
	_, err := s.DB.Exec(ctx,
		"UPDATE users SET current_session_id = $1, updated_at = now() WHERE id = $2", sessionID, id)
	return err
}

// SessionRow returns the user plus the stored session token for auth checks.
func (s *Store) SessionRow(ctx context.Context, id uuid.UUID) (User, string, error) {
	var (
		u       User
		session string
	)
	err := s.DB.QueryRow(ctx, `
		SELECT id, username, full_name, role, is_senior_manager, is_active, current_session_id
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.FullName, &u.Role, &u.SeniorManager, &u.IsActive, &session)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, "", ErrNotFound
	}
	return u, session, err
}

func (s *Store) SetRole(ctx context.Context, id uuid.UUID, role string, senior bool) error {
	tag, err := s.DB.Exec(ctx,
		"UPDATE users SET role = $1, is_senior_manager = $2, updated_at = now() WHERE id = $3",
		role, senior, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := "UPDATE users SET is_active = $1, updated_at = now() WHERE id = $2"
	if !active {
		query = "UPDATE users SET is_active = $1, current_session_id = '', updated_at = now() WHERE id = $2"
	}
	tag, err := s.DB.Exec(ctx, query, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List excludes superuser accounts so they never surface in directories.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role <> 'superuser'`
	args := []any{}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND full_name ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Role != "" {
		query += fmt.Sprintf(" AND role = $%d", len(args)+1)
		args = append(args, filter.Role)
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND is_active = $%d", len(args)+1)
		args = append(args, *filter.Active)
	}
	query += " ORDER BY full_name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Approvers lists active managers and HR admins for approver pickers.
func (s *Store) Approvers(ctx context.Context) ([]Summary, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, username, full_name, role, is_senior_manager, employee_code, is_active
		FROM users
		WHERE is_active AND role IN ('manager', 'hr_admin')
		ORDER BY full_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var m Summary
		if err := rows.Scan(&m.ID, &m.Username, &m.FullName, &m.Role, &m.SeniorManager, &m.EmployeeCode, &m.IsActive); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) OtherActiveAdmins(ctx context.Context, excludeID uuid.UUID) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(1)
		FROM users
		WHERE role = 'hr_admin' AND is_active AND id <> $1
	`, excludeID).Scan(&count)
	return count, err
}

func (s *Store) MaxEmployeeSeq(ctx context.Context, year int) (int, error) {
	var seq int
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(MAX(substring(employee_code FROM 10)::int), 0)
		FROM users
		WHERE employee_code LIKE 'EMP-' || $1::text || '-%'
	`, year).Scan(&seq)
	return seq, err
}

func (s *Store) ReassignL1Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error) {
	return s.reassignApprovals(ctx, "approver_id", []string{"Pending", "Pending Cancel"}, from, to, historyLine)
}

func (s *Store) ReassignL2Approvals(ctx context.Context, from, to uuid.UUID, historyLine string) (int, error) {
	return s.reassignApprovals(ctx, "approver_l2_id", []string{"Pending L2 Approval", "Pending Cancel"}, from, to, historyLine)
}

func (s *Store) reassignApprovals(ctx context.Context, column string, statuses []string, from, to uuid.UUID, historyLine string) (int, error) {
	total := 0
	for _, table := range []string{"leave_requests", "overtime_requests"} {
		tag, err := s.DB.Exec(ctx, fmt.Sprintf(`
			UPDATE %s
			SET %s = $1, status_history = status_history || $2, updated_at = now()
			WHERE %s = $3 AND status = ANY($4)
		`, table, column, column), to, historyLine, from, statuses)
		if err != nil {
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
