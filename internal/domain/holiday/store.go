package holiday

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

func (s *Store) List(ctx context.Context) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, holiday_date, name, created_at
		FROM public_holidays
		ORDER BY holiday_date
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolidays(rows)
}

func (s *Store) ListYear(ctx context.Context, year int) ([]Holiday, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, holiday_date, name, created_at
		FROM public_holidays
		WHERE date_part('year', holiday_date) = $1
		ORDER BY holiday_date
	`, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolidays(rows)
}

func (s *Store) Create(ctx context.Context, date time.Time, name string) (Holiday, error) {
	var h Holiday
	err := s.DB.QueryRow(ctx, `
		INSERT INTO public_holidays (holiday_date, name)
		VALUES ($1, $2)
		RETURNING id, holiday_date, name, created_at
	`, date, name).Scan(&h.ID, &h.Date, &h.Name, &h.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Holiday{}, ErrDuplicateDate
	}
	return h, err
}

func (s *Store) Update(ctx context.Context, id uuid.UUID, date time.Time, name string) (Holiday, error) {
	var h Holiday
	err := s.DB.QueryRow(ctx, `
		UPDATE public_holidays
		SET holiday_date = $2, name = $3
		WHERE id = $1
		RETURNING id, holiday_date, name, created_at
	`, id, date, name).Scan(&h.ID, &h.Date, &h.Name, &h.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Holiday{}, ErrDuplicateDate
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Holiday{}, ErrNotFound
	}
	return h, err
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (Holiday, error) {
	var h Holiday
	err := s.DB.QueryRow(ctx, `
		SELECT id, holiday_date, name, created_at
		FROM public_holidays
		WHERE id = $1
	`, id).Scan(&h.ID, &h.Date, &h.Name, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Holiday{}, ErrNotFound
	}
	return h, err
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.DB.Exec(ctx, "DELETE FROM public_holidays WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanHolidays(rows pgx.Rows) ([]Holiday, error) {
	var out []Holiday
	for rows.Next() {
		var h Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Name, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
