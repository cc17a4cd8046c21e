package leave

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"leavedesk/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

// isExclusionViolation matches the gist overlap constraint firing on a
// racing insert that slipped past the pre-check.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
