package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrIdempotencyConflict = errors.New("idempotency key conflicts with existing request")

// IdempotencyStore lets mutation handlers replay a stored response when a
// client retries with the same Idempotency-Key and identical payload.
type IdempotencyStore struct {
	db *pgxpool.Pool
}

func NewIdempotencyStore(db *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Check returns the stored response for a replayed key. A stored row with
// a different payload hash is a conflict, not a replay.
func (s *IdempotencyStore) Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, int, bool, error) {
	if s == nil || s.db == nil {
		return nil, 0, false, nil
	}
	var storedHash string
	var stored json.RawMessage
	var status int
	err := s.db.QueryRow(ctx, `
		SELECT request_hash, response_body, status_code
		FROM idempotency_keys
		WHERE user_id = $1 AND key = $2 AND endpoint = $3
	`, userID, key, endpoint).Scan(&storedHash, &stored, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	if storedHash != requestHash {
		return nil, 0, false, ErrIdempotencyConflict
	}
	return stored, status, true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, userID, endpoint, key, requestHash string, status int, response json.RawMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	tag, err := s.db.Exec(ctx, `
		INSERT INTO idempotency_keys (user_id, key, endpoint, request_hash, response_body, status_code)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, key, endpoint)
		DO UPDATE SET response_body = EXCLUDED.response_body, status_code = EXCLUDED.status_code
		WHERE idempotency_keys.request_hash = EXCLUDED.request_hash
	`, userID, key, endpoint, requestHash, response, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}
