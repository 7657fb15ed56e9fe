package limits

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

const defaultIdempotencyTTL = 24 * time.Hour

// Claim is the outcome of registering an idempotency key.
type Claim struct {
	// IsNew is true when this request holds the key for the first time (or
	// when the store is unavailable and we fail open).
	IsNew bool
	// ResponseStatus and ResponseBody replay a completed earlier request.
	ResponseStatus int
	ResponseBody   []byte
}

// IdempotencyStore persists request idempotency keys in the tenant database.
type IdempotencyStore struct {
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

// NewIdempotencyStore creates a store; zero ttl selects 24h.
func NewIdempotencyStore(logger *slog.Logger, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}

	return &IdempotencyStore{
		logger: logger.With("module", "idempotency"),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetNowFunc replaces the clock. Test use only.
func (s *IdempotencyStore) SetNowFunc(now func() time.Time) {
	s.now = now
}

// Register claims the key for this request. A previously completed request
// under the same unexpired key is replayed; an expired key is reclaimed.
// Storage errors fail open: the request proceeds as if new.
func (s *IdempotencyStore) Register(ctx context.Context, db *sql.DB, key string) Claim {
	now := s.now()

	insert := `
		INSERT INTO idempotency_keys (key, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (key) DO NOTHING
	`

	result, err := db.ExecContext(ctx, insert, key, now.Add(s.ttl))
	if err != nil {
		s.logger.WarnContext(ctx, "Idempotency store unavailable, failing open",
			"key", key, "error", err)

		return Claim{IsNew: true}
	}

	inserted, err := result.RowsAffected()
	if err == nil && inserted > 0 {
		return Claim{IsNew: true}
	}

	var (
		status    sql.NullInt64
		body      []byte
		expiresAt time.Time
	)

	err = db.QueryRowContext(ctx,
		`SELECT response_status, response_body, expires_at FROM idempotency_keys WHERE key = $1`,
		key,
	).Scan(&status, &body, &expiresAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Idempotency lookup failed, failing open",
				"key", key, "error", err)
		}

		return Claim{IsNew: true}
	}

	if expiresAt.Before(now) {
		_, err := db.ExecContext(ctx,
			`UPDATE idempotency_keys SET response_status = NULL, response_body = NULL, expires_at = $2 WHERE key = $1`,
			key, now.Add(s.ttl))
		if err != nil {
			s.logger.WarnContext(ctx, "Idempotency key reclaim failed", "key", key, "error", err)
		}

		return Claim{IsNew: true}
	}

	if !status.Valid {
		// Earlier request still in flight; treat as new rather than block.
		return Claim{IsNew: true}
	}

	return Claim{
		IsNew:          false,
		ResponseStatus: int(status.Int64),
		ResponseBody:   body,
	}
}

// Complete stores the response for later replay under the same key. Errors
// are logged only; the response has already been produced.
func (s *IdempotencyStore) Complete(ctx context.Context, db *sql.DB, key string, status int, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to encode idempotent response", "key", key, "error", err)

		return
	}

	_, err = db.ExecContext(ctx,
		`UPDATE idempotency_keys SET response_status = $2, response_body = $3 WHERE key = $1`,
		key, status, raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to persist idempotent response", "key", key, "error", err)
	}
}
