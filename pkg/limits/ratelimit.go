// Package limits implements tenant-database-backed idempotency and rate
// limiting. State lives in the tenant database rather than process memory so
// enforcement holds across service instances; both subsystems fail open on
// storage errors, favoring availability over strict enforcement.
package limits

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

const (
	defaultLimit  = 100
	defaultWindow = 60 * time.Second
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	logger *slog.Logger
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter creates a limiter. Zero values select the 100/60s default.
func NewRateLimiter(logger *slog.Logger, limit int64, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = defaultLimit
	}

	if window <= 0 {
		window = defaultWindow
	}

	return &RateLimiter{
		logger: logger.With("module", "rate_limiter"),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// SetNowFunc replaces the clock. Test use only.
func (l *RateLimiter) SetNowFunc(now func() time.Time) {
	l.now = now
}

// Allow records one request against the key's current window and reports
// whether it fits inside the limit. Storage errors fail open: the request is
// allowed and the error only logged.
func (l *RateLimiter) Allow(ctx context.Context, db *sql.DB, key string) Decision {
	now := l.now()
	windowStart := now.Truncate(l.window)
	windowEnd := windowStart.Add(l.window)

	query := `
		INSERT INTO rate_limit_windows (key, window_start, request_count, expires_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (key, window_start)
			DO UPDATE SET request_count = rate_limit_windows.request_count + 1
		RETURNING request_count
	`

	var count int64

	err := db.QueryRowContext(ctx, query, key, windowStart, windowEnd.Add(l.window)).Scan(&count)
	if err != nil {
		l.logger.WarnContext(ctx, "Rate limit store unavailable, failing open",
			"key", key, "error", err)

		return Decision{Allowed: true, Limit: l.limit}
	}

	if count == 1 {
		// First hit of a fresh window: sweep expired windows opportunistically.
		_, err := db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE expires_at < $1`, now)
		if err != nil {
			l.logger.WarnContext(ctx, "Rate limit window sweep failed", "error", err)
		}
	}

	return Decision{
		Allowed:    count <= l.limit,
		Count:      count,
		Limit:      l.limit,
		RetryAfter: windowEnd.Sub(now),
	}
}
