// Package tenant owns the lifecycle of per-tenant database connections and
// the per-request scope that routes model access to the right database.
package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	// Postgres driver, registered for database/sql.
	_ "github.com/lib/pq"
)

// ErrConnectionFailed indicates the main or a tenant database is unreachable.
var ErrConnectionFailed = errors.New("database connection failed")

// State is the lifecycle state of a managed connection.
type State string

const (
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateClosing    State = "closing"
)

const (
	defaultIdleTimeout  = 5 * time.Minute
	defaultReapInterval = 30 * time.Second
	mainConnectionKey   = "main"
	companyKeyPrefix    = "company:"
	defaultMaxOpenConns = 20
	defaultMaxIdleConns = 5
)

// Config configures the connection manager. TenantDSNTemplate receives the
// tenant id via fmt.Sprintf and must yield the tenant database DSN.
type Config struct {
	MainDSN           string
	TenantDSNTemplate string
	IdleTimeout       time.Duration
	ReapInterval      time.Duration
}

// OpenFunc opens and verifies a database connection. It is injectable for
// tests; the default opens a postgres connection and pings it.
type OpenFunc func(ctx context.Context, dsn string) (*sql.DB, error)

type managed struct {
	db             *sql.DB
	tenantID       int64
	state          State
	activeRequests int64
	lastUsedAt     time.Time
}

// Manager caches exactly one live connection per tenant, created lazily on
// first access and reclaimed after the idle timeout once its active request
// counter returns to zero.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	open   OpenFunc

	mu    sync.Mutex
	main  *sql.DB
	conns map[int64]*managed

	group  singleflight.Group
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a connection manager and starts its idle reaper.
func NewManager(logger *slog.Logger, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}

	if cfg.ReapInterval <= 0 {
		cfg.ReapInterval = defaultReapInterval
	}

	m := &Manager{
		cfg:    cfg,
		logger: logger.With("module", "tenant_manager"),
		open:   defaultOpen,
		conns:  make(map[int64]*managed),
		stopCh: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.reapLoop()

	return m
}

// SetOpenFunc replaces the connection opener. Test use only.
func (m *Manager) SetOpenFunc(open OpenFunc) {
	m.open = open
}

func defaultOpen(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return db, nil
}

// Main returns the shared main-database connection, creating it on first
// call. The call is idempotent and safe under concurrent first access.
func (m *Manager) Main(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	if m.main != nil {
		db := m.main
		m.mu.Unlock()

		return db, nil
	}
	m.mu.Unlock()

	result, err, _ := m.group.Do(mainConnectionKey, func() (any, error) {
		db, err := m.open(ctx, m.cfg.MainDSN)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.main = db
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "Main database connection established")

		return db, nil
	})
	if err != nil {
		return nil, err
	}

	db, ok := result.(*sql.DB)
	if !ok {
		return nil, ErrConnectionFailed
	}

	return db, nil
}

// Company returns the live connection for the tenant, opening one on first
// access. Concurrent cold access for the same tenant is collapsed into a
// single open via singleflight; a failed open leaves no cache entry so the
// next call retries cleanly. Every successful call increments the tenant's
// active request counter and must be paired with exactly one Release.
func (m *Manager) Company(ctx context.Context, tenantID int64) (*sql.DB, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: invalid tenant id %d", ErrConnectionFailed, tenantID)
	}

	m.mu.Lock()
	if conn, ok := m.conns[tenantID]; ok && conn.state == StateReady {
		conn.activeRequests++
		conn.lastUsedAt = time.Now()
		db := conn.db
		m.mu.Unlock()

		return db, nil
	}
	m.mu.Unlock()

	key := companyKeyPrefix + strconv.FormatInt(tenantID, 10)

	result, err, _ := m.group.Do(key, func() (any, error) {
		// Re-check under the lock: another request may have completed the
		// open between the fast path and the singleflight entry.
		m.mu.Lock()
		if conn, ok := m.conns[tenantID]; ok && conn.state == StateReady {
			m.mu.Unlock()

			return conn, nil
		}
		m.mu.Unlock()

		dsn := fmt.Sprintf(m.cfg.TenantDSNTemplate, tenantID)

		db, err := m.open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("tenant %d: %w", tenantID, err)
		}

		conn := &managed{
			db:         db,
			tenantID:   tenantID,
			state:      StateReady,
			lastUsedAt: time.Now(),
		}

		m.mu.Lock()
		m.conns[tenantID] = conn
		m.mu.Unlock()

		m.logger.InfoContext(ctx, "Tenant database connection established", "tenant_id", tenantID)

		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	conn, ok := result.(*managed)
	if !ok {
		return nil, ErrConnectionFailed
	}

	m.mu.Lock()
	conn.activeRequests++
	conn.lastUsedAt = time.Now()
	m.mu.Unlock()

	return conn.db, nil
}

// Release decrements the tenant's active request counter. Callers must
// invoke it exactly once per successful Company call; the counter never goes
// below zero. At zero the connection becomes eligible for idle reclamation
// rather than closing immediately, absorbing back-to-back requests.
func (m *Manager) Release(tenantID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.conns[tenantID]
	if !ok {
		return
	}

	if conn.activeRequests == 0 {
		m.logger.Warn("Release called with zero active requests", "tenant_id", tenantID)

		return
	}

	conn.activeRequests--
	conn.lastUsedAt = time.Now()
}

// ActiveRequests reports the current counter for a tenant. Zero for unknown
// tenants.
func (m *Manager) ActiveRequests(tenantID int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conn, ok := m.conns[tenantID]; ok {
		return conn.activeRequests
	}

	return 0
}

// OpenConnections reports how many tenant connections are currently held.
func (m *Manager) OpenConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.conns)
}

func (m *Manager) reapLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.reapIdle()
		}
	}
}

// reapIdle closes tenant connections that have been idle past the timeout.
// Connections with in-flight requests are never closed.
func (m *Manager) reapIdle() {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)

	var victims []*managed

	m.mu.Lock()
	for tenantID, conn := range m.conns {
		if conn.activeRequests == 0 && conn.lastUsedAt.Before(cutoff) {
			conn.state = StateClosing
			delete(m.conns, tenantID)
			victims = append(victims, conn)
		}
	}
	m.mu.Unlock()

	for _, conn := range victims {
		err := conn.db.Close()
		if err != nil {
			m.logger.Error("Failed to close idle tenant connection",
				"tenant_id", conn.tenantID, "error", err)

			continue
		}

		m.logger.Info("Reclaimed idle tenant connection", "tenant_id", conn.tenantID)
	}
}

// Close stops the reaper and closes every managed connection.
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	if m.main != nil {
		if err := m.main.Close(); err != nil {
			errs = append(errs, err)
		}

		m.main = nil
	}

	for tenantID, conn := range m.conns {
		conn.state = StateClosing

		if err := conn.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("tenant %d: %w", tenantID, err))
		}

		delete(m.conns, tenantID)
	}

	return errors.Join(errs...)
}
