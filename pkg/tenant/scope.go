package tenant

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/gearboxhq/gearbox/pkg/registry"
)

// ErrTenantContextMissing indicates a tenant-scoped model was requested by a
// caller with no resolved tenant.
var ErrTenantContextMissing = errors.New("tenant context missing")

// PlatformTenantID marks platform/master-admin callers, which have no tenant
// database of their own.
const PlatformTenantID int64 = 0

// Scope is the per-request tenant context. It lazily acquires the tenant
// connection on first tenant-scoped model access and guarantees the active
// request counter is decremented exactly once via Close. Callers register a
// single deferred Close, which covers both normal completion and abnormal
// termination.
type Scope struct {
	manager  *Manager
	tenantID int64

	mu       sync.Mutex
	tenantDB *sql.DB
	closed   sync.Once
}

// NewScope builds a scope for the resolved tenant. Use PlatformTenantID for
// platform callers.
func NewScope(manager *Manager, tenantID int64) *Scope {
	return &Scope{manager: manager, tenantID: tenantID}
}

// TenantID returns the resolved tenant id, PlatformTenantID for platform
// callers.
func (s *Scope) TenantID() int64 {
	return s.tenantID
}

// IsPlatform reports whether the caller is a platform admin with no tenant.
func (s *Scope) IsPlatform() bool {
	return s.tenantID == PlatformTenantID
}

// Model resolves a registered model name to a handle bound against the main
// or tenant connection per the catalog. Unknown names surface
// registry.ErrUnknownModel; tenant-scoped names without a resolved tenant
// surface ErrTenantContextMissing.
func (s *Scope) Model(ctx context.Context, name registry.Name) (*registry.Model, error) {
	binding, err := registry.Lookup(name)
	if err != nil {
		return nil, err
	}

	if binding.Home == registry.HomeMain {
		db, err := s.manager.Main(ctx)
		if err != nil {
			return nil, err
		}

		return registry.Bind(name, db)
	}

	if s.tenantID == PlatformTenantID {
		return nil, ErrTenantContextMissing
	}

	db, err := s.company(ctx)
	if err != nil {
		return nil, err
	}

	return registry.Bind(name, db)
}

// CompanyDB exposes the raw tenant connection for repository construction.
// Subject to the same acquire-once accounting as Model.
func (s *Scope) CompanyDB(ctx context.Context) (*sql.DB, error) {
	if s.tenantID == PlatformTenantID {
		return nil, ErrTenantContextMissing
	}

	return s.company(ctx)
}

// company acquires the tenant connection at most once per scope: the manager
// counts one active request per scope, not per model handle.
func (s *Scope) company(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tenantDB != nil {
		return s.tenantDB, nil
	}

	db, err := s.manager.Company(ctx, s.tenantID)
	if err != nil {
		return nil, err
	}

	s.tenantDB = db

	return db, nil
}

// Close releases the scope's tenant connection reference. Safe to call more
// than once; only the first call decrements.
func (s *Scope) Close() {
	s.closed.Do(func() {
		s.mu.Lock()
		acquired := s.tenantDB != nil
		s.mu.Unlock()

		if acquired {
			s.manager.Release(s.tenantID)
		}
	})
}
