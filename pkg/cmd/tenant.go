package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/gearboxhq/gearbox/pkg/persistence/postgresql"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

const (
	defaultIdleTimeout  = 5 * time.Minute
	defaultReapInterval = 30 * time.Second
)

// NewTenantManager builds the shared connection manager from command flags.
func NewTenantManager(logger *slog.Logger, mainDSN, tenantDSNTemplate string) *tenant.Manager {
	return tenant.NewManager(logger, tenant.Config{
		MainDSN:           mainDSN,
		TenantDSNTemplate: tenantDSNTemplate,
		IdleTimeout:       defaultIdleTimeout,
		ReapInterval:      defaultReapInterval,
	})
}

// MigrateMainDatabase applies shared-schema migrations at startup.
func MigrateMainDatabase(ctx context.Context, logger *slog.Logger, manager *tenant.Manager) error {
	db, err := manager.Main(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach main database: %w", err)
	}

	return postgresql.MigrateMain(ctx, logger, db)
}

// MigrateTenantDatabase applies tenant-schema migrations to one tenant.
func MigrateTenantDatabase(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	_, err := postgresql.NewTenantPersistence(ctx, logger, db)

	return err
}
