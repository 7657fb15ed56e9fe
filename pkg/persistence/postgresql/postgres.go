// Package postgresql implements the persistence contracts on PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/gearboxhq/gearbox/pkg/persistence/sqlbase"
)

// TenantPersistence bundles the repositories living in one tenant database.
type TenantPersistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflows     *WorkflowRepository
	executionLogs *ExecutionLogRepository
}

// NewTenantPersistence wires the tenant repositories onto an existing
// connection (owned by the tenant connection manager, not closed here) and
// runs the tenant schema migrations.
func NewTenantPersistence(ctx context.Context, logger *slog.Logger, db *sql.DB) (*TenantPersistence, error) {
	migrationManager := sqlbase.NewMigrationManager(logger, db, tenantMigrations())

	err := migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run tenant migrations: %w", err)
	}

	return &TenantPersistence{
		db:            db,
		logger:        logger,
		workflows:     NewWorkflowRepository(db, logger),
		executionLogs: NewExecutionLogRepository(db, logger),
	}, nil
}

// Workflows returns the workflow repository.
func (p *TenantPersistence) Workflows() *WorkflowRepository {
	return p.workflows
}

// ExecutionLogs returns the execution log repository.
func (p *TenantPersistence) ExecutionLogs() *ExecutionLogRepository {
	return p.executionLogs
}

// HealthCheck verifies the database connection is healthy.
func (p *TenantPersistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// MigrateMain applies the shared-database schema. Called once at startup
// against the main connection.
func MigrateMain(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	migrationManager := sqlbase.NewMigrationManager(logger, db, mainMigrations())

	err := migrationManager.RunMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to run main migrations: %w", err)
	}

	return nil
}
