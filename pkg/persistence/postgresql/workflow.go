package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/persistence"
	"github.com/gearboxhq/gearbox/pkg/schema"
)

const workflowColumns = `
	id
  , tenant_id
  , name
  , type
  , status
  , created_by
  , trigger_config
  , export_config
  , auth_config
  , total_runs
  , success_runs
  , failed_runs
  , created_at
  , updated_at
`

// WorkflowRepository reads workflow configurations from one tenant database.
// The engine consumes workflows read-only; only the aggregate run counters
// are written from this side.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// ActiveByTriggerType returns every active workflow whose configured trigger
// type matches.
func (r *WorkflowRepository) ActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE status = $1 AND trigger_config->>'trigger_type' = $2
		ORDER BY created_at
	`

	return r.queryWorkflows(ctx, query, models.WorkflowStatusActive, string(triggerType))
}

// ActiveBySchema narrows ActiveByTriggerType to a target schema.
func (r *WorkflowRepository) ActiveBySchema(ctx context.Context, triggerType models.TriggerType, target schema.Type) ([]*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE status = $1
		  AND trigger_config->>'trigger_type' = $2
		  AND trigger_config->>'target_schema' = $3
		ORDER BY created_at
	`

	return r.queryWorkflows(ctx, query, models.WorkflowStatusActive, string(triggerType), string(target))
}

// GetByID returns one workflow or persistence.ErrWorkflowNotFound.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT ` + workflowColumns + `
		FROM workflows
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// IncrementRunCounters atomically bumps the rolling aggregates on the parent
// workflow row. Kept separate from the execution log insert; the log is the
// durable record, the counters are a convenience.
func (r *WorkflowRepository) IncrementRunCounters(ctx context.Context, workflowID string, status models.ExecutionStatus) error {
	query := `
		UPDATE workflows
		SET total_runs = total_runs + 1
		  , success_runs = success_runs + CASE WHEN $2 = 'success' THEN 1 ELSE 0 END
		  , failed_runs = failed_runs + CASE WHEN $2 = 'failed' THEN 1 ELSE 0 END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, workflowID, string(status))
	if err != nil {
		return persistence.NewWorkflowError("IncrementRunCounters", workflowID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("IncrementRunCounters", workflowID, err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("IncrementRunCounters", workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// Save writes a workflow row. Used by fixtures and the (external) editor's
// persistence path; the engine itself never calls it.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	triggerJSON, err := json.Marshal(workflow.TriggerConfig)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	exportJSON, err := json.Marshal(workflow.ExportConfig)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	authJSON, err := json.Marshal(workflow.AuthConfig)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	query := `
		INSERT INTO workflows (
			id, tenant_id, name, type, status, created_by,
			trigger_config, export_config, auth_config,
			total_runs, success_runs, failed_runs, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			trigger_config = EXCLUDED.trigger_config,
			export_config = EXCLUDED.export_config,
			auth_config = EXCLUDED.auth_config,
			updated_at = NOW()
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.TenantID,
		workflow.Name,
		string(workflow.Type),
		string(workflow.Status),
		workflow.CreatedBy,
		triggerJSON,
		exportJSON,
		authJSON,
		workflow.TotalRuns,
		workflow.SuccessRuns,
		workflow.FailedRuns,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) queryWorkflows(ctx context.Context, query string, args ...any) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		triggerJSON []byte
		exportJSON  []byte
		authJSON    []byte
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.TenantID,
		&workflow.Name,
		&workflow.Type,
		&workflow.Status,
		&workflow.CreatedBy,
		&triggerJSON,
		&exportJSON,
		&authJSON,
		&workflow.TotalRuns,
		&workflow.SuccessRuns,
		&workflow.FailedRuns,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(triggerJSON, &workflow.TriggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode trigger config: %w", err)
	}

	err = json.Unmarshal(exportJSON, &workflow.ExportConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode export config: %w", err)
	}

	err = json.Unmarshal(authJSON, &workflow.AuthConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to decode auth config: %w", err)
	}

	return &workflow, nil
}
