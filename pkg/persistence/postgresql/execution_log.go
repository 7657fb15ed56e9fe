package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/google/uuid"
)

// ExecutionLogRepository persists the append-only workflow audit trail.
// There is no update path: a written entry is never touched again.
type ExecutionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionLogRepository creates a new execution log repository.
func NewExecutionLogRepository(db *sql.DB, logger *slog.Logger) *ExecutionLogRepository {
	return &ExecutionLogRepository{db: db, logger: logger}
}

// Append writes exactly one record for an attempt and fills in the
// generated id.
func (r *ExecutionLogRepository) Append(ctx context.Context, entry *models.ExecutionLog) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution log ID: %w", err)
		}

		entry.ID = id.String()
	}

	payloadJSON, err := json.Marshal(entry.RequestPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal request payload: %w", err)
	}

	resultsJSON, err := json.Marshal(entry.EntityResults)
	if err != nil {
		return fmt.Errorf("failed to marshal entity results: %w", err)
	}

	query := `
		INSERT INTO workflow_execution_logs (
			id, workflow_id, tenant_id, started_at, completed_at,
			duration_ms, status, request_payload, per_entity_results,
			email_status, error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.WorkflowID,
		entry.TenantID,
		entry.StartedAt,
		entry.CompletedAt,
		entry.DurationMS,
		string(entry.Status),
		payloadJSON,
		resultsJSON,
		entry.EmailStatus,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

// ListByWorkflow returns entries for one workflow, newest first.
func (r *ExecutionLogRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id
		  , workflow_id
		  , tenant_id
		  , started_at
		  , completed_at
		  , duration_ms
		  , status
		  , request_payload
		  , per_entity_results
		  , email_status
		  , error
		FROM workflow_execution_logs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			entry       models.ExecutionLog
			payloadJSON []byte
			resultsJSON []byte
		)

		err := rows.Scan(
			&entry.ID,
			&entry.WorkflowID,
			&entry.TenantID,
			&entry.StartedAt,
			&entry.CompletedAt,
			&entry.DurationMS,
			&entry.Status,
			&payloadJSON,
			&resultsJSON,
			&entry.EmailStatus,
			&entry.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		err = json.Unmarshal(payloadJSON, &entry.RequestPayload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode request payload: %w", err)
		}

		err = json.Unmarshal(resultsJSON, &entry.EntityResults)
		if err != nil {
			return nil, fmt.Errorf("failed to decode entity results: %w", err)
		}

		entries = append(entries, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return entries, nil
}
