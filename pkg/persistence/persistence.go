package persistence

import (
	"context"

	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/schema"
)

// WorkflowRepository is the engine's read-only view of tenant workflows plus
// the rolling aggregate counters it maintains.
type WorkflowRepository interface {
	// ActiveByTriggerType returns every active workflow for the tenant whose
	// trigger type matches.
	ActiveByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)

	// ActiveBySchema narrows ActiveByTriggerType to a target schema.
	ActiveBySchema(ctx context.Context, triggerType models.TriggerType, target schema.Type) ([]*models.Workflow, error)

	// GetByID returns one workflow or ErrWorkflowNotFound.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)

	// IncrementRunCounters atomically bumps total and success/fail counters,
	// separate from the execution log write.
	IncrementRunCounters(ctx context.Context, workflowID string, status models.ExecutionStatus) error
}

// ExecutionLogRepository persists the append-only audit trail.
type ExecutionLogRepository interface {
	// Append writes exactly one immutable record for an attempt and fills in
	// the generated id.
	Append(ctx context.Context, entry *models.ExecutionLog) error

	// ListByWorkflow returns entries for a workflow, newest first.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error)
}
