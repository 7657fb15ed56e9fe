// Package events defines the post-commit events emitted by the persistence
// layer and consumed by the workflow trigger engine.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/gearboxhq/gearbox/pkg/models"
)

type EventType string

// Topic carries every entity mutation event.
const Topic = "gearbox.entity.events"

const EventTypeMetadataKey = "event_type"
const TenantMetadataKey = "tenant_id"

const (
	// EntityMutatedEvent is published after a business entity write has
	// committed and the HTTP response has been flushed.
	EntityMutatedEvent EventType = "entity.mutated"

	// WorkflowExecutedEvent is published after the engine finishes one
	// workflow attempt, success or failure.
	WorkflowExecutedEvent EventType = "workflow.executed"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TenantID  int64     `json:"tenant_id"`
}

// EntityMutated is the trigger entry contract handed off by controllers
// after a successful persist: the committed entity data plus enough request
// context to classify it.
type EntityMutated struct {
	BaseEvent

	EntityData  map[string]any `json:"entity_data"`
	RequestPath string         `json:"request_path"`
	HTTPVerb    string         `json:"http_verb"`
}

func (e EntityMutated) GetType() EventType {
	return EntityMutatedEvent
}

// NewEntityMutated stamps a fresh event envelope for a tenant. Callers fill
// in the entity data and request context before publishing.
func NewEntityMutated(tenantID int64) *EntityMutated {
	return &EntityMutated{
		BaseEvent: BaseEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Type:      EntityMutatedEvent,
			Timestamp: time.Now().UTC(),
			TenantID:  tenantID,
		},
	}
}

// WorkflowExecuted reports one finished attempt for observability consumers.
type WorkflowExecuted struct {
	BaseEvent

	WorkflowID string                 `json:"workflow_id"`
	Status     models.ExecutionStatus `json:"status"`
	DurationMS int64                  `json:"duration_ms"`
	Error      string                 `json:"error,omitempty"`
}

func (e WorkflowExecuted) GetType() EventType {
	return WorkflowExecutedEvent
}

// NewWorkflowExecuted reports one finished workflow attempt.
func NewWorkflowExecuted(tenantID int64, workflowID string, status models.ExecutionStatus, durationMS int64, errText string) *WorkflowExecuted {
	return &WorkflowExecuted{
		BaseEvent: BaseEvent{
			ID:        uuid.Must(uuid.NewV7()).String(),
			Type:      WorkflowExecutedEvent,
			Timestamp: time.Now().UTC(),
			TenantID:  tenantID,
		},
		WorkflowID: workflowID,
		Status:     status,
		DurationMS: durationMS,
		Error:      errText,
	}
}
