// Package web provides the HTTP surface: entity mutation ingest, workflow
// management and execution history endpoints.
package web

import (
	"time"

	"github.com/gearboxhq/gearbox/pkg/models"
)

// IngestEventRequest is the body accepted by the internal events endpoint.
// Application services post it after an entity write has committed.
type IngestEventRequest struct {
	EntityData  map[string]any `json:"entity_data"  validate:"required"`
	RequestPath string         `json:"request_path" validate:"required"`
	HTTPVerb    string         `json:"http_verb"    validate:"required,oneof=POST PUT PATCH DELETE"`
}

// CreateWorkflowRequest represents the request body for creating a workflow.
type CreateWorkflowRequest struct {
	Name          string               `json:"name"           validate:"required,min=3"`
	Type          models.WorkflowType  `json:"type"           validate:"required,oneof=email_trigger vehicle_outbound"`
	CreatedBy     string               `json:"created_by"`
	TriggerConfig models.TriggerConfig `json:"trigger_config" validate:"required"`
	ExportConfig  models.ExportConfig  `json:"export_config"`
	AuthConfig    models.AuthConfig    `json:"auth_config"`
}

// UpdateWorkflowStatusRequest toggles a workflow active or inactive.
type UpdateWorkflowStatusRequest struct {
	Status models.WorkflowStatus `json:"status" validate:"required,oneof=active inactive"`
}

// WorkflowResponse is the read model returned for a workflow, including run
// counters.
type WorkflowResponse struct {
	ID            string                `json:"id"`
	TenantID      int64                 `json:"tenant_id"`
	Name          string                `json:"name"`
	Type          models.WorkflowType   `json:"type"`
	Status        models.WorkflowStatus `json:"status"`
	CreatedBy     string                `json:"created_by"`
	TriggerConfig models.TriggerConfig  `json:"trigger_config"`
	ExportConfig  models.ExportConfig   `json:"export_config"`
	TotalRuns     int64                 `json:"total_runs"`
	SuccessRuns   int64                 `json:"success_runs"`
	FailedRuns    int64                 `json:"failed_runs"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// TransformWorkflowResponse filters a workflow for API consumers. Auth
// credentials never leave the server.
func TransformWorkflowResponse(workflow *models.Workflow) WorkflowResponse {
	return WorkflowResponse{
		ID:            workflow.ID,
		TenantID:      workflow.TenantID,
		Name:          workflow.Name,
		Type:          workflow.Type,
		Status:        workflow.Status,
		CreatedBy:     workflow.CreatedBy,
		TriggerConfig: workflow.TriggerConfig,
		ExportConfig:  workflow.ExportConfig,
		TotalRuns:     workflow.TotalRuns,
		SuccessRuns:   workflow.SuccessRuns,
		FailedRuns:    workflow.FailedRuns,
		CreatedAt:     workflow.CreatedAt,
		UpdatedAt:     workflow.UpdatedAt,
	}
}

// ExecutionLogResponse is one entry of a workflow's execution history.
type ExecutionLogResponse struct {
	ID            string                 `json:"id"`
	WorkflowID    string                 `json:"workflow_id"`
	StartedAt     time.Time              `json:"started_at"`
	CompletedAt   time.Time              `json:"completed_at"`
	DurationMS    int64                  `json:"duration_ms"`
	Status        models.ExecutionStatus `json:"status"`
	EntityResults []models.EntityResult  `json:"entity_results"`
	EmailStatus   string                 `json:"email_status,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// TransformExecutionLogResponse drops the raw request payload from history
// listings; it stays available in storage for forensics.
func TransformExecutionLogResponse(entry *models.ExecutionLog) ExecutionLogResponse {
	return ExecutionLogResponse{
		ID:            entry.ID,
		WorkflowID:    entry.WorkflowID,
		StartedAt:     entry.StartedAt,
		CompletedAt:   entry.CompletedAt,
		DurationMS:    entry.DurationMS,
		Status:        entry.Status,
		EntityResults: entry.EntityResults,
		EmailStatus:   entry.EmailStatus,
		Error:         entry.Error,
	}
}
