package models

import "time"

// ExecutionStatus is the terminal outcome of one workflow attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "success"
	ExecutionStatusFailed  ExecutionStatus = "failed"
)

// ExecutionLog is the immutable audit record of one workflow evaluation
// attempt. Exactly one record is written per attempted trigger regardless of
// outcome; records are never mutated after creation. Field names are part of
// the reporting contract and must stay stable.
type ExecutionLog struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id"       validate:"required"`
	TenantID       int64           `json:"tenant_id"         validate:"required,gt=0"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	DurationMS     int64           `json:"duration_ms"`
	Status         ExecutionStatus `json:"status"            validate:"required,oneof=success failed"`
	RequestPayload map[string]any  `json:"request_payload"`
	EntityResults  []EntityResult  `json:"per_entity_results"`
	EmailStatus    string          `json:"email_status,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// EntityResult records the outcome for one entity touched by the attempt.
type EntityResult struct {
	EntityID string `json:"entity_id"`
	Schema   string `json:"schema"`
	Success  bool   `json:"success"`
	Detail   string `json:"detail,omitempty"`
}
