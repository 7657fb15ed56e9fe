// Package models defines the core domain models for tenant workflow automation.
package models

import (
	"time"

	"github.com/gearboxhq/gearbox/pkg/schema"
)

// WorkflowType distinguishes the two automation families.
type WorkflowType string

const (
	WorkflowTypeEmailTrigger    WorkflowType = "email_trigger"    // Sends templated emails on match
	WorkflowTypeVehicleOutbound WorkflowType = "vehicle_outbound" // Posts remapped entity data to an external endpoint
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive   WorkflowStatus = "active"
	WorkflowStatusInactive WorkflowStatus = "inactive"
)

// TriggerType maps the mutating HTTP verb to the workflow trigger family.
type TriggerType string

const (
	TriggerTypeCreate TriggerType = "create"
	TriggerTypeUpdate TriggerType = "update"
	TriggerTypeDelete TriggerType = "delete"
)

// Workflow is a user-configured automation rule. It is written by the
// workflow editor and consumed read-only by the trigger engine.
type Workflow struct {
	ID            string         `json:"id"`
	TenantID      int64          `json:"tenant_id"      validate:"required,gt=0"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Type          WorkflowType   `json:"type"           validate:"required,oneof=email_trigger vehicle_outbound"`
	Status        WorkflowStatus `json:"status"         validate:"required,oneof=active inactive"`
	CreatedBy     string         `json:"created_by"`
	TriggerConfig TriggerConfig  `json:"trigger_config" validate:"required"`
	ExportConfig  ExportConfig   `json:"export_config"`
	AuthConfig    AuthConfig     `json:"auth_config"`
	TotalRuns     int64          `json:"total_runs"`
	SuccessRuns   int64          `json:"success_runs"`
	FailedRuns    int64          `json:"failed_runs"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TriggerConfig is the (schema + condition set) that activates a workflow.
type TriggerConfig struct {
	TargetSchema schema.Type `json:"target_schema" validate:"required"`
	TriggerType  TriggerType `json:"trigger_type"  validate:"required,oneof=create update delete"`
	Conditions   []Condition `json:"conditions"`
	// TriggerSchemas lets outbound workflows also fire for related records:
	// when the mutated entity is not of the target schema, a related record
	// of the declared schema is fetched via ReferenceField and the conditions
	// are evaluated against it instead.
	TriggerSchemas []TriggerSchema `json:"trigger_schemas,omitempty"`
}

// TriggerSchema declares an alternative trigger schema reached through a
// reference field on the mutated entity.
type TriggerSchema struct {
	Schema         schema.Type `json:"schema"          validate:"required"`
	ReferenceField string      `json:"reference_field" validate:"required"`
}

// ExportConfig carries the action side of a workflow. Email workflows use
// Templates; outbound workflows use the remaining fields.
type ExportConfig struct {
	Templates    map[string]EmailTemplate `json:"templates,omitempty"`
	URL          string                   `json:"url,omitempty"`
	FieldMapping map[string]string        `json:"field_mapping,omitempty"`
	RelatedData  []RelatedFetch           `json:"related_data,omitempty"`
	// NotifyOnFailure sends the error template when an action attempt fails.
	NotifyOnFailure bool `json:"notify_on_failure,omitempty"`
}

// EmailTemplate is a single template configuration node. Nodes are resolved
// by naming convention: keys ending in "_success" render on successful
// mutations, keys ending in "_error" on failures.
type EmailTemplate struct {
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
}

// RelatedFetch gathers extra fields from a related schema before an outbound
// post, keyed off a reference field on the triggering entity.
type RelatedFetch struct {
	Schema         schema.Type `json:"schema"`
	ReferenceField string      `json:"reference_field"`
	Fields         []string    `json:"fields"`
}

// AuthMode selects how outbound requests authenticate.
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeJWT    AuthMode = "jwt"     // Signed bearer JWT minted per request
	AuthModeAPIKey AuthMode = "api_key" // x-api-key / x-api-secret header pair
	AuthModeBearer AuthMode = "bearer"  // Static bearer token
)

// AuthConfig holds the credentials for the selected auth mode.
type AuthConfig struct {
	Mode      AuthMode `json:"mode"`
	Token     string   `json:"token,omitempty"`
	APIKey    string   `json:"api_key,omitempty"`
	APISecret string   `json:"api_secret,omitempty"`
	JWTSecret string   `json:"jwt_secret,omitempty"`
	JWTIssuer string   `json:"jwt_issuer,omitempty"`
}
