package web

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gearboxhq/gearbox/pkg/models"
)

// triggerConfigSchema constrains the trigger document beyond struct tags:
// operator and logic values, and the shape of trigger schema entries.
var triggerConfigSchema = map[string]any{
	"type":     "object",
	"required": []any{"target_schema", "trigger_type"},
	"properties": map[string]any{
		"target_schema": map[string]any{"type": "string", "minLength": 1},
		"trigger_type": map[string]any{
			"type": "string",
			"enum": []any{"create", "update", "delete"},
		},
		"conditions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"field", "operator"},
				"properties": map[string]any{
					"field": map[string]any{"type": "string", "minLength": 1},
					"operator": map[string]any{
						"type": "string",
						"enum": []any{
							"equals", "not_equals",
							"contains", "not_contains",
							"greater_than", "less_than",
							"greater_than_or_equal", "less_than_or_equal",
							"is_true", "is_false",
							"is_empty", "is_not_empty",
							"in", "not_in",
						},
					},
					"value": map[string]any{"type": "string"},
					"logic": map[string]any{
						"type": "string",
						"enum": []any{"AND", "OR"},
					},
				},
			},
		},
		"trigger_schemas": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"schema", "reference_field"},
				"properties": map[string]any{
					"schema":          map[string]any{"type": "string", "minLength": 1},
					"reference_field": map[string]any{"type": "string", "minLength": 1},
				},
			},
		},
	},
}

var exportConfigSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{"type": "string"},
		"field_mapping": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"templates": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type":     "object",
				"required": []any{"subject", "body"},
				"properties": map[string]any{
					"subject":    map[string]any{"type": "string", "minLength": 1},
					"body":       map[string]any{"type": "string"},
					"recipients": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
			},
		},
	},
}

// ValidateWorkflowConfig checks the config documents against their JSON
// schemas and enforces the per-type requirements struct tags cannot express.
func ValidateWorkflowConfig(req *CreateWorkflowRequest) error {
	err := validateDocument(req.TriggerConfig, triggerConfigSchema, "trigger_config")
	if err != nil {
		return err
	}

	err = validateDocument(req.ExportConfig, exportConfigSchema, "export_config")
	if err != nil {
		return err
	}

	switch req.Type {
	case models.WorkflowTypeEmailTrigger:
		if len(req.ExportConfig.Templates) == 0 {
			return fmt.Errorf("email workflows require at least one template")
		}

	case models.WorkflowTypeVehicleOutbound:
		if req.ExportConfig.URL == "" {
			return fmt.Errorf("outbound workflows require an export url")
		}
	}

	return nil
}

func validateDocument(doc any, documentSchema map[string]any, name string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	var asMap map[string]any

	err = json.Unmarshal(raw, &asMap)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}

	schemaLoader := gojsonschema.NewGoLoader(documentSchema)
	documentLoader := gojsonschema.NewGoLoader(asMap)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("%s validation failed: %w", name, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("%s invalid: %s", name, strings.Join(details, "; "))
	}

	return nil
}
