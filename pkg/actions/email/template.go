package email

import (
	"fmt"
	"strings"
)

// knownFields are assigned explicitly, in this order, before any raw entity
// fields are merged in. Templates can rely on every one of them existing;
// absent values fall back to the "N/A" literal.
var knownFields = []string{
	"vehicle_stock_id",
	"vin",
	"make",
	"model",
	"registration",
	"customer_name",
	"customer_email",
	"workshop_id",
	"status",
}

const missingValue = "N/A"

// TemplateData shapes an entity for rendering: first the known field set is
// explicitly assigned with the "N/A" fallback, then all remaining raw entity
// fields are merged on top. The two phases run in that fixed order so
// templates never break on missing data.
func TemplateData(entity map[string]any) map[string]any {
	data := make(map[string]any, len(knownFields)+len(entity))

	for _, field := range knownFields {
		value, ok := entity[field]
		if !ok || value == nil || value == "" {
			data[field] = missingValue

			continue
		}

		data[field] = value
	}

	for key, value := range entity {
		if _, assigned := data[key]; assigned {
			continue
		}

		data[key] = value
	}

	return data
}

// Render substitutes {{field}} placeholders from the shaped data. Unknown
// placeholders render as "N/A" rather than leaking template syntax.
func Render(template string, data map[string]any) string {
	result := template

	for key, value := range data {
		result = strings.ReplaceAll(result, "{{"+key+"}}", fmt.Sprintf("%v", value))
	}

	for {
		start := strings.Index(result, "{{")
		if start < 0 {
			break
		}

		end := strings.Index(result[start:], "}}")
		if end < 0 {
			break
		}

		result = result[:start] + missingValue + result[start+end+2:]
	}

	return result
}
