package schema

import "strings"

// pathRule matches a request path by substring. Rules are checked in order,
// so more specific patterns must come before their prefixes
// ("/workshop-report" before "/workshop").
type pathRule struct {
	pattern string
	tag     Type
}

// signatureRule matches an entity by its structural shape: all required
// fields present, plus optional exact field values.
type signatureRule struct {
	required []string
	equals   map[string]string
	tag      Type
}

var pathRules = []pathRule{
	{pattern: "/workshop-report", tag: TypeWorkshopReport},
	{pattern: "/workshop-quote", tag: TypeWorkshopQuote},
	{pattern: "/workshop", tag: TypeWorkshop},
	{pattern: "/master-vehicle", tag: TypeMasterVehicle},
	{pattern: "/vehicle", tag: TypeVehicle},
	{pattern: "/customer", tag: TypeCustomer},
	{pattern: "/invoice", tag: TypeInvoice},
	{pattern: "/transport-job", tag: TypeTransportJob},
}

var signatureRules = []signatureRule{
	{
		required: []string{"vehicle_stock_id", "vin"},
		equals:   map[string]string{"vehicle_type": "master"},
		tag:      TypeMasterVehicle,
	},
	{
		required: []string{"vehicle_stock_id", "vin"},
		tag:      TypeVehicle,
	},
	{
		required: []string{"workshop_report_id", "inspection_items"},
		tag:      TypeWorkshopReport,
	},
	{
		required: []string{"quote_number", "workshop_id"},
		tag:      TypeWorkshopQuote,
	},
	{
		required: []string{"workshop_id", "booking_date"},
		tag:      TypeWorkshop,
	},
	{
		required: []string{"customer_id", "email"},
		tag:      TypeCustomer,
	},
	{
		required: []string{"invoice_number", "amount_due"},
		tag:      TypeInvoice,
	},
	{
		required: []string{"transport_job_id", "pickup_location"},
		tag:      TypeTransportJob,
	},
}

// Detect classifies an entity payload. Phase 1 matches the request path
// against the ordered substring table; phase 2 falls back to structural
// signature matching on the entity's own fields. Returns TypeUnknown when
// no rule matches.
func Detect(entity map[string]any, requestPath string) Type {
	if requestPath != "" {
		for _, rule := range pathRules {
			if strings.Contains(requestPath, rule.pattern) {
				return rule.tag
			}
		}
	}

	if entity == nil {
		return TypeUnknown
	}

	for _, rule := range signatureRules {
		if matchSignature(entity, rule) {
			return rule.tag
		}
	}

	return TypeUnknown
}

func matchSignature(entity map[string]any, rule signatureRule) bool {
	for _, field := range rule.required {
		value, ok := entity[field]
		if !ok || value == nil {
			return false
		}
	}

	for field, expected := range rule.equals {
		value, ok := entity[field].(string)
		if !ok || value != expected {
			return false
		}
	}

	return true
}
