// Package schema classifies arbitrary entity payloads into the closed set of
// schema types known to the platform.
package schema

// Type is the canonical tag for an entity payload's shape.
type Type string

const (
	TypeVehicle        Type = "vehicle"
	TypeMasterVehicle  Type = "master_vehicle"
	TypeWorkshop       Type = "workshop"
	TypeWorkshopReport Type = "workshop_report"
	TypeWorkshopQuote  Type = "workshop_quote"
	TypeCustomer       Type = "customer"
	TypeInvoice        Type = "invoice"
	TypeTransportJob   Type = "transport_job"
	TypeUnknown        Type = "unknown"
)

// All lists every classifiable type, excluding TypeUnknown.
func All() []Type {
	return []Type{
		TypeVehicle,
		TypeMasterVehicle,
		TypeWorkshop,
		TypeWorkshopReport,
		TypeWorkshopQuote,
		TypeCustomer,
		TypeInvoice,
		TypeTransportJob,
	}
}

// IsValid reports whether t is a member of the closed type set.
func IsValid(t Type) bool {
	if t == TypeUnknown {
		return true
	}

	for _, known := range All() {
		if t == known {
			return true
		}
	}

	return false
}
