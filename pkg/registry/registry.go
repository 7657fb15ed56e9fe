// Package registry is the static catalog routing entity names to their home
// database. The catalog is a closed, enumerated set: an unregistered name is
// a programming error surfaced at startup or as a 500, never a silent lookup
// miss at runtime.
package registry

import (
	"errors"

	"github.com/gearboxhq/gearbox/pkg/schema"
)

// ErrUnknownModel indicates a model name outside the registered catalog.
var ErrUnknownModel = errors.New("unknown model")

// Home says which physical database a model lives in.
type Home string

const (
	HomeMain   Home = "main"
	HomeTenant Home = "tenant"
)

// Name identifies a registered model.
type Name string

// Main-database models, shared across tenants.
const (
	ModelAccount Name = "account"
	ModelPlan    Name = "plan"
	ModelCompany Name = "company"
)

// Tenant-database models.
const (
	ModelVehicle         Name = "vehicle"
	ModelMasterVehicle   Name = "master_vehicle"
	ModelWorkshop        Name = "workshop"
	ModelWorkshopReport  Name = "workshop_report"
	ModelWorkshopQuote   Name = "workshop_quote"
	ModelCustomer        Name = "customer"
	ModelInvoice         Name = "invoice"
	ModelTransportJob    Name = "transport_job"
	ModelWorkflow        Name = "workflow"
	ModelExecutionLog    Name = "workflow_execution_log"
	ModelIdempotencyKey  Name = "idempotency_key"
	ModelRateLimitWindow Name = "rate_limit_window"
)

// Binding is one read-only catalog entry.
type Binding struct {
	Name     Name
	Home     Home
	Table    string
	IDColumn string
}

var catalog = map[Name]Binding{
	ModelAccount: {Name: ModelAccount, Home: HomeMain, Table: "accounts", IDColumn: "id"},
	ModelPlan:    {Name: ModelPlan, Home: HomeMain, Table: "plans", IDColumn: "id"},
	ModelCompany: {Name: ModelCompany, Home: HomeMain, Table: "companies", IDColumn: "id"},

	ModelVehicle:         {Name: ModelVehicle, Home: HomeTenant, Table: "vehicles", IDColumn: "id"},
	ModelMasterVehicle:   {Name: ModelMasterVehicle, Home: HomeTenant, Table: "master_vehicles", IDColumn: "id"},
	ModelWorkshop:        {Name: ModelWorkshop, Home: HomeTenant, Table: "workshops", IDColumn: "id"},
	ModelWorkshopReport:  {Name: ModelWorkshopReport, Home: HomeTenant, Table: "workshop_reports", IDColumn: "id"},
	ModelWorkshopQuote:   {Name: ModelWorkshopQuote, Home: HomeTenant, Table: "workshop_quotes", IDColumn: "id"},
	ModelCustomer:        {Name: ModelCustomer, Home: HomeTenant, Table: "customers", IDColumn: "id"},
	ModelInvoice:         {Name: ModelInvoice, Home: HomeTenant, Table: "invoices", IDColumn: "id"},
	ModelTransportJob:    {Name: ModelTransportJob, Home: HomeTenant, Table: "transport_jobs", IDColumn: "id"},
	ModelWorkflow:        {Name: ModelWorkflow, Home: HomeTenant, Table: "workflows", IDColumn: "id"},
	ModelExecutionLog:    {Name: ModelExecutionLog, Home: HomeTenant, Table: "workflow_execution_logs", IDColumn: "id"},
	ModelIdempotencyKey:  {Name: ModelIdempotencyKey, Home: HomeTenant, Table: "idempotency_keys", IDColumn: "key"},
	ModelRateLimitWindow: {Name: ModelRateLimitWindow, Home: HomeTenant, Table: "rate_limit_windows", IDColumn: "key"},
}

// schemaModels maps detector schema types onto their backing model.
var schemaModels = map[schema.Type]Name{
	schema.TypeVehicle:        ModelVehicle,
	schema.TypeMasterVehicle:  ModelMasterVehicle,
	schema.TypeWorkshop:       ModelWorkshop,
	schema.TypeWorkshopReport: ModelWorkshopReport,
	schema.TypeWorkshopQuote:  ModelWorkshopQuote,
	schema.TypeCustomer:       ModelCustomer,
	schema.TypeInvoice:        ModelInvoice,
	schema.TypeTransportJob:   ModelTransportJob,
}

// IsRegistered reports whether name is in the catalog.
func IsRegistered(name Name) bool {
	_, ok := catalog[name]

	return ok
}

// IsMainModel reports whether name lives in the shared main database.
func IsMainModel(name Name) bool {
	binding, ok := catalog[name]

	return ok && binding.Home == HomeMain
}

// IsCompanyModel reports whether name lives in the per-tenant database.
func IsCompanyModel(name Name) bool {
	binding, ok := catalog[name]

	return ok && binding.Home == HomeTenant
}

// Lookup returns the catalog entry for name.
func Lookup(name Name) (Binding, error) {
	binding, ok := catalog[name]
	if !ok {
		return Binding{}, ErrUnknownModel
	}

	return binding, nil
}

// ForSchema resolves a detector schema type to its backing model name.
func ForSchema(t schema.Type) (Name, error) {
	name, ok := schemaModels[t]
	if !ok {
		return "", ErrUnknownModel
	}

	return name, nil
}

// Names returns every registered model name. Order is not defined.
func Names() []Name {
	names := make([]Name, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}

	return names
}
