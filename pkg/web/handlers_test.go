package web_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/events"
	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/schema"
	"github.com/gearboxhq/gearbox/pkg/tenant"
	"github.com/gearboxhq/gearbox/pkg/web"
)

type capturingBus struct {
	published []eventbus.Event
	keys      []string
}

func (b *capturingBus) Publish(_ context.Context, key string, event eventbus.Event) error {
	b.published = append(b.published, event)
	b.keys = append(b.keys, key)

	return nil
}

func (b *capturingBus) Subscribe(_ context.Context) error { return nil }

func (b *capturingBus) Handle(_ events.EventType, _ eventbus.EventHandler) {}

func (b *capturingBus) Close() error { return nil }

func (b *capturingBus) GenerateID() string { return "test-id" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *tenant.Manager {
	t.Helper()

	manager := tenant.NewManager(testLogger(), tenant.Config{
		MainDSN:           "postgres://main",
		TenantDSNTemplate: "postgres://tenant-%d",
	})
	manager.SetOpenFunc(func(_ context.Context, dsn string) (*sql.DB, error) {
		return sql.Open("postgres", dsn)
	})
	t.Cleanup(func() { _ = manager.Close() })

	return manager
}

func setupTestApp(t *testing.T) (*fiber.App, *capturingBus) {
	t.Helper()

	manager := newTestManager(t)
	bus := &capturingBus{}

	handlers := web.NewAPIHandlers(testLogger(), manager, bus,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()
	app.Use(web.TenantScope(manager))

	app.Post("/internal/events", handlers.IngestEvent)
	app.Get("/schemas", handlers.GetSchemas)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id/status", handlers.UpdateWorkflowStatus)
	w.Get("/:id/executions", handlers.ListExecutions)

	return app, bus
}

func TestIngestEvent_PublishesMutation(t *testing.T) {
	t.Parallel()

	app, bus := setupTestApp(t)

	body, err := json.Marshal(web.IngestEventRequest{
		EntityData:  map[string]any{"id": "v-1", "status": "sold"},
		RequestPath: "/api/vehicle/v-1",
		HTTPVerb:    "PUT",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/internal/events", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.TenantHeader, "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, bus.published, 1)

	event, ok := bus.published[0].(*events.EntityMutated)
	require.True(t, ok)
	assert.Equal(t, int64(42), event.TenantID)
	assert.Equal(t, "PUT", event.HTTPVerb)
	assert.Equal(t, "/api/vehicle/v-1", event.RequestPath)
	assert.Equal(t, []string{"42"}, bus.keys)
}

func TestIngestEvent_RequiresTenant(t *testing.T) {
	t.Parallel()

	app, bus := setupTestApp(t)

	body, err := json.Marshal(web.IngestEventRequest{
		EntityData:  map[string]any{"id": "v-1"},
		RequestPath: "/api/vehicle/v-1",
		HTTPVerb:    "PUT",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/internal/events", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, bus.published)
}

func TestIngestEvent_RejectsNonMutatingVerb(t *testing.T) {
	t.Parallel()

	app, bus := setupTestApp(t)

	body, err := json.Marshal(web.IngestEventRequest{
		EntityData:  map[string]any{"id": "v-1"},
		RequestPath: "/api/vehicle/v-1",
		HTTPVerb:    "GET",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/internal/events", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.TenantHeader, "42")

	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, bus.published)
}

func TestTenantScope_RejectsMalformedTenantHeader(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	tests := []struct {
		name   string
		header string
	}{
		{"not a number", "abc"},
		{"zero", "0"},
		{"negative", "-3"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/schemas", nil)
			req.Header.Set(web.TenantHeader, tc.header)

			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetSchemas_ListsClosedSet(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/schemas", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Schemas []string `json:"schemas"`
	}

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.Contains(t, parsed.Schemas, string(schema.TypeVehicle))
	assert.Contains(t, parsed.Schemas, string(schema.TypeWorkshopReport))
	assert.NotContains(t, parsed.Schemas, string(schema.TypeUnknown))
}

func TestCreateWorkflow_ValidationErrors(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	tests := []struct {
		name          string
		request       web.CreateWorkflowRequest
		expectedError string
	}{
		{
			name: "missing name",
			request: web.CreateWorkflowRequest{
				Type: models.WorkflowTypeEmailTrigger,
				TriggerConfig: models.TriggerConfig{
					TargetSchema: schema.TypeVehicle,
					TriggerType:  models.TriggerTypeUpdate,
				},
			},
			expectedError: "Name",
		},
		{
			name: "unknown workflow type",
			request: web.CreateWorkflowRequest{
				Name: "Broken workflow",
				Type: "carrier_pigeon",
				TriggerConfig: models.TriggerConfig{
					TargetSchema: schema.TypeVehicle,
					TriggerType:  models.TriggerTypeUpdate,
				},
			},
			expectedError: "Type",
		},
		{
			name: "unknown target schema",
			request: web.CreateWorkflowRequest{
				Name: "Broken workflow",
				Type: models.WorkflowTypeEmailTrigger,
				TriggerConfig: models.TriggerConfig{
					TargetSchema: "spaceship",
					TriggerType:  models.TriggerTypeUpdate,
				},
				ExportConfig: models.ExportConfig{
					Templates: map[string]models.EmailTemplate{
						"s_success": {Subject: "s", Body: "b"},
					},
				},
			},
			expectedError: "target schema",
		},
		{
			name: "email workflow without templates",
			request: web.CreateWorkflowRequest{
				Name: "No templates",
				Type: models.WorkflowTypeEmailTrigger,
				TriggerConfig: models.TriggerConfig{
					TargetSchema: schema.TypeVehicle,
					TriggerType:  models.TriggerTypeUpdate,
				},
			},
			expectedError: "template",
		},
		{
			name: "outbound workflow without url",
			request: web.CreateWorkflowRequest{
				Name: "No url",
				Type: models.WorkflowTypeVehicleOutbound,
				TriggerConfig: models.TriggerConfig{
					TargetSchema: schema.TypeVehicle,
					TriggerType:  models.TriggerTypeUpdate,
				},
			},
			expectedError: "url",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			body, err := json.Marshal(tc.request)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/workflows/", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(web.TenantHeader, "42")

			resp, err := app.Test(req)
			require.NoError(t, err)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			raw, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(raw), tc.expectedError)
		})
	}
}

func TestValidateWorkflowConfig(t *testing.T) {
	t.Parallel()

	valid := web.CreateWorkflowRequest{
		Name: "Valid workflow",
		Type: models.WorkflowTypeVehicleOutbound,
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
			Conditions: []models.Condition{
				{Field: "status", Operator: models.OperatorEquals, Value: "sold"},
				{Field: "vin", Operator: models.OperatorIsNotEmpty, Logic: models.LogicAnd},
			},
		},
		ExportConfig: models.ExportConfig{URL: "https://export.example/v1"},
	}

	assert.NoError(t, web.ValidateWorkflowConfig(&valid))

	badOperator := valid
	badOperator.TriggerConfig.Conditions = []models.Condition{
		{Field: "status", Operator: "resembles", Value: "sold"},
	}

	err := web.ValidateWorkflowConfig(&badOperator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger_config")

	badLogic := valid
	badLogic.TriggerConfig.Conditions = []models.Condition{
		{Field: "status", Operator: models.OperatorEquals, Value: "sold"},
		{Field: "vin", Operator: models.OperatorIsNotEmpty, Logic: "XOR"},
	}

	err = web.ValidateWorkflowConfig(&badLogic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger_config")
}
