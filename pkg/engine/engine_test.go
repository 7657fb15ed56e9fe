package engine

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/events"
	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/otelhelper"
	"github.com/gearboxhq/gearbox/pkg/persistence"
	"github.com/gearboxhq/gearbox/pkg/schema"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

type fakeWorkflowRepo struct {
	workflows []*models.Workflow
	counters  map[string][]models.ExecutionStatus
	loadErr   error
}

func (f *fakeWorkflowRepo) ActiveByTriggerType(_ context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}

	var matched []*models.Workflow

	for _, workflow := range f.workflows {
		if workflow.Status == models.WorkflowStatusActive && workflow.TriggerConfig.TriggerType == triggerType {
			matched = append(matched, workflow)
		}
	}

	return matched, nil
}

func (f *fakeWorkflowRepo) ActiveBySchema(ctx context.Context, triggerType models.TriggerType, target schema.Type) ([]*models.Workflow, error) {
	workflows, err := f.ActiveByTriggerType(ctx, triggerType)
	if err != nil {
		return nil, err
	}

	var matched []*models.Workflow

	for _, workflow := range workflows {
		if workflow.TriggerConfig.TargetSchema == target {
			matched = append(matched, workflow)
		}
	}

	return matched, nil
}

func (f *fakeWorkflowRepo) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	for _, workflow := range f.workflows {
		if workflow.ID == id {
			return workflow, nil
		}
	}

	return nil, persistence.ErrWorkflowNotFound
}

func (f *fakeWorkflowRepo) IncrementRunCounters(_ context.Context, workflowID string, status models.ExecutionStatus) error {
	if f.counters == nil {
		f.counters = make(map[string][]models.ExecutionStatus)
	}

	f.counters[workflowID] = append(f.counters[workflowID], status)

	return nil
}

type fakeLogRepo struct {
	entries []*models.ExecutionLog
}

func (f *fakeLogRepo) Append(_ context.Context, entry *models.ExecutionLog) error {
	f.entries = append(f.entries, entry)

	return nil
}

func (f *fakeLogRepo) ListByWorkflow(_ context.Context, workflowID string, _ int) ([]*models.ExecutionLog, error) {
	var matched []*models.ExecutionLog

	for _, entry := range f.entries {
		if entry.WorkflowID == workflowID {
			matched = append(matched, entry)
		}
	}

	return matched, nil
}

type fakeMailer struct {
	sent    atomic.Int64
	lastTo  []string
	sendErr error
}

func (f *fakeMailer) Send(_ context.Context, to []string, _, _ string) error {
	if f.sendErr != nil {
		return f.sendErr
	}

	f.sent.Add(1)
	f.lastTo = to

	return nil
}

type fakeFetcher struct {
	records map[string]map[string]any
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, _ *tenant.Scope, t schema.Type, id string) (map[string]any, error) {
	f.fetched = append(f.fetched, string(t)+"/"+id)

	record, ok := f.records[string(t)+"/"+id]
	if !ok {
		return nil, errors.New("record not found")
	}

	return record, nil
}

type fakeBus struct {
	keys      []string
	published []eventbus.Event
}

func (f *fakeBus) Publish(_ context.Context, key string, event eventbus.Event) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, event)

	return nil
}

func (f *fakeBus) Subscribe(_ context.Context) error { return nil }

func (f *fakeBus) Handle(_ events.EventType, _ eventbus.EventHandler) {}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) GenerateID() string { return "test-id" }

func engineTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *tenant.Manager {
	t.Helper()

	manager := tenant.NewManager(engineTestLogger(), tenant.Config{
		MainDSN:           "postgres://main",
		TenantDSNTemplate: "postgres://tenant-%d",
	})
	manager.SetOpenFunc(func(_ context.Context, dsn string) (*sql.DB, error) {
		return sql.Open("postgres", dsn)
	})
	t.Cleanup(func() { _ = manager.Close() })

	return manager
}

func newTestEngine(t *testing.T, repo *fakeWorkflowRepo, logs *fakeLogRepo, mailer *fakeMailer, fetcher *fakeFetcher) *Engine {
	t.Helper()

	if fetcher == nil {
		fetcher = &fakeFetcher{}
	}

	return New(engineTestLogger(), newTestManager(t), Config{
		Mailer: mailer,
		Repos: func(_ *sql.DB, _ *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository) {
			return repo, logs
		},
		Fetch: fetcher,
	})
}

func emailWorkflow(id string, conditions []models.Condition) *models.Workflow {
	return &models.Workflow{
		ID:        id,
		TenantID:  42,
		Name:      "notify sales on vehicle update",
		Type:      models.WorkflowTypeEmailTrigger,
		Status:    models.WorkflowStatusActive,
		CreatedBy: "owner@dealer.example",
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
			Conditions:   conditions,
		},
		ExportConfig: models.ExportConfig{
			Templates: map[string]models.EmailTemplate{
				"vehicle_success": {
					Subject:    "Vehicle {{vehicle_stock_id}} updated",
					Body:       "VIN {{vin}}",
					Recipients: []string{"sales@dealer.example"},
				},
			},
		},
	}
}

func vehicleUpdateEvent(entity map[string]any) *events.EntityMutated {
	event := events.NewEntityMutated(42)
	event.EntityData = entity
	event.RequestPath = "/api/vehicle/v-100"
	event.HTTPVerb = "PUT"

	return event
}

func TestEngine_EmailWorkflowExecutes(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", []models.Condition{
			{Field: "status", Operator: models.OperatorEquals, Value: "sold"},
		}),
	}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{
		"id":               "v-100",
		"vehicle_stock_id": "v-100",
		"vin":              "WVWZZZ",
		"status":           "sold",
	}))

	assert.Equal(t, int64(1), mailer.sent.Load())
	assert.Equal(t, []string{"sales@dealer.example"}, mailer.lastTo)

	require.Len(t, logs.entries, 1)
	entry := logs.entries[0]
	assert.Equal(t, "wf-1", entry.WorkflowID)
	assert.Equal(t, int64(42), entry.TenantID)
	assert.Equal(t, models.ExecutionStatusSuccess, entry.Status)
	assert.Equal(t, "sent", entry.EmailStatus)
	require.Len(t, entry.EntityResults, 1)
	assert.Equal(t, "v-100", entry.EntityResults[0].EntityID)
	assert.Equal(t, string(schema.TypeVehicle), entry.EntityResults[0].Schema)
	assert.True(t, entry.EntityResults[0].Success)

	assert.Equal(t, []models.ExecutionStatus{models.ExecutionStatusSuccess}, repo.counters["wf-1"])
}

func TestEngine_NoLogWhenConditionsDoNotMatch(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", []models.Condition{
			{Field: "status", Operator: models.OperatorEquals, Value: "sold"},
		}),
	}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{
		"id":     "v-100",
		"status": "in_stock",
	}))

	assert.Zero(t, mailer.sent.Load())
	assert.Empty(t, logs.entries, "non-matching evaluation leaves no trace")
	assert.Empty(t, repo.counters)
}

func TestEngine_IgnoresNonMutatingVerb(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}

	e := newTestEngine(t, repo, logs, &fakeMailer{}, nil)

	event := vehicleUpdateEvent(map[string]any{"id": "v-100"})
	event.HTTPVerb = "GET"

	e.Process(context.Background(), event)

	assert.Empty(t, logs.entries)
}

func TestEngine_SchemaMismatchSkipsWorkflow(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	event := vehicleUpdateEvent(map[string]any{"id": "c-1", "email": "x@y.example"})
	event.RequestPath = "/api/customer/c-1"

	e.Process(context.Background(), event)

	assert.Zero(t, mailer.sent.Load())
	assert.Empty(t, logs.entries)
}

func TestEngine_DedupSuppressesRapidRepeat(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	event := vehicleUpdateEvent(map[string]any{"id": "v-100"})
	e.Process(context.Background(), event)
	e.Process(context.Background(), event)

	assert.Equal(t, int64(1), mailer.sent.Load(), "second identical trigger within the window must be suppressed")
	assert.Len(t, logs.entries, 1)
}

func TestEngine_WorkflowFailureIsIsolated(t *testing.T) {
	t.Parallel()

	broken := emailWorkflow("wf-broken", []models.Condition{
		{Field: "status", Operator: models.OperatorEquals, Value: "sold"},
		{Field: "vin", Operator: models.OperatorIsNotEmpty, Logic: "XOR"},
	})
	healthy := emailWorkflow("wf-healthy", nil)

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{broken, healthy}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{
		"id":     "v-100",
		"status": "sold",
		"vin":    "WVWZZZ",
	}))

	assert.Equal(t, int64(1), mailer.sent.Load(), "healthy workflow still runs")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, "wf-healthy", logs.entries[0].WorkflowID)
	assert.Empty(t, repo.counters["wf-broken"], "evaluation errors do not count as runs")
}

func TestEngine_EmailFailureRecordedAsFailedRun(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{sendErr: errors.New("smtp refused")}

	e := newTestEngine(t, repo, logs, mailer, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{"id": "v-100"}))

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ExecutionStatusFailed, logs.entries[0].Status)
	assert.Equal(t, "failed", logs.entries[0].EmailStatus)
	assert.Contains(t, logs.entries[0].Error, "smtp refused")
	assert.Equal(t, []models.ExecutionStatus{models.ExecutionStatusFailed}, repo.counters["wf-1"])
}

func TestEngine_OutboundWorkflowPostsRemappedPayload(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow := &models.Workflow{
		ID:       "wf-out",
		TenantID: 42,
		Name:     "push sold vehicles",
		Type:     models.WorkflowTypeVehicleOutbound,
		Status:   models.WorkflowStatusActive,
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
		},
		ExportConfig: models.ExportConfig{
			URL:          server.URL,
			FieldMapping: map[string]string{"vehicle_stock_id": "stock_id"},
		},
		AuthConfig: models.AuthConfig{
			Mode:  models.AuthModeBearer,
			Token: "tok-1",
		},
	}

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{workflow}}
	logs := &fakeLogRepo{}

	e := newTestEngine(t, repo, logs, &fakeMailer{}, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{
		"id":               "v-100",
		"vehicle_stock_id": "v-100",
	}))

	assert.Equal(t, "Bearer tok-1", gotAuth.Load())
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, logs.entries[0].Status)
}

func TestEngine_OutboundGathersRelatedData(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow := &models.Workflow{
		ID:       "wf-out",
		TenantID: 42,
		Name:     "push with customer details",
		Type:     models.WorkflowTypeVehicleOutbound,
		Status:   models.WorkflowStatusActive,
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
		},
		ExportConfig: models.ExportConfig{
			URL: server.URL,
			RelatedData: []models.RelatedFetch{
				{Schema: schema.TypeCustomer, ReferenceField: "customer_id", Fields: []string{"customer_name"}},
			},
		},
	}

	fetcher := &fakeFetcher{records: map[string]map[string]any{
		"customer/c-7": {"customer_name": "Ada"},
	}}
	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{workflow}}
	logs := &fakeLogRepo{}

	e := newTestEngine(t, repo, logs, &fakeMailer{}, fetcher)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{
		"id":          "v-100",
		"customer_id": "c-7",
	}))

	assert.Equal(t, []string{"customer/c-7"}, fetcher.fetched)
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, logs.entries[0].Status)
}

func TestEngine_AlternativeTriggerSchemaEvaluatesRelatedRecord(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	workflow := &models.Workflow{
		ID:       "wf-out",
		TenantID: 42,
		Name:     "push vehicles touched by workshop reports",
		Type:     models.WorkflowTypeVehicleOutbound,
		Status:   models.WorkflowStatusActive,
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
			Conditions: []models.Condition{
				{Field: "status", Operator: models.OperatorEquals, Value: "in_stock"},
			},
			TriggerSchemas: []models.TriggerSchema{
				{Schema: schema.TypeWorkshopReport, ReferenceField: "vehicle_stock_id"},
			},
		},
		ExportConfig: models.ExportConfig{URL: server.URL},
	}

	fetcher := &fakeFetcher{records: map[string]map[string]any{
		"vehicle/v-100": {"id": "v-100", "status": "in_stock"},
	}}
	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{workflow}}
	logs := &fakeLogRepo{}

	e := newTestEngine(t, repo, logs, &fakeMailer{}, fetcher)

	event := events.NewEntityMutated(42)
	event.EntityData = map[string]any{
		"id":               "wr-9",
		"vehicle_stock_id": "v-100",
		"workshop_id":      "ws-1",
	}
	event.RequestPath = "/api/workshop-report/wr-9"
	event.HTTPVerb = "PUT"

	e.Process(context.Background(), event)

	assert.Equal(t, []string{"vehicle/v-100"}, fetcher.fetched,
		"conditions run against the referenced vehicle, not the report")
	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, logs.entries[0].Status)
}

func TestEngine_OutboundFailureSendsNotification(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	workflow := &models.Workflow{
		ID:        "wf-out",
		TenantID:  42,
		Name:      "push with failure alerting",
		Type:      models.WorkflowTypeVehicleOutbound,
		Status:    models.WorkflowStatusActive,
		CreatedBy: "owner@dealer.example",
		TriggerConfig: models.TriggerConfig{
			TargetSchema: schema.TypeVehicle,
			TriggerType:  models.TriggerTypeUpdate,
		},
		ExportConfig: models.ExportConfig{
			URL:             server.URL,
			NotifyOnFailure: true,
			Templates: map[string]models.EmailTemplate{
				"export_error": {
					Subject:    "Export failed for {{vehicle_stock_id}}",
					Body:       "check the endpoint",
					Recipients: []string{"ops@dealer.example"},
				},
			},
		},
	}

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{workflow}}
	logs := &fakeLogRepo{}
	mailer := &fakeMailer{}

	e := newTestEngine(t, repo, logs, mailer, nil)

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{"id": "v-100"}))

	require.Len(t, logs.entries, 1)
	assert.Equal(t, models.ExecutionStatusFailed, logs.entries[0].Status)
	assert.Equal(t, int64(1), mailer.sent.Load(), "failure notification goes out")
	assert.Equal(t, []models.ExecutionStatus{models.ExecutionStatusFailed}, repo.counters["wf-out"])
}

func TestTriggerTypeForVerb(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verb   string
		want   models.TriggerType
		mapped bool
	}{
		{"POST", models.TriggerTypeCreate, true},
		{"PUT", models.TriggerTypeUpdate, true},
		{"PATCH", models.TriggerTypeUpdate, true},
		{"DELETE", models.TriggerTypeDelete, true},
		{"GET", "", false},
		{"OPTIONS", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.verb, func(t *testing.T) {
			t.Parallel()

			got, ok := TriggerTypeForVerb(tc.verb)
			assert.Equal(t, tc.mapped, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEngine_PublishesWorkflowExecutedEvent(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}
	bus := &fakeBus{}

	e := New(engineTestLogger(), newTestManager(t), Config{
		Mailer: &fakeMailer{},
		Bus:    bus,
		Repos: func(_ *sql.DB, _ *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository) {
			return repo, logs
		},
		Fetch: &fakeFetcher{},
	})

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{"id": "v-100"}))

	require.Len(t, bus.published, 1)
	assert.Equal(t, []string{"42"}, bus.keys)

	executed, ok := bus.published[0].(*events.WorkflowExecuted)
	require.True(t, ok)
	assert.Equal(t, "wf-1", executed.WorkflowID)
	assert.Equal(t, int64(42), executed.TenantID)
	assert.Equal(t, models.ExecutionStatusSuccess, executed.Status)
	assert.Empty(t, executed.Error)
	assert.NotEmpty(t, executed.ID)
}

func TestEngine_PublishesWorkflowExecutedOnFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}
	bus := &fakeBus{}

	e := New(engineTestLogger(), newTestManager(t), Config{
		Mailer: &fakeMailer{sendErr: errors.New("smtp refused")},
		Bus:    bus,
		Repos: func(_ *sql.DB, _ *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository) {
			return repo, logs
		},
		Fetch: &fakeFetcher{},
	})

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{"id": "v-100"}))

	require.Len(t, bus.published, 1)

	executed, ok := bus.published[0].(*events.WorkflowExecuted)
	require.True(t, ok)
	assert.Equal(t, models.ExecutionStatusFailed, executed.Status)
	assert.Contains(t, executed.Error, "smtp refused")
}

func TestEngine_RecordsEvaluationSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
	)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	repo := &fakeWorkflowRepo{workflows: []*models.Workflow{
		emailWorkflow("wf-1", nil),
	}}
	logs := &fakeLogRepo{}

	e := New(engineTestLogger(), newTestManager(t), Config{
		Mailer: &fakeMailer{},
		Tracer: provider.Tracer("trigger-engine-test"),
		Repos: func(_ *sql.DB, _ *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository) {
			return repo, logs
		},
		Fetch: &fakeFetcher{},
	})

	e.Process(context.Background(), vehicleUpdateEvent(map[string]any{"id": "v-100"}))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "workflow.evaluate", spans[0].Name)

	attrs := make(map[string]string, len(spans[0].Attributes))
	for _, attr := range spans[0].Attributes {
		attrs[string(attr.Key)] = attr.Value.AsString()
	}

	assert.Equal(t, "wf-1", attrs[otelhelper.WorkflowIDKey])
	assert.Equal(t, string(schema.TypeVehicle), attrs[otelhelper.SchemaTypeKey])
	assert.Equal(t, string(models.TriggerTypeUpdate), attrs[otelhelper.TriggerTypeKey])
}

func TestEntityID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		entity map[string]any
		want   string
	}{
		{"plain id", map[string]any{"id": "v-1"}, "v-1"},
		{"numeric id", map[string]any{"id": float64(310)}, "310"},
		{"stock id fallback", map[string]any{"vehicle_stock_id": "v-2"}, "v-2"},
		{"id wins over fallback", map[string]any{"id": "a", "vehicle_stock_id": "b"}, "a"},
		{"no id", map[string]any{"make": "vw"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, EntityID(tc.entity))
		})
	}
}
