// Package engine evaluates tenant workflows against entity mutation events
// and executes their side effects. It runs strictly after the triggering
// write's response has been flushed: nothing in here can fail or slow the
// original request.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gearboxhq/gearbox/pkg/actions/email"
	"github.com/gearboxhq/gearbox/pkg/actions/outbound"
	"github.com/gearboxhq/gearbox/pkg/conditions"
	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/events"
	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/otelhelper"
	"github.com/gearboxhq/gearbox/pkg/persistence"
	"github.com/gearboxhq/gearbox/pkg/persistence/postgresql"
	"github.com/gearboxhq/gearbox/pkg/registry"
	"github.com/gearboxhq/gearbox/pkg/schema"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

// RepositoryFactory builds the tenant repositories for one connection.
// Injectable for tests; the default is the postgresql implementation.
type RepositoryFactory func(db *sql.DB, logger *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository)

// EntityFetcher loads a related entity through the tenant-aware model layer.
type EntityFetcher interface {
	Fetch(ctx context.Context, scope *tenant.Scope, t schema.Type, id string) (map[string]any, error)
}

// Config carries the engine's injectable collaborators. Zero values select
// production defaults.
type Config struct {
	Dedup  *DedupCache
	Mailer email.Mailer
	Tracer trace.Tracer
	Bus    eventbus.EventBus
	Repos  RepositoryFactory
	Fetch  EntityFetcher
}

// Engine is the workflow trigger engine. One instance serves all tenants;
// per-event tenant routing happens through a fresh Scope.
type Engine struct {
	logger  *slog.Logger
	manager *tenant.Manager
	dedup   *DedupCache
	mailer  email.Mailer
	tracer  trace.Tracer
	bus     eventbus.EventBus
	repos   RepositoryFactory
	fetch   EntityFetcher
}

// New creates an engine bound to the tenant connection manager.
func New(logger *slog.Logger, manager *tenant.Manager, cfg Config) *Engine {
	if cfg.Dedup == nil {
		cfg.Dedup = NewDedupCache()
	}

	if cfg.Repos == nil {
		cfg.Repos = func(db *sql.DB, logger *slog.Logger) (persistence.WorkflowRepository, persistence.ExecutionLogRepository) {
			return postgresql.NewWorkflowRepository(db, logger), postgresql.NewExecutionLogRepository(db, logger)
		}
	}

	if cfg.Fetch == nil {
		cfg.Fetch = modelFetcher{}
	}

	return &Engine{
		logger:  logger.With("module", "trigger_engine"),
		manager: manager,
		dedup:   cfg.Dedup,
		mailer:  cfg.Mailer,
		tracer:  cfg.Tracer,
		bus:     cfg.Bus,
		repos:   cfg.Repos,
		fetch:   cfg.Fetch,
	}
}

// HandleEvent is the event bus entry point. It always returns nil: trigger
// path errors are logged and recorded in execution logs, never surfaced to
// the delivery layer.
func (e *Engine) HandleEvent(ctx context.Context, raw any) error {
	event, ok := raw.(*events.EntityMutated)
	if !ok {
		return nil
	}

	e.Process(ctx, event)

	return nil
}

// Process evaluates every active workflow of the event's tenant against one
// mutation.
func (e *Engine) Process(ctx context.Context, event *events.EntityMutated) {
	triggerType, ok := TriggerTypeForVerb(event.HTTPVerb)
	if !ok {
		e.logger.DebugContext(ctx, "Ignoring non-mutating verb", "verb", event.HTTPVerb)

		return
	}

	if event.TenantID <= 0 {
		e.logger.WarnContext(ctx, "Mutation event without tenant, skipping")

		return
	}

	scope := tenant.NewScope(e.manager, event.TenantID)
	defer scope.Close()

	db, err := scope.CompanyDB(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to reach tenant database",
			"tenant_id", event.TenantID, "error", err)

		return
	}

	workflowRepo, logRepo := e.repos(db, e.logger)

	detected := schema.Detect(event.EntityData, event.RequestPath)

	workflows, err := workflowRepo.ActiveByTriggerType(ctx, triggerType)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to load workflows",
			"tenant_id", event.TenantID, "error", err)

		return
	}

	for _, workflow := range workflows {
		e.evaluateWorkflow(ctx, scope, workflowRepo, logRepo, workflow, event, detected, triggerType)
	}
}

// evaluateWorkflow walks one workflow through the trigger pipeline. Any
// failure, including panics from malformed configuration, is contained here
// so sibling workflows still run.
func (e *Engine) evaluateWorkflow(
	ctx context.Context,
	scope *tenant.Scope,
	workflowRepo persistence.WorkflowRepository,
	logRepo persistence.ExecutionLogRepository,
	workflow *models.Workflow,
	event *events.EntityMutated,
	detected schema.Type,
	triggerType models.TriggerType,
) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Workflow evaluation panicked, skipping",
				"workflow_id", workflow.ID, "panic", r)
		}
	}()

	if e.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "workflow.evaluate",
			attribute.String(otelhelper.WorkflowIDKey, workflow.ID),
			attribute.String(otelhelper.SchemaTypeKey, string(detected)),
			attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
		)
		defer span.End()
	}

	if workflow.TriggerConfig.TriggerType != triggerType {
		return
	}

	evalEntity, ok, err := e.matchSchema(ctx, scope, workflow, event.EntityData, detected)
	if err != nil {
		e.logger.WarnContext(ctx, "Schema match failed, skipping workflow",
			"workflow_id", workflow.ID, "error", err)

		return
	}

	if !ok {
		return
	}

	matched, err := conditions.Evaluate(evalEntity, workflow.TriggerConfig.Conditions)
	if err != nil {
		e.logger.WarnContext(ctx, "Condition evaluation failed, skipping workflow",
			"workflow_id", workflow.ID, "error", err)

		return
	}

	if !matched {
		return
	}

	entityID := EntityID(event.EntityData)

	if e.dedup.Suppress(workflow.ID, entityID, triggerType) {
		e.logger.DebugContext(ctx, "Duplicate trigger suppressed",
			"workflow_id", workflow.ID, "entity_id", entityID)

		return
	}

	e.execute(ctx, scope, workflowRepo, logRepo, workflow, event, evalEntity, entityID, detected)
}

// matchSchema decides which entity the conditions evaluate against: the
// mutated entity when its schema equals the target, or, for outbound
// workflows declaring alternative trigger schemas, a related record of the
// target schema fetched via the configured reference field.
func (e *Engine) matchSchema(
	ctx context.Context,
	scope *tenant.Scope,
	workflow *models.Workflow,
	entity map[string]any,
	detected schema.Type,
) (map[string]any, bool, error) {
	if workflow.TriggerConfig.TargetSchema == detected {
		return entity, true, nil
	}

	if workflow.Type != models.WorkflowTypeVehicleOutbound {
		return nil, false, nil
	}

	for _, alternative := range workflow.TriggerConfig.TriggerSchemas {
		if alternative.Schema != detected {
			continue
		}

		reference, ok := conditions.NestedField(entity, alternative.ReferenceField)
		if !ok {
			continue
		}

		related, err := e.fetch.Fetch(ctx, scope, workflow.TriggerConfig.TargetSchema, stringifyID(reference))
		if err != nil {
			return nil, false, fmt.Errorf("failed to fetch related %s record: %w",
				workflow.TriggerConfig.TargetSchema, err)
		}

		return related, true, nil
	}

	return nil, false, nil
}

// execute runs the workflow's action and writes exactly one execution log
// entry plus the aggregate counter bump, regardless of outcome.
func (e *Engine) execute(
	ctx context.Context,
	scope *tenant.Scope,
	workflowRepo persistence.WorkflowRepository,
	logRepo persistence.ExecutionLogRepository,
	workflow *models.Workflow,
	event *events.EntityMutated,
	evalEntity map[string]any,
	entityID string,
	detected schema.Type,
) {
	started := time.Now()

	var (
		execErr     error
		emailStatus string
	)

	switch workflow.Type {
	case models.WorkflowTypeEmailTrigger:
		action := email.NewAction(e.logger, workflow.ExportConfig, workflow.CreatedBy, e.mailer)
		emailStatus, execErr = action.Execute(ctx, outcomeFor(event.EntityData), evalEntity)

	case models.WorkflowTypeVehicleOutbound:
		execErr = e.executeOutbound(ctx, scope, workflow, event.EntityData)

	default:
		execErr = fmt.Errorf("unknown workflow type %q", workflow.Type)
	}

	completed := time.Now()

	status := models.ExecutionStatusSuccess
	errText := ""

	if execErr != nil {
		status = models.ExecutionStatusFailed
		errText = execErr.Error()

		e.logger.WarnContext(ctx, "Workflow action failed",
			"workflow_id", workflow.ID, "error", execErr)

		e.notifyFailure(ctx, workflow, evalEntity)
	}

	entry := &models.ExecutionLog{
		WorkflowID:     workflow.ID,
		TenantID:       workflow.TenantID,
		StartedAt:      started,
		CompletedAt:    completed,
		DurationMS:     completed.Sub(started).Milliseconds(),
		Status:         status,
		RequestPayload: event.EntityData,
		EntityResults: []models.EntityResult{
			{
				EntityID: entityID,
				Schema:   string(detected),
				Success:  status == models.ExecutionStatusSuccess,
				Detail:   errText,
			},
		},
		EmailStatus: emailStatus,
		Error:       errText,
	}

	err := logRepo.Append(ctx, entry)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to append execution log",
			"workflow_id", workflow.ID, "error", err)
	}

	err = workflowRepo.IncrementRunCounters(ctx, workflow.ID, status)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to update workflow counters",
			"workflow_id", workflow.ID, "error", err)
	}

	if e.bus != nil {
		executed := events.NewWorkflowExecuted(
			workflow.TenantID, workflow.ID, status, entry.DurationMS, errText)

		err = e.bus.Publish(ctx, strconv.FormatInt(workflow.TenantID, 10), executed)
		if err != nil {
			e.logger.WarnContext(ctx, "Failed to publish workflow executed event",
				"workflow_id", workflow.ID, "error", err)
		}
	}
}

// executeOutbound gathers related fields, remaps and posts the payload.
func (e *Engine) executeOutbound(
	ctx context.Context,
	scope *tenant.Scope,
	workflow *models.Workflow,
	entity map[string]any,
) error {
	payload := make(map[string]any, len(entity))
	for key, value := range entity {
		payload[key] = value
	}

	for _, related := range workflow.ExportConfig.RelatedData {
		reference, ok := conditions.NestedField(entity, related.ReferenceField)
		if !ok {
			continue
		}

		record, err := e.fetch.Fetch(ctx, scope, related.Schema, stringifyID(reference))
		if err != nil {
			e.logger.WarnContext(ctx, "Related data fetch failed, continuing without it",
				"workflow_id", workflow.ID, "schema", string(related.Schema), "error", err)

			continue
		}

		for _, field := range related.Fields {
			if value, ok := record[field]; ok {
				payload[field] = value
			}
		}
	}

	action, err := outbound.NewAction(e.logger, workflow.ExportConfig, workflow.AuthConfig)
	if err != nil {
		return err
	}

	_, err = action.Execute(ctx, payload)

	return err
}

// notifyFailure sends the error template when the workflow opted in. Best
// effort only.
func (e *Engine) notifyFailure(ctx context.Context, workflow *models.Workflow, entity map[string]any) {
	if !workflow.ExportConfig.NotifyOnFailure || e.mailer == nil || len(workflow.ExportConfig.Templates) == 0 {
		return
	}

	action := email.NewAction(e.logger, workflow.ExportConfig, workflow.CreatedBy, e.mailer)

	_, err := action.Execute(ctx, email.OutcomeError, entity)
	if err != nil {
		e.logger.WarnContext(ctx, "Failure notification email failed",
			"workflow_id", workflow.ID, "error", err)
	}
}

// TriggerTypeForVerb maps a mutating HTTP verb onto the trigger family.
func TriggerTypeForVerb(verb string) (models.TriggerType, bool) {
	switch verb {
	case "POST":
		return models.TriggerTypeCreate, true
	case "PUT", "PATCH":
		return models.TriggerTypeUpdate, true
	case "DELETE":
		return models.TriggerTypeDelete, true
	default:
		return "", false
	}
}

// idFields are tried in order when extracting a dedup identity from an
// entity payload.
var idFields = []string{
	"id",
	"_id",
	"vehicle_stock_id",
	"workshop_report_id",
	"quote_number",
	"workshop_id",
	"customer_id",
	"invoice_number",
	"transport_job_id",
}

// EntityID extracts a stable identity for dedup keying. Falls back to the
// empty string when the payload has no recognizable id.
func EntityID(entity map[string]any) string {
	for _, field := range idFields {
		if value, ok := entity[field]; ok && value != nil {
			return stringifyID(value)
		}
	}

	return ""
}

func stringifyID(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// outcomeFor picks the email template family from the entity's own status.
func outcomeFor(entity map[string]any) email.Outcome {
	if status, ok := entity["status"].(string); ok {
		if status == "error" || status == "failed" {
			return email.OutcomeError
		}
	}

	if errValue, ok := entity["error"]; ok && errValue != nil && errValue != "" {
		return email.OutcomeError
	}

	return email.OutcomeSuccess
}

// modelFetcher is the production EntityFetcher: it resolves the schema's
// backing model through the tenant-aware registry and loads by id.
type modelFetcher struct{}

func (modelFetcher) Fetch(ctx context.Context, scope *tenant.Scope, t schema.Type, id string) (map[string]any, error) {
	name, err := registry.ForSchema(t)
	if err != nil {
		return nil, err
	}

	model, err := scope.Model(ctx, name)
	if err != nil {
		return nil, err
	}

	return model.Get(ctx, id)
}
