package web

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/events"
	"github.com/gearboxhq/gearbox/pkg/models"
	"github.com/gearboxhq/gearbox/pkg/persistence/postgresql"
	"github.com/gearboxhq/gearbox/pkg/schema"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

const defaultExecutionPageSize = 50

type APIHandlers struct {
	logger    *slog.Logger
	manager   *tenant.Manager
	eventBus  eventbus.EventBus
	validator *validator.Validate
}

func NewAPIHandlers(
	logger *slog.Logger,
	manager *tenant.Manager,
	eventBus eventbus.EventBus,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		manager:   manager,
		eventBus:  eventBus,
		validator: validator,
	}
}

// repos builds tenant repositories for the request's scope.
func (h *APIHandlers) repos(c fiber.Ctx) (*postgresql.WorkflowRepository, *postgresql.ExecutionLogRepository, error) {
	scope := ScopeFrom(c)
	if scope == nil {
		return nil, nil, tenant.ErrTenantContextMissing
	}

	db, err := scope.CompanyDB(c.Context())
	if err != nil {
		return nil, nil, err
	}

	return postgresql.NewWorkflowRepository(db, h.logger), postgresql.NewExecutionLogRepository(db, h.logger), nil
}

// IngestEvent accepts a committed entity mutation from an application
// service and hands it to the trigger engine through the event bus. The
// response does not wait for workflow evaluation.
func (h *APIHandlers) IngestEvent(c fiber.Ctx) error {
	scope := ScopeFrom(c)
	if scope == nil || scope.IsPlatform() {
		return handleTenantError(c, tenant.ErrTenantContextMissing)
	}

	var req IngestEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := events.NewEntityMutated(scope.TenantID())
	event.EntityData = req.EntityData
	event.RequestPath = req.RequestPath
	event.HTTPVerb = req.HTTPVerb

	err := h.eventBus.Publish(c.Context(), strconv.FormatInt(scope.TenantID(), 10), event)
	if err != nil {
		h.logger.ErrorContext(c.Context(), "Failed to publish mutation event", "error", err)

		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"event_id": event.ID,
		"accepted": true,
	})
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if !schema.IsValid(req.TriggerConfig.TargetSchema) {
		return badRequest(c, "unknown target schema "+string(req.TriggerConfig.TargetSchema))
	}

	if err := ValidateWorkflowConfig(&req); err != nil {
		return badRequest(c, err.Error())
	}

	workflowRepo, _, err := h.repos(c)
	if err != nil {
		return handleTenantError(c, err)
	}

	now := time.Now().UTC()
	workflow := &models.Workflow{
		ID:            uuid.Must(uuid.NewV7()).String(),
		TenantID:      ScopeFrom(c).TenantID(),
		Name:          req.Name,
		Type:          req.Type,
		Status:        models.WorkflowStatusActive,
		CreatedBy:     req.CreatedBy,
		TriggerConfig: req.TriggerConfig,
		ExportConfig:  req.ExportConfig,
		AuthConfig:    req.AuthConfig,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.validator.Struct(workflow); err != nil {
		return badRequest(c, err.Error())
	}

	if err := workflowRepo.Save(c.Context(), workflow); err != nil {
		return handleTenantError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformWorkflowResponse(workflow))
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflowRepo, _, err := h.repos(c)
	if err != nil {
		return handleTenantError(c, err)
	}

	workflow, err := workflowRepo.GetByID(c.Context(), id)
	if err != nil {
		return handleTenantError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(workflow))
}

func (h *APIHandlers) UpdateWorkflowStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowStatusRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflowRepo, _, err := h.repos(c)
	if err != nil {
		return handleTenantError(c, err)
	}

	workflow, err := workflowRepo.GetByID(c.Context(), id)
	if err != nil {
		return handleTenantError(c, err)
	}

	workflow.Status = req.Status
	workflow.UpdatedAt = time.Now().UTC()

	if err := workflowRepo.Save(c.Context(), workflow); err != nil {
		return handleTenantError(c, err)
	}

	return c.JSON(TransformWorkflowResponse(workflow))
}

// ListExecutions returns a workflow's execution history, newest first. The
// history is append-only; this endpoint is the read side of the audit trail.
func (h *APIHandlers) ListExecutions(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := defaultExecutionPageSize

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	workflowRepo, logRepo, err := h.repos(c)
	if err != nil {
		return handleTenantError(c, err)
	}

	// 404 for unknown workflows rather than an empty history.
	if _, err := workflowRepo.GetByID(c.Context(), id); err != nil {
		return handleTenantError(c, err)
	}

	entries, err := logRepo.ListByWorkflow(c.Context(), id, limit)
	if err != nil {
		return handleTenantError(c, err)
	}

	responses := make([]ExecutionLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, TransformExecutionLogResponse(entry))
	}

	return c.JSON(fiber.Map{
		"workflow_id": id,
		"executions":  responses,
		"count":       len(responses),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Gearbox API is healthy"
	httpStatus := fiber.StatusOK

	db, err := h.manager.Main(c.Context())
	if err == nil {
		err = db.PingContext(c.Context())
	}

	if err != nil {
		status = "unhealthy"
		message = "Gearbox API is unhealthy"
		httpStatus = fiber.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"main_database":           err == nil,
			"open_tenant_connections": h.manager.OpenConnections(),
		},
		"timestamp": time.Now().UTC(),
	})
}

// GetSchemas enumerates the target schemas workflows can bind to.
func (h *APIHandlers) GetSchemas(c fiber.Ctx) error {
	types := schema.All()

	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	return c.JSON(fiber.Map{"schemas": names})
}
