// Package main provides the Gearbox API server implementation.
package main

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/limits"
	"github.com/gearboxhq/gearbox/pkg/tenant"
	"github.com/gearboxhq/gearbox/pkg/web"
)

type API struct {
	logger    *slog.Logger
	manager   *tenant.Manager
	eventBus  eventbus.EventBus
	validate  *validator.Validate
	rateLimit int64
}

func NewAPI(
	log *slog.Logger,
	manager *tenant.Manager,
	eventBus eventbus.EventBus,
	rateLimit int64,
) *API {
	return &API{
		logger:    log,
		manager:   manager,
		eventBus:  eventBus,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		rateLimit: rateLimit,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.logger, a.manager, a.eventBus, a.validate)

	limiter := limits.NewRateLimiter(a.logger, a.rateLimit, time.Minute)
	idempotency := limits.NewIdempotencyStore(a.logger, 0)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Gearbox API")
	})

	app.Use(web.TenantScope(a.manager))

	guarded := web.Limits(a.logger, limiter, idempotency)

	app.Post("/internal/events", handlers.IngestEvent, guarded)
	app.Get("/schemas", handlers.GetSchemas)

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow, guarded)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id/status", handlers.UpdateWorkflowStatus, guarded)
	w.Get("/:id/executions", handlers.ListExecutions)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
