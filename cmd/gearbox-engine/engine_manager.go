// Package main provides the Gearbox trigger engine service.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel/trace"

	"github.com/gearboxhq/gearbox/pkg/actions/email"
	"github.com/gearboxhq/gearbox/pkg/engine"
	"github.com/gearboxhq/gearbox/pkg/eventbus"
	"github.com/gearboxhq/gearbox/pkg/events"
	"github.com/gearboxhq/gearbox/pkg/tenant"
)

type EngineManager struct {
	id       string
	logger   *slog.Logger
	manager  *tenant.Manager
	eventBus eventbus.EventBus
	engine   *engine.Engine
}

func NewEngineManager(
	id string,
	logger *slog.Logger,
	manager *tenant.Manager,
	eventBus eventbus.EventBus,
	mailer email.Mailer,
	tracer trace.Tracer,
) *EngineManager {
	eng := engine.New(logger, manager, engine.Config{
		Mailer: mailer,
		Tracer: tracer,
		Bus:    eventBus,
	})

	return &EngineManager{
		id:       id,
		logger:   logger,
		manager:  manager,
		eventBus: eventBus,
		engine:   eng,
	}
}

// Start subscribes the engine to mutation events and blocks until the
// process receives a termination signal.
func (m *EngineManager) Start(ctx context.Context) error {
	m.logger.InfoContext(ctx, "Starting trigger engine", "engine_id", m.id)

	m.eventBus.Handle(events.EntityMutatedEvent, m.engine.HandleEvent)

	err := m.eventBus.Subscribe(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	m.logger.InfoContext(ctx, "Trigger engine started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	m.logger.InfoContext(ctx, "Shutting down trigger engine...")

	return nil
}
