package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/gearboxhq/gearbox/pkg/cmd"
	"github.com/gearboxhq/gearbox/pkg/log"
	"github.com/gearboxhq/gearbox/pkg/otelhelper"
)

const defaultSMTPPort = 587

func main() {
	command := &cli.Command{
		Name:                  "gearbox-engine",
		Usage:                 "Start the workflow trigger engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "engine-id",
				Aliases: []string{"id"},
				Usage:   "Custom engine ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("ENGINE_ID"),
			},
			&cli.StringFlag{
				Name:     "main-database-url",
				Usage:    "Connection URL for the shared main database",
				Required: true,
				Sources:  cli.EnvVars("MAIN_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "tenant-database-url-template",
				Usage:    "Tenant database connection URL template, %d is the tenant id",
				Required: true,
				Sources:  cli.EnvVars("TENANT_DATABASE_URL_TEMPLATE"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "smtp-host",
				Usage:   "SMTP host for workflow emails",
				Sources: cli.EnvVars("SMTP_HOST"),
			},
			&cli.IntFlag{
				Name:    "smtp-port",
				Usage:   "SMTP port for workflow emails",
				Value:   defaultSMTPPort,
				Sources: cli.EnvVars("SMTP_PORT"),
			},
			&cli.StringFlag{
				Name:    "smtp-username",
				Usage:   "SMTP username",
				Sources: cli.EnvVars("SMTP_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "smtp-password",
				Usage:   "SMTP password",
				Sources: cli.EnvVars("SMTP_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "smtp-from",
				Usage:   "From address for workflow emails",
				Sources: cli.EnvVars("SMTP_FROM"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			engineID := command.String("engine-id")
			if engineID == "" {
				engineID = "engine-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("gearbox-engine").With("engine_id", engineID)

			logger.InfoContext(ctx, "Initializing Gearbox trigger engine")

			tracer, shutdownTracer, err := otelhelper.NewTracer(ctx, "gearbox-engine")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			defer func() {
				err := shutdownTracer(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to shut down tracer provider", "error", err)
				}
			}()

			manager := cmd.NewTenantManager(logger,
				command.String("main-database-url"),
				command.String("tenant-database-url-template"))

			defer func() {
				err := manager.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close tenant connections", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "gearbox-engine", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			mailer := cmd.NewMailer(
				command.String("smtp-host"),
				int(command.Int("smtp-port")),
				command.String("smtp-username"),
				command.String("smtp-password"),
				command.String("smtp-from"),
			)

			engineManager := NewEngineManager(engineID, logger, manager, eventBus, mailer, tracer)

			err = engineManager.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start trigger engine", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
