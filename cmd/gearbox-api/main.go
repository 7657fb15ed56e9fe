package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/gearboxhq/gearbox/pkg/cmd"
	"github.com/gearboxhq/gearbox/pkg/log"
)

const defaultPort = 9080

func main() {
	command := &cli.Command{
		Name:                  "gearbox-api",
		Usage:                 "Manage workflows and ingest entity mutation events",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
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
			&cli.IntFlag{
				Name:    "rate-limit",
				Usage:   "Requests allowed per tenant per window",
				Value:   100,
				Sources: cli.EnvVars("RATE_LIMIT"),
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

			logger := log.WithModule("api")

			logger.InfoContext(ctx, "Initializing Gearbox API")

			manager := cmd.NewTenantManager(logger,
				command.String("main-database-url"),
				command.String("tenant-database-url-template"))

			defer func() {
				err := manager.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close tenant connections", "error", err)
				}
			}()

			err := cmd.MigrateMainDatabase(ctx, logger, manager)
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "gearbox-api", logger)
			defer func() {
				err := eventBus.Close()
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			api := NewAPI(logger, manager, eventBus, int64(command.Int("rate-limit")))

			err = api.Start(command.Int("port"))
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
