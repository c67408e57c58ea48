package main

import (
	"context"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/campushive/flowkit/pkg/cmd"
	"github.com/campushive/flowkit/pkg/internalclient"
	"github.com/campushive/flowkit/pkg/log"
)

const defaultPort = 9091

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "flowkit-api",
		Usage:                 "Run workflows on demand and ingest platform events",
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
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list (kafka event bus only)",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "dedupe-url",
				Usage:   "Redis URL for the dedupe ledger (empty keeps it in the primary store)",
				Sources: cli.EnvVars("DEDUPE_URL"),
			},
			&cli.StringFlag{
				Name:    "internal-credentials",
				Usage:   "Path to the internal client credentials JSON file",
				Sources: cli.EnvVars("INTERNAL_CREDENTIALS_FILE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Enable OTLP trace export",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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

			logger.InfoContext(ctx, "Initializing Flowkit API")

			credentials, err := internalclient.LoadCredentials(command.String("internal-credentials"))
			if err != nil {
				return err
			}

			registry := cmd.NewStrategyRegistry(logger, credentials)

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowkit-api", command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dedupeStore := cmd.NewDedupeStore(ctx, logger, command.String("dedupe-url"), persistence)

			tracer, err := cmd.NewTracer(ctx, command.Bool("tracing"), "flowkit-api")
			if err != nil {
				return err
			}

			api := NewAPI(logger, persistence, dedupeStore, registry, eventBus, tracer)

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
