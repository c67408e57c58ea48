// Package main provides the schedule poller. It materializes due runs and
// publishes execution requests for the workers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/campushive/flowkit/pkg/cmd"
	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/log"
	"github.com/campushive/flowkit/pkg/runtime"
	"github.com/campushive/flowkit/pkg/scheduler"
)

func main() {
	logger := log.WithModule("scheduler")

	command := &cli.Command{
		Name:                  "flowkit-scheduler",
		Usage:                 "Poll schedules and dispatch due workflow runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma-separated Kafka broker list (kafka event bus only)",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Usage:   "How often to poll for due schedules",
				Value:   time.Minute,
				Sources: cli.EnvVars("POLL_INTERVAL"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Dispatch worker pool size",
				Value:   4,
				Sources: cli.EnvVars("DISPATCH_WORKERS"),
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

			logger.InfoContext(ctx, "Initializing Flowkit Scheduler")

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowkit-scheduler", command.String("kafka-brokers"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			dispatch := publishDispatch(eventBus)

			sched := scheduler.NewScheduler(
				logger,
				persistence.Schedules(),
				dispatch,
				eventBus,
				command.Duration("poll-interval"),
				command.Int("workers"),
			)

			if err := sched.Start(ctx); err != nil {
				return err
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			<-sigChan
			logger.InfoContext(ctx, "Shutting down scheduler")

			return sched.Stop(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}

// publishDispatch hands run requests to the workers over the event bus.
func publishDispatch(bus eventbus.EventBus) scheduler.DispatchFunc {
	return func(ctx context.Context, req runtime.RunRequest) error {
		event := events.ExecutionRequested{
			BaseEvent: events.BaseEvent{
				Type:       events.ExecutionRequestedEvent,
				Timestamp:  time.Now().UTC(),
				WorkflowID: req.WorkflowID,
			},
			Input:         req.Input,
			ScheduleID:    req.ScheduleID,
			ScheduleRunID: req.ScheduleRunID,
		}

		return bus.Publish(ctx, req.WorkflowID, event)
	}
}
