// Package main provides the event-driven execution worker. It consumes
// execution requests from the bus and runs them through the runtime.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/runtime"
)

type Worker struct {
	id       string
	logger   *slog.Logger
	runner   *runtime.Runner
	eventBus eventbus.EventBus
}

func NewWorker(id string, logger *slog.Logger, runner *runtime.Runner, eventBus eventbus.EventBus) *Worker {
	return &Worker{
		id:       id,
		logger:   logger,
		runner:   runner,
		eventBus: eventBus,
	}
}

// Start subscribes to execution requests and blocks until SIGINT/SIGTERM.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := w.eventBus.Handle(events.ExecutionRequestedEvent, w.handleExecutionRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker")

	return nil
}

// handleExecutionRequested runs one requested execution. Action-level
// failures are terminal states recorded by the runner and acked here;
// returning an error would nack the message and re-run side effects.
func (w *Worker) handleExecutionRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.ExecutionRequested)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event payload for execution request")

		return nil
	}

	logger := w.logger.With("workflow_id", request.WorkflowID)
	logger.InfoContext(ctx, "Processing execution request")

	execution, err := w.runner.Run(ctx, runtime.RunRequest{
		WorkflowID:    request.WorkflowID,
		Input:         request.Input,
		ScheduleID:    request.ScheduleID,
		ScheduleRunID: request.ScheduleRunID,
	})
	if err != nil {
		logger.ErrorContext(ctx, "Failed to run workflow", "error", err)

		return err
	}

	logger.InfoContext(ctx, "Execution finished",
		"execution_id", execution.ExecutionID,
		"status", execution.Status)

	return nil
}
