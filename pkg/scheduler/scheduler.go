// Package scheduler polls the store for due schedules, materializes planned
// runs through the dedupe key and hands them to a dispatcher. Multiple
// scheduler instances can poll the same store; the run table's uniqueness
// constraint guarantees at most one run per schedule per planned minute.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/campushive/flowkit/pkg/eventbus"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/runtime"
)

const defaultWorkerCount = 4

// DispatchFunc receives a materialized run request and executes it. The
// scheduler records the run as DISPATCHED or FAILED based on the returned
// error.
type DispatchFunc func(ctx context.Context, req runtime.RunRequest) error

// Scheduler is the centralized poller. One ticker drives all schedules
// regardless of their individual cadence; due runs fan out over a bounded
// worker pool.
type Scheduler struct {
	logger    *slog.Logger
	store     persistence.ScheduleStore
	dispatch  DispatchFunc
	publisher eventbus.EventPublisher

	interval time.Duration
	workers  int

	ticker   *time.Ticker
	done     chan bool
	queue    chan dispatchItem
	pollerWg sync.WaitGroup
	workerWg sync.WaitGroup
	started  bool
	mu       sync.RWMutex
}

type dispatchItem struct {
	schedule *models.WorkflowSchedule
	run      *models.WorkflowScheduleRun
}

// NewScheduler creates a scheduler polling at the given interval with the
// given worker pool size. Zero values fall back to one minute and four
// workers.
func NewScheduler(logger *slog.Logger, store persistence.ScheduleStore, dispatch DispatchFunc, publisher eventbus.EventPublisher, interval time.Duration, workers int) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}

	if workers <= 0 {
		workers = defaultWorkerCount
	}

	return &Scheduler{
		logger:    logger.With("module", "scheduler"),
		store:     store,
		dispatch:  dispatch,
		publisher: publisher,
		interval:  interval,
		workers:   workers,
	}
}

// Start begins polling. Subsequent calls are no-ops until Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.InfoContext(ctx, "Starting scheduler", "interval", s.interval, "workers", s.workers)

	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan bool)
	s.queue = make(chan dispatchItem, s.workers*4)
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.workerWg.Add(1)

		go s.worker(ctx)
	}

	s.pollerWg.Add(1)

	go s.poll(ctx)

	return nil
}

// Stop shuts the poller down and drains the worker pool.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()

	if !s.started {
		s.mu.Unlock()

		return nil
	}

	s.logger.InfoContext(ctx, "Stopping scheduler")

	s.ticker.Stop()
	close(s.done)
	s.started = false
	s.mu.Unlock()

	// The poller runs ticks synchronously, so once it exits nothing can
	// enqueue and the queue can be closed to drain the workers.
	s.pollerWg.Wait()
	close(s.queue)
	s.workerWg.Wait()

	s.logger.InfoContext(ctx, "Scheduler stopped")

	return nil
}

func (s *Scheduler) poll(ctx context.Context) {
	defer s.pollerWg.Done()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.Tick(ctx, time.Now().UTC())
		}
	}
}

// Tick processes every due schedule once. Exported so a single cycle can be
// driven directly.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	due, err := s.store.DueSchedules(ctx, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query due schedules", "error", err)

		return
	}

	if len(due) > 0 {
		s.logger.InfoContext(ctx, "Processing due schedules", "count", len(due))
	}

	for _, schedule := range due {
		s.processSchedule(ctx, schedule, now)
	}
}

// processSchedule evaluates one due schedule: expire it when past its window,
// otherwise create the planned run and advance the cadence. Advancement does
// not depend on the dispatch outcome, so a failed dispatch never stalls the
// schedule.
func (s *Scheduler) processSchedule(ctx context.Context, schedule *models.WorkflowSchedule, now time.Time) {
	logger := s.logger.With("schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

	if schedule.EndDate != nil && now.After(*schedule.EndDate) {
		schedule.Status = models.ScheduleStatusExpired
		if err := s.store.SaveSchedule(ctx, schedule); err != nil {
			logger.ErrorContext(ctx, "Failed to expire schedule", "error", err)
		} else {
			logger.InfoContext(ctx, "Schedule expired", "end_date", schedule.EndDate)
		}

		return
	}

	plannedAt := now
	if schedule.NextRunAt != nil {
		plannedAt = *schedule.NextRunAt
	}

	run := models.NewScheduleRun(schedule, plannedAt)

	created, err := s.store.CreateScheduleRun(ctx, run)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to create schedule run", "error", err)

		return
	}

	if err := schedule.Advance(now); err != nil {
		logger.ErrorContext(ctx, "Failed to compute next run", "error", err)
	} else if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		logger.ErrorContext(ctx, "Failed to save advanced schedule", "error", err)
	}

	if !created {
		logger.DebugContext(ctx, "Run already claimed for this minute", "dedupe_key", run.DedupeKey)

		return
	}

	if schedule.WithinWindow(now) {
		s.enqueue(ctx, logger, schedule, run)

		return
	}

	run.Status = models.ScheduleRunStatusSkipped
	if err := s.store.UpdateScheduleRun(ctx, run); err != nil {
		logger.ErrorContext(ctx, "Failed to mark run skipped", "error", err)
	}
}

func (s *Scheduler) enqueue(ctx context.Context, logger *slog.Logger, schedule *models.WorkflowSchedule, run *models.WorkflowScheduleRun) {
	select {
	case s.queue <- dispatchItem{schedule: schedule, run: run}:
	case <-ctx.Done():
	case <-s.done:
		logger.WarnContext(ctx, "Scheduler stopping, run left in CREATED state", "run_id", run.ID)
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.workerWg.Done()

	for item := range s.queue {
		s.dispatchRun(ctx, item.schedule, item.run)
	}
}

func (s *Scheduler) dispatchRun(ctx context.Context, schedule *models.WorkflowSchedule, run *models.WorkflowScheduleRun) {
	logger := s.logger.With("schedule_id", schedule.ID, "run_id", run.ID)

	req := runtime.RunRequest{
		WorkflowID:    schedule.WorkflowID,
		Input:         scheduleInput(schedule, run),
		ScheduleID:    &schedule.ID,
		ScheduleRunID: &run.ID,
	}

	firedAt := time.Now().UTC()
	run.FiredAt = &firedAt

	err := s.dispatch(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "Dispatch failed", "error", err)

		run.Status = models.ScheduleRunStatusFailed
		run.ErrorMessage = err.Error()
	} else {
		run.Status = models.ScheduleRunStatusDispatched
	}

	if err := s.store.UpdateScheduleRun(ctx, run); err != nil {
		logger.ErrorContext(ctx, "Failed to update schedule run", "error", err)
	}

	if err == nil && s.publisher != nil {
		event := events.ScheduleRunDispatched{
			BaseEvent: events.BaseEvent{
				Type:       events.ScheduleRunDispatchedEvent,
				Timestamp:  firedAt,
				WorkflowID: schedule.WorkflowID,
			},
			ScheduleID:   schedule.ID,
			RunID:        run.ID,
			PlannedRunAt: run.PlannedRunAt,
		}
		if err := s.publisher.Publish(ctx, run.DedupeKey, event); err != nil {
			logger.WarnContext(ctx, "Failed to publish dispatch event", "error", err)
		}
	}
}

// scheduleInput seeds the execution context for scheduled runs.
func scheduleInput(schedule *models.WorkflowSchedule, run *models.WorkflowScheduleRun) map[string]any {
	return map[string]any{
		"scheduleId":   schedule.ID,
		"scheduleType": string(schedule.Type),
		"runId":        run.ID,
		"plannedRunAt": run.PlannedRunAt.Format(time.RFC3339),
	}
}
