package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/mocks"
	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/runtime"
)

func intervalSchedule(nextRunAt time.Time) *models.WorkflowSchedule {
	next := nextRunAt.UTC()

	return &models.WorkflowSchedule{
		ID:              "sch-1",
		WorkflowID:      "wf-1",
		Type:            models.ScheduleTypeInterval,
		IntervalMinutes: 5,
		Status:          models.ScheduleStatusActive,
		NextRunAt:       &next,
	}
}

func noDispatch(t *testing.T) DispatchFunc {
	return func(context.Context, runtime.RunRequest) error {
		t.Fatal("dispatch must not be called")

		return nil
	}
}

func TestTick_ExpiresSchedulePastEndDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	endDate := now.Add(-time.Hour)

	schedule := intervalSchedule(now.Add(-time.Minute))
	schedule.EndDate = &endDate

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("SaveSchedule", mock.Anything, schedule).Return(nil)

	sched := NewScheduler(slog.Default(), store, noDispatch(t), nil, time.Hour, 1)
	sched.Tick(context.Background(), now)

	assert.Equal(t, models.ScheduleStatusExpired, schedule.Status)
	store.AssertNotCalled(t, "CreateScheduleRun", mock.Anything, mock.Anything)
}

func TestTick_DuplicateRunAdvancesWithoutDispatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	schedule := intervalSchedule(now.Add(-time.Minute))

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("CreateScheduleRun", mock.Anything, mock.Anything).Return(false, nil)
	store.On("SaveSchedule", mock.Anything, schedule).Return(nil)

	sched := NewScheduler(slog.Default(), store, noDispatch(t), nil, time.Hour, 1)
	sched.Tick(context.Background(), now)

	// Another instance claimed the run, but the cadence still advances.
	require.NotNil(t, schedule.NextRunAt)
	assert.Equal(t, now.Add(5*time.Minute), *schedule.NextRunAt)
	store.AssertNotCalled(t, "UpdateScheduleRun", mock.Anything, mock.Anything)
}

func TestTick_CreateRunErrorLeavesScheduleUntouched(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	schedule := intervalSchedule(now.Add(-time.Minute))

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("CreateScheduleRun", mock.Anything, mock.Anything).Return(false, errors.New("connection refused"))

	sched := NewScheduler(slog.Default(), store, noDispatch(t), nil, time.Hour, 1)
	sched.Tick(context.Background(), now)

	store.AssertNotCalled(t, "SaveSchedule", mock.Anything, mock.Anything)
}

func TestTick_OutsideWindowMarksRunSkipped(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	startDate := now.Add(24 * time.Hour)

	schedule := intervalSchedule(now.Add(-time.Minute))
	schedule.StartDate = &startDate

	var skipped *models.WorkflowScheduleRun

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("CreateScheduleRun", mock.Anything, mock.Anything).Return(true, nil)
	store.On("SaveSchedule", mock.Anything, schedule).Return(nil)
	store.On("UpdateScheduleRun", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		skipped = args.Get(1).(*models.WorkflowScheduleRun)
	})

	sched := NewScheduler(slog.Default(), store, noDispatch(t), nil, time.Hour, 1)
	sched.Tick(context.Background(), now)

	require.NotNil(t, skipped)
	assert.Equal(t, models.ScheduleRunStatusSkipped, skipped.Status)
	assert.Nil(t, skipped.FiredAt)
}

func TestTick_DispatchesDueRun(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	plannedAt := now.Add(-time.Minute)
	schedule := intervalSchedule(plannedAt)

	var updated *models.WorkflowScheduleRun

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("CreateScheduleRun", mock.Anything, mock.Anything).Return(true, nil)
	store.On("SaveSchedule", mock.Anything, schedule).Return(nil)
	store.On("UpdateScheduleRun", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		updated = args.Get(1).(*models.WorkflowScheduleRun)
	})

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var dispatched runtime.RunRequest

	dispatch := func(_ context.Context, req runtime.RunRequest) error {
		dispatched = req

		return nil
	}

	ctx := context.Background()
	sched := NewScheduler(slog.Default(), store, dispatch, bus, time.Hour, 1)
	require.NoError(t, sched.Start(ctx))

	sched.Tick(ctx, now)
	require.NoError(t, sched.Stop(ctx))

	assert.Equal(t, "wf-1", dispatched.WorkflowID)
	require.NotNil(t, dispatched.ScheduleID)
	assert.Equal(t, "sch-1", *dispatched.ScheduleID)
	assert.Equal(t, "sch-1", dispatched.Input["scheduleId"])
	assert.Equal(t, string(models.ScheduleTypeInterval), dispatched.Input["scheduleType"])
	assert.Equal(t, plannedAt.Format(time.RFC3339), dispatched.Input["plannedRunAt"])

	require.NotNil(t, updated)
	assert.Equal(t, models.ScheduleRunStatusDispatched, updated.Status)
	assert.NotNil(t, updated.FiredAt)

	expectedKey := models.ScheduleRunDedupeKey("sch-1", plannedAt)
	bus.AssertCalled(t, "Publish", mock.Anything, expectedKey, mock.MatchedBy(func(event any) bool {
		dispatchedEvent, ok := event.(events.ScheduleRunDispatched)

		return ok && dispatchedEvent.ScheduleID == "sch-1"
	}))
}

func TestTick_DispatchErrorMarksRunFailed(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	schedule := intervalSchedule(now.Add(-time.Minute))

	var updated *models.WorkflowScheduleRun

	store := &mocks.MockScheduleStore{}
	store.On("DueSchedules", mock.Anything, now).Return([]*models.WorkflowSchedule{schedule}, nil)
	store.On("CreateScheduleRun", mock.Anything, mock.Anything).Return(true, nil)
	store.On("SaveSchedule", mock.Anything, schedule).Return(nil)
	store.On("UpdateScheduleRun", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		updated = args.Get(1).(*models.WorkflowScheduleRun)
	})

	dispatch := func(context.Context, runtime.RunRequest) error {
		return errors.New("broker unavailable")
	}

	ctx := context.Background()
	sched := NewScheduler(slog.Default(), store, dispatch, nil, time.Hour, 1)
	require.NoError(t, sched.Start(ctx))

	sched.Tick(ctx, now)
	require.NoError(t, sched.Stop(ctx))

	require.NotNil(t, updated)
	assert.Equal(t, models.ScheduleRunStatusFailed, updated.Status)
	assert.Equal(t, "broker unavailable", updated.ErrorMessage)

	// The cadence advanced regardless of the failed dispatch.
	require.NotNil(t, schedule.NextRunAt)
	assert.Equal(t, now.Add(5*time.Minute), *schedule.NextRunAt)
}
