package file

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

func newTestStore(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func TestDefinitions_OrderedNodes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Definitions().SaveWorkflow(ctx, &models.Workflow{
		ID:          "wf-1",
		Name:        "fee reminders",
		Status:      models.WorkflowStatusActive,
		Kind:        models.WorkflowKindManual,
		InstituteID: "inst-1",
	}))

	for _, name := range []string{"second", "first"} {
		require.NoError(t, store.Definitions().SaveNodeTemplate(ctx, &models.NodeTemplate{
			ID:     "tpl-" + name,
			Name:   name,
			Type:   "http",
			Status: models.NodeTemplateStatusActive,
			Config: map[string]any{"url": "https://api.example.com/" + name},
		}))
	}

	require.NoError(t, store.Definitions().SaveNodeMapping(ctx, &models.WorkflowNodeMapping{
		ID: "map-2", WorkflowID: "wf-1", NodeTemplateID: "tpl-second", NodeOrder: 2,
	}))
	require.NoError(t, store.Definitions().SaveNodeMapping(ctx, &models.WorkflowNodeMapping{
		ID: "map-1", WorkflowID: "wf-1", NodeTemplateID: "tpl-first", NodeOrder: 1, IsStartNode: true,
	}))

	nodes, err := store.Definitions().OrderedNodes(ctx, "wf-1")
	require.NoError(t, err)

	require.Len(t, nodes, 2)
	assert.Equal(t, "first", nodes[0].Name())
	assert.Equal(t, "second", nodes[1].Name())
}

func TestDefinitions_SaveNodeTemplateRejectsInvalidConfig(t *testing.T) {
	store := newTestStore(t)

	err := store.Definitions().SaveNodeTemplate(context.Background(), &models.NodeTemplate{
		ID:     "tpl-bad",
		Name:   "bad",
		Type:   "http",
		Status: models.NodeTemplateStatusActive,
		Config: map[string]any{"method": "FETCH"},
	})
	require.Error(t, err)
}

func TestDefinitions_WorkflowNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Definitions().WorkflowByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutions_RoundTripAndLogs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	execution := models.NewWorkflowExecution("wf-1", map[string]any{"batchId": "b-9"})
	require.NoError(t, store.Executions().CreateExecution(ctx, execution))

	execution.Complete(models.ExecutionStatusCompleted)
	require.NoError(t, store.Executions().UpdateExecution(ctx, execution))

	loaded, err := store.Executions().ExecutionByID(ctx, execution.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, loaded.Status)
	assert.Equal(t, "b-9", loaded.InputData["batchId"])

	node := &models.WorkflowNode{
		Mapping:  models.WorkflowNodeMapping{ID: "map-1", NodeTemplateID: "tpl-1"},
		Template: models.NodeTemplate{ID: "tpl-1", Name: "notify", Type: "http"},
	}

	entry := models.NewExecutionLog(execution.ExecutionID, node)
	entry.MarkCompleted(models.LogStatusSuccess, map[string]any{"statusCode": 200}, "", "")
	require.NoError(t, store.Executions().SaveLog(ctx, entry))

	logs, err := store.Executions().LogsByExecution(ctx, execution.ExecutionID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "notify", logs[0].NodeName)
	assert.Equal(t, models.LogStatusSuccess, logs[0].Status)

	_, err = store.Executions().ExecutionByID(ctx, "exec-missing")
	assert.ErrorIs(t, err, persistence.ErrExecutionNotFound)
}

func TestSchedules_CreateRunClaimsPlannedMinuteOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	schedule := &models.WorkflowSchedule{ID: "sch-1", WorkflowID: "wf-1"}
	plannedAt := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	created, err := store.Schedules().CreateScheduleRun(ctx, models.NewScheduleRun(schedule, plannedAt))
	require.NoError(t, err)
	assert.True(t, created)

	// Same planned minute from a racing tick: same dedupe key, no second run.
	created, err = store.Schedules().CreateScheduleRun(ctx, models.NewScheduleRun(schedule, plannedAt.Add(30*time.Second)))
	require.NoError(t, err)
	assert.False(t, created)

	// The next minute is a fresh claim.
	created, err = store.Schedules().CreateScheduleRun(ctx, models.NewScheduleRun(schedule, plannedAt.Add(time.Minute)))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSchedules_ConcurrentCreateRunSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	schedule := &models.WorkflowSchedule{ID: "sch-1", WorkflowID: "wf-1"}
	plannedAt := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	const claimants = 32

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	// Every goroutine claims the same planned minute, as racing scheduler
	// replicas would. Exactly one may win.
	for range claimants {
		wg.Add(1)

		go func() {
			defer wg.Done()

			created, err := store.Schedules().CreateScheduleRun(ctx, models.NewScheduleRun(schedule, plannedAt))
			assert.NoError(t, err)

			if created {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	// The winner's claim persists past the race.
	created, err := store.Schedules().CreateScheduleRun(ctx, models.NewScheduleRun(schedule, plannedAt))
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSchedules_DueSchedules(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := &models.WorkflowSchedule{
		ID: "sch-due", WorkflowID: "wf-1",
		Type: models.ScheduleTypeInterval, IntervalMinutes: 5,
		Status: models.ScheduleStatusActive, NextRunAt: &past,
	}
	notYet := &models.WorkflowSchedule{
		ID: "sch-later", WorkflowID: "wf-1",
		Type: models.ScheduleTypeInterval, IntervalMinutes: 5,
		Status: models.ScheduleStatusActive, NextRunAt: &future,
	}
	paused := &models.WorkflowSchedule{
		ID: "sch-paused", WorkflowID: "wf-1",
		Type: models.ScheduleTypeInterval, IntervalMinutes: 5,
		Status: models.ScheduleStatusPaused, NextRunAt: &past,
	}

	for _, schedule := range []*models.WorkflowSchedule{due, notYet, paused} {
		require.NoError(t, store.Schedules().SaveSchedule(ctx, schedule))
	}

	found, err := store.Schedules().DueSchedules(ctx, now)
	require.NoError(t, err)

	require.Len(t, found, 1)
	assert.Equal(t, "sch-due", found[0].ID)
}

func TestDedupe_ReserveOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scope := "trigger"

	reserved, err := store.Dedupe().Reserve(ctx, models.NewDedupeRecord("wf-1", nil, &scope, nil, "op-1", 0))
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = store.Dedupe().Reserve(ctx, models.NewDedupeRecord("wf-1", nil, &scope, nil, "op-1", 0))
	require.NoError(t, err)
	assert.False(t, reserved)

	// A different operation key is an independent claim.
	reserved, err = store.Dedupe().Reserve(ctx, models.NewDedupeRecord("wf-1", nil, &scope, nil, "op-2", 0))
	require.NoError(t, err)
	assert.True(t, reserved)
}

func TestDedupe_ConcurrentReserveSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	scope := "trigger"

	const claimants = 32

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)

	// All goroutines race on one logical key. Exactly one reservation may
	// succeed.
	for range claimants {
		wg.Add(1)

		go func() {
			defer wg.Done()

			reserved, err := store.Dedupe().Reserve(ctx, models.NewDedupeRecord("wf-1", nil, &scope, nil, "op-race", time.Hour))
			assert.NoError(t, err)

			if reserved {
				wins.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestDedupe_ExpiredKeyIsReclaimable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := models.NewDedupeRecord("wf-1", nil, nil, nil, "op-ttl", time.Second)

	reserved, err := store.Dedupe().Reserve(ctx, first)
	require.NoError(t, err)
	assert.True(t, reserved)

	// A claim arriving after the TTL window replaces the stale marker.
	late := models.NewDedupeRecord("wf-1", nil, nil, nil, "op-ttl", time.Second)
	late.CreatedAt = first.CreatedAt.Add(5 * time.Second)

	reserved, err = store.Dedupe().Reserve(ctx, late)
	require.NoError(t, err)
	assert.True(t, reserved)
}
