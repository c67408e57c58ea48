package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNextRun_Cron(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:             "sch-1",
		WorkflowID:     "wf-1",
		Type:           ScheduleTypeCron,
		CronExpression: "30 9 * * *",
	}

	after := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	next, err := schedule.ComputeNextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), next)
}

func TestComputeNextRun_CronInTimezone(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:             "sch-1",
		WorkflowID:     "wf-1",
		Type:           ScheduleTypeCron,
		CronExpression: "0 9 * * *",
		Timezone:       "Asia/Kolkata",
	}

	// 05:00 UTC is 10:30 IST, past the 09:00 fire time, so the next fire
	// is 09:00 IST the following day, which is 03:30 UTC.
	after := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)

	next, err := schedule.ComputeNextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 3, 30, 0, 0, time.UTC), next)
}

func TestComputeNextRun_InvalidCron(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:             "sch-1",
		WorkflowID:     "wf-1",
		Type:           ScheduleTypeCron,
		CronExpression: "not a cron",
	}

	_, err := schedule.ComputeNextRun(time.Now())
	assert.Error(t, err)
}

func TestComputeNextRun_Interval(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:              "sch-1",
		WorkflowID:      "wf-1",
		Type:            ScheduleTypeInterval,
		IntervalMinutes: 45,
	}

	after := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	next, err := schedule.ComputeNextRun(after)
	require.NoError(t, err)
	assert.Equal(t, after.Add(45*time.Minute), next)
}

func TestComputeNextRun_DayOfMonthClampsToShortMonth(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:         "sch-1",
		WorkflowID: "wf-1",
		Type:       ScheduleTypeDayOfMonth,
		DayOfMonth: 31,
		FireTime:   "08:00",
	}

	// Next occurrence after Feb 1 must clamp to Feb 28 in a non-leap year.
	after := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	next, err := schedule.ComputeNextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC), next)
}

func TestComputeNextRun_DayOfMonthRollsToNextMonth(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:         "sch-1",
		WorkflowID: "wf-1",
		Type:       ScheduleTypeDayOfMonth,
		DayOfMonth: 5,
		FireTime:   "10:00",
	}

	// The 5th at 10:00 already passed this month.
	after := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	next, err := schedule.ComputeNextRun(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC), next)
}

func TestAdvance_MovesCadenceForward(t *testing.T) {
	schedule := &WorkflowSchedule{
		ID:              "sch-1",
		WorkflowID:      "wf-1",
		Type:            ScheduleTypeInterval,
		IntervalMinutes: 30,
		Status:          ScheduleStatusActive,
	}

	firedAt := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, schedule.Advance(firedAt))
	require.NotNil(t, schedule.LastRunAt)
	require.NotNil(t, schedule.NextRunAt)
	assert.Equal(t, firedAt, *schedule.LastRunAt)
	assert.Equal(t, firedAt.Add(30*time.Minute), *schedule.NextRunAt)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		status   ScheduleStatus
		next     *time.Time
		expected bool
	}{
		{"active and due", ScheduleStatusActive, &past, true},
		{"active exactly now", ScheduleStatusActive, &now, true},
		{"active but future", ScheduleStatusActive, &future, false},
		{"paused", ScheduleStatusPaused, &past, false},
		{"no next run", ScheduleStatusActive, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule := &WorkflowSchedule{Status: tt.status, NextRunAt: tt.next}
			assert.Equal(t, tt.expected, schedule.IsDue(now))
		})
	}
}

func TestWithinWindow(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	schedule := &WorkflowSchedule{StartDate: &start, EndDate: &end}

	assert.True(t, schedule.WithinWindow(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, schedule.WithinWindow(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, schedule.WithinWindow(time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)))

	open := &WorkflowSchedule{}
	assert.True(t, open.WithinWindow(time.Now()))
}

func TestScheduleRunDedupeKey_TruncatesToMinute(t *testing.T) {
	base := time.Date(2026, 3, 10, 8, 15, 0, 0, time.UTC)

	key1 := ScheduleRunDedupeKey("sch-1", base.Add(5*time.Second))
	key2 := ScheduleRunDedupeKey("sch-1", base.Add(45*time.Second))

	assert.Equal(t, key1, key2)
	assert.Equal(t, "sch-1:202603100815", key1)

	assert.NotEqual(t, key1, ScheduleRunDedupeKey("sch-1", base.Add(time.Minute)))
	assert.NotEqual(t, key1, ScheduleRunDedupeKey("sch-2", base))
}

func TestNewScheduleRun(t *testing.T) {
	schedule := &WorkflowSchedule{ID: "sch-9", WorkflowID: "wf-9"}
	plannedAt := time.Date(2026, 3, 10, 8, 15, 30, 0, time.UTC)

	run := NewScheduleRun(schedule, plannedAt)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "sch-9", run.ScheduleID)
	assert.Equal(t, "wf-9", run.WorkflowID)
	assert.Equal(t, ScheduleRunStatusCreated, run.Status)
	assert.Equal(t, ScheduleRunDedupeKey("sch-9", plannedAt), run.DedupeKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		schedule WorkflowSchedule
		valid    bool
	}{
		{"valid cron", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeCron, CronExpression: "0 9 * * 1"}, true},
		{"bad cron", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeCron, CronExpression: "bogus"}, false},
		{"valid interval", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeInterval, IntervalMinutes: 10}, true},
		{"zero interval", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeInterval}, false},
		{"valid day of month", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeDayOfMonth, DayOfMonth: 31}, true},
		{"day out of range", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: ScheduleTypeDayOfMonth, DayOfMonth: 32}, false},
		{"missing ids", WorkflowSchedule{Type: ScheduleTypeInterval, IntervalMinutes: 10}, false},
		{"unknown type", WorkflowSchedule{ID: "s", WorkflowID: "w", Type: "WEEKLY"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schedule.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
