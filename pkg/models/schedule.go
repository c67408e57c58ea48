package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// ScheduleType selects how a schedule's cadence is expressed.
type ScheduleType string

const (
	ScheduleTypeCron       ScheduleType = "CRON"
	ScheduleTypeInterval   ScheduleType = "INTERVAL"
	ScheduleTypeDayOfMonth ScheduleType = "DAY_OF_MONTH"
)

// ScheduleStatus represents the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleStatusActive  ScheduleStatus = "ACTIVE"
	ScheduleStatusPaused  ScheduleStatus = "PAUSED"
	ScheduleStatusExpired ScheduleStatus = "EXPIRED"
)

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// WorkflowSchedule is a recurring trigger definition for a workflow. The
// scheduler advances LastRunAt/NextRunAt after every evaluation cycle,
// independent of whether the fire actually dispatched, so a failed run can
// never wedge the cadence.
type WorkflowSchedule struct {
	ID              string         `json:"id"          validate:"required"`
	WorkflowID      string         `json:"workflow_id" validate:"required"`
	Type            ScheduleType   `json:"type"        validate:"required"`
	CronExpression  string         `json:"cron_expression,omitempty"`
	IntervalMinutes int            `json:"interval_minutes,omitempty"`
	DayOfMonth      int            `json:"day_of_month,omitempty"`
	FireTime        string         `json:"fire_time,omitempty"` // "15:04", used with DAY_OF_MONTH
	Timezone        string         `json:"timezone"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	Status          ScheduleStatus `json:"status"`
	LastRunAt       *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt       *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Location resolves the schedule's IANA timezone, defaulting to UTC when the
// field is empty or unknown.
func (s *WorkflowSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// ComputeNextRun calculates the next fire time strictly after the reference
// time, evaluated in the schedule's timezone.
func (s *WorkflowSchedule) ComputeNextRun(after time.Time) (time.Time, error) {
	local := after.In(s.Location())

	switch s.Type {
	case ScheduleTypeCron:
		cronSchedule, err := cronParser.Parse(s.CronExpression)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", s.CronExpression, err)
		}

		return cronSchedule.Next(local).UTC(), nil

	case ScheduleTypeInterval:
		if s.IntervalMinutes <= 0 {
			return time.Time{}, ErrInvalidSchedule
		}

		return after.Add(time.Duration(s.IntervalMinutes) * time.Minute).UTC(), nil

	case ScheduleTypeDayOfMonth:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return time.Time{}, ErrInvalidSchedule
		}

		return s.nextDayOfMonth(local).UTC(), nil

	default:
		return time.Time{}, ErrInvalidSchedule
	}
}

// nextDayOfMonth finds the next occurrence of the configured day of month at
// FireTime. A day beyond the month's length clamps to the month's last day,
// so "31" fires on Feb 28 (29 in leap years).
func (s *WorkflowSchedule) nextDayOfMonth(after time.Time) time.Time {
	hour, minute := s.fireClock()

	candidate := timeOnDay(after.Year(), after.Month(), s.DayOfMonth, hour, minute, after.Location())
	if candidate.After(after) {
		return candidate
	}

	next := after.AddDate(0, 1, -after.Day()+1) // first day of next month
	return timeOnDay(next.Year(), next.Month(), s.DayOfMonth, hour, minute, after.Location())
}

func (s *WorkflowSchedule) fireClock() (int, int) {
	var hour, minute int
	if s.FireTime != "" {
		if t, err := time.Parse("15:04", s.FireTime); err == nil {
			hour, minute = t.Hour(), t.Minute()
		}
	}

	return hour, minute
}

// timeOnDay builds a time on the given day, clamped to the last day of the
// month when day exceeds the month's length.
func timeOnDay(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// WithinWindow reports whether now falls inside the schedule's validity
// window. Nil bounds are open.
func (s *WorkflowSchedule) WithinWindow(now time.Time) bool {
	if s.StartDate != nil && now.Before(*s.StartDate) {
		return false
	}

	if s.EndDate != nil && now.After(*s.EndDate) {
		return false
	}

	return true
}

// IsDue reports whether the schedule should fire at the given time.
func (s *WorkflowSchedule) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusActive && s.NextRunAt != nil && !s.NextRunAt.After(now)
}

// Advance records a completed evaluation cycle: LastRunAt moves to the fired
// time and NextRunAt is recomputed from it.
func (s *WorkflowSchedule) Advance(firedAt time.Time) error {
	next, err := s.ComputeNextRun(firedAt)
	if err != nil {
		return err
	}

	fired := firedAt.UTC()
	s.LastRunAt = &fired
	s.NextRunAt = &next
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// Validate checks the schedule's cadence configuration.
func (s *WorkflowSchedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" {
		return ErrInvalidSchedule
	}

	switch s.Type {
	case ScheduleTypeCron:
		_, err := cronParser.Parse(s.CronExpression)
		return err
	case ScheduleTypeInterval:
		if s.IntervalMinutes <= 0 {
			return ErrInvalidSchedule
		}
	case ScheduleTypeDayOfMonth:
		if s.DayOfMonth < 1 || s.DayOfMonth > 31 {
			return ErrInvalidSchedule
		}
	default:
		return ErrInvalidSchedule
	}

	return nil
}

// ScheduleRunStatus represents the state of one planned firing.
type ScheduleRunStatus string

const (
	ScheduleRunStatusCreated    ScheduleRunStatus = "CREATED"
	ScheduleRunStatusDispatched ScheduleRunStatus = "DISPATCHED"
	ScheduleRunStatusSkipped    ScheduleRunStatus = "SKIPPED"
	ScheduleRunStatusFailed     ScheduleRunStatus = "FAILED"
)

// WorkflowScheduleRun is one planned firing of a schedule. DedupeKey is
// unique per (schedule, planned minute) so a given minute fires at most once
// even under concurrent scheduler ticks.
type WorkflowScheduleRun struct {
	ID           string            `json:"id"`
	ScheduleID   string            `json:"schedule_id"`
	WorkflowID   string            `json:"workflow_id"`
	PlannedRunAt time.Time         `json:"planned_run_at"`
	FiredAt      *time.Time        `json:"fired_at,omitempty"`
	Status       ScheduleRunStatus `json:"status"`
	DedupeKey    string            `json:"dedupe_key"`
	ErrorMessage string            `json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// NewScheduleRun creates a planned run with its deterministic dedupe key.
func NewScheduleRun(schedule *WorkflowSchedule, plannedRunAt time.Time) *WorkflowScheduleRun {
	return &WorkflowScheduleRun{
		ID:           uuid.New().String(),
		ScheduleID:   schedule.ID,
		WorkflowID:   schedule.WorkflowID,
		PlannedRunAt: plannedRunAt.UTC(),
		Status:       ScheduleRunStatusCreated,
		DedupeKey:    ScheduleRunDedupeKey(schedule.ID, plannedRunAt),
		CreatedAt:    time.Now().UTC(),
	}
}

// ScheduleRunDedupeKey derives the stable key identifying one planned firing.
// The planned time is truncated to the minute so concurrent ticks inside the
// same minute collide on the same key.
func ScheduleRunDedupeKey(scheduleID string, plannedRunAt time.Time) string {
	return scheduleID + ":" + plannedRunAt.UTC().Truncate(time.Minute).Format("200601021504")
}
