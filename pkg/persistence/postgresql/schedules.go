package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type scheduleStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const scheduleColumns = `
	id
  , workflow_id
  , type
  , cron_expression
  , interval_minutes
  , day_of_month
  , fire_time
  , timezone
  , start_date
  , end_date
  , status
  , last_run_at
  , next_run_at
  , created_at
  , updated_at
`

func (s *scheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]*models.WorkflowSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM workflow_schedules
		WHERE status = $1 AND next_run_at IS NOT NULL AND next_run_at <= $2
		ORDER BY next_run_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, models.ScheduleStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}

	defer closeRows(s.logger, rows)

	schedules := make([]*models.WorkflowSchedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

func (s *scheduleStore) ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM workflow_schedules
		WHERE id = $1
	`

	schedule, err := scanSchedule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, err
	}

	return schedule, nil
}

func (s *scheduleStore) SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error {
	query := `
		INSERT INTO workflow_schedules
			(id, workflow_id, type, cron_expression, interval_minutes, day_of_month, fire_time,
			 timezone, start_date, end_date, status, last_run_at, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		schedule.ID, schedule.WorkflowID, schedule.Type, schedule.CronExpression,
		schedule.IntervalMinutes, schedule.DayOfMonth, schedule.FireTime,
		schedule.Timezone, schedule.StartDate, schedule.EndDate, schedule.Status,
		schedule.LastRunAt, schedule.NextRunAt, schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

// CreateScheduleRun inserts atomically against the dedupe_key uniqueness
// constraint. A violation means another tick or instance already created
// this run; the caller treats false as an idempotent no-op.
func (s *scheduleStore) CreateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) (bool, error) {
	query := `
		INSERT INTO workflow_schedule_runs
			(id, schedule_id, workflow_id, planned_run_at, fired_at, status, dedupe_key, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (dedupe_key) DO NOTHING
	`

	result, err := s.db.ExecContext(ctx, query,
		run.ID, run.ScheduleID, run.WorkflowID, run.PlannedRunAt, run.FiredAt,
		run.Status, run.DedupeKey, nullableString(run.ErrorMessage), run.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create schedule run %s: %w", run.DedupeKey, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return affected == 1, nil
}

func (s *scheduleStore) UpdateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) error {
	query := `
		UPDATE workflow_schedule_runs
		SET status = $2
		  , fired_at = $3
		  , error_message = $4
		WHERE id = $1
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Status, run.FiredAt, nullableString(run.ErrorMessage))
	if err != nil {
		return fmt.Errorf("failed to update schedule run %s: %w", run.ID, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.WorkflowSchedule, error) {
	var (
		schedule        models.WorkflowSchedule
		cronExpression  sql.NullString
		intervalMinutes sql.NullInt64
		dayOfMonth      sql.NullInt64
		fireTime        sql.NullString
		timezone        sql.NullString
		startDate       sql.NullTime
		endDate         sql.NullTime
		lastRunAt       sql.NullTime
		nextRunAt       sql.NullTime
	)

	err := row.Scan(
		&schedule.ID, &schedule.WorkflowID, &schedule.Type, &cronExpression,
		&intervalMinutes, &dayOfMonth, &fireTime, &timezone,
		&startDate, &endDate, &schedule.Status, &lastRunAt, &nextRunAt,
		&schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	schedule.CronExpression = cronExpression.String
	schedule.IntervalMinutes = int(intervalMinutes.Int64)
	schedule.DayOfMonth = int(dayOfMonth.Int64)
	schedule.FireTime = fireTime.String
	schedule.Timezone = timezone.String
	schedule.StartDate = timePtr(startDate)
	schedule.EndDate = timePtr(endDate)
	schedule.LastRunAt = timePtr(lastRunAt)
	schedule.NextRunAt = timePtr(nextRunAt)

	return &schedule, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time

	return &value
}
