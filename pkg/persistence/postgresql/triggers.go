package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type triggerStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func (s *triggerStore) TriggerByEvent(ctx context.Context, instituteID, eventName string) (*models.WorkflowTrigger, error) {
	query := `
		SELECT
			id
		  , institute_id
		  , event_name
		  , workflow_id
		  , status
		  , idempotency
		  , created_at
		  , updated_at
		FROM workflow_triggers
		WHERE institute_id = $1 AND event_name = $2
	`

	var (
		trigger        models.WorkflowTrigger
		idempotencyRaw []byte
	)

	err := s.db.QueryRowContext(ctx, query, instituteID, eventName).Scan(
		&trigger.ID, &trigger.InstituteID, &trigger.EventName, &trigger.WorkflowID,
		&trigger.Status, &idempotencyRaw, &trigger.CreatedAt, &trigger.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTriggerNotFound
		}

		return nil, fmt.Errorf("failed to query trigger for %s/%s: %w", instituteID, eventName, err)
	}

	if len(idempotencyRaw) > 0 {
		if err := json.Unmarshal(idempotencyRaw, &trigger.Idempotency); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trigger idempotency settings: %w", err)
		}
	}

	return &trigger, nil
}

func (s *triggerStore) SaveTrigger(ctx context.Context, trigger *models.WorkflowTrigger) error {
	idempotencyRaw, err := json.Marshal(trigger.Idempotency)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger idempotency settings: %w", err)
	}

	now := time.Now().UTC()
	if trigger.CreatedAt.IsZero() {
		trigger.CreatedAt = now
	}

	trigger.UpdatedAt = now

	query := `
		INSERT INTO workflow_triggers
			(id, institute_id, event_name, workflow_id, status, idempotency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (institute_id, event_name) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			status = EXCLUDED.status,
			idempotency = EXCLUDED.idempotency,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		trigger.ID, trigger.InstituteID, trigger.EventName, trigger.WorkflowID,
		trigger.Status, idempotencyRaw, trigger.CreatedAt, trigger.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save trigger %s: %w", trigger.ID, err)
	}

	return nil
}
