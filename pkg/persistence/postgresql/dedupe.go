package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/campushive/flowkit/pkg/models"
)

type dedupeStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Reserve claims the record's logical key with a single insert. The unique
// index over (workflow_id, node_template_id, scope, operation_key) arbitrates
// between concurrent claimants; the loser observes the violation and reports
// false without error. Expired rows are cleared first so a TTL'd key can be
// claimed again after its window.
func (s *dedupeStore) Reserve(ctx context.Context, record *models.NodeDedupeRecord) (bool, error) {
	if record.TTL > 0 {
		if err := s.expire(ctx, record); err != nil {
			return false, err
		}
	}

	var expiresAt *time.Time

	if record.TTL > 0 {
		t := record.CreatedAt.Add(record.TTL)
		expiresAt = &t
	}

	query := `
		INSERT INTO node_dedupe_records
			(id, workflow_id, node_template_id, scope, schedule_run_id, operation_key, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID, record.WorkflowID, record.NodeTemplateID, record.Scope,
		record.ScheduleRunID, record.OperationKey, expiresAt, record.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}

		return false, fmt.Errorf("failed to reserve dedupe key %s: %w", record.LogicalKey(), err)
	}

	return true, nil
}

// expire deletes a previous claim on the same logical key whose TTL has
// elapsed. Races here are harmless: if two claimants both delete, the insert
// still admits exactly one of them.
func (s *dedupeStore) expire(ctx context.Context, record *models.NodeDedupeRecord) error {
	query := `
		DELETE FROM node_dedupe_records
		WHERE workflow_id = $1
		  AND COALESCE(node_template_id, '') = $2
		  AND COALESCE(scope, '') = $3
		  AND operation_key = $4
		  AND expires_at IS NOT NULL
		  AND expires_at <= NOW()
	`

	result, err := s.db.ExecContext(ctx, query,
		record.WorkflowID, derefOrEmpty(record.NodeTemplateID), derefOrEmpty(record.Scope), record.OperationKey)
	if err != nil {
		return fmt.Errorf("failed to expire dedupe key %s: %w", record.LogicalKey(), err)
	}

	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		s.logger.DebugContext(ctx, "Expired stale dedupe record", "logical_key", record.LogicalKey())
	}

	return nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
