// Package dedupe provides the guard the trigger router and runtime use to
// ensure at-most-once side effects across engine instances.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

// Guard arbitrates idempotent operations through the shared ledger. All
// decisions go through a single atomic reserve on the store; the guard never
// checks before inserting, since a check-then-insert window would admit
// concurrent duplicates.
type Guard struct {
	store  persistence.DedupeStore
	logger *slog.Logger
}

// NewGuard creates a guard over the given ledger store.
func NewGuard(logger *slog.Logger, store persistence.DedupeStore) *Guard {
	return &Guard{
		store:  store,
		logger: logger.With("module", "dedupe"),
	}
}

// Reserve claims the operation key within the given scope. It returns true
// exactly once per logical key per TTL window; false means another claimant
// already holds it and the caller must treat the operation as done.
func (g *Guard) Reserve(ctx context.Context, workflowID string, nodeTemplateID, scope, scheduleRunID *string, operationKey string, ttl time.Duration) (bool, error) {
	record := models.NewDedupeRecord(workflowID, nodeTemplateID, scope, scheduleRunID, operationKey, ttl)

	reserved, err := g.store.Reserve(ctx, record)
	if err != nil {
		return false, fmt.Errorf("dedupe reserve failed: %w", err)
	}

	if !reserved {
		g.logger.InfoContext(ctx, "Duplicate operation suppressed",
			"workflow_id", workflowID,
			"logical_key", record.LogicalKey())
	}

	return reserved, nil
}
