// Package postgresql provides the PostgreSQL persistence backend. The dedupe
// ledger and schedule-run tables carry the uniqueness constraints the whole
// engine's idempotency rests on.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq" // also registers the postgres driver

	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/persistence/sqlbase"
)

// uniqueViolation is the postgres error code for a uniqueness-constraint
// violation, the expected signal for "already handled" on dedupe inserts.
const uniqueViolation = pq.ErrorCode("23505")

// Persistence implements persistence.Persistence on PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	definitions *definitionStore
	executions  *executionStore
	schedules   *scheduleStore
	triggers    *triggerStore
	dedupe      *dedupeStore
}

// NewPersistence connects, migrates and returns the postgres backend.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, db, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	p := &Persistence{db: db, logger: logger}
	p.definitions = &definitionStore{db: db, logger: logger}
	p.executions = &executionStore{db: db, logger: logger}
	p.schedules = &scheduleStore{db: db, logger: logger}
	p.triggers = &triggerStore{db: db, logger: logger}
	p.dedupe = &dedupeStore{db: db, logger: logger}

	return p, nil
}

func (p *Persistence) Definitions() persistence.DefinitionStore { return p.definitions }
func (p *Persistence) Executions() persistence.ExecutionStore   { return p.executions }
func (p *Persistence) Schedules() persistence.ScheduleStore     { return p.schedules }
func (p *Persistence) Triggers() persistence.TriggerStore       { return p.triggers }
func (p *Persistence) Dedupe() persistence.DedupeStore          { return p.dedupe }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func closeRows(logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Error("failed to close rows", "error", err)
	}
}
