// Package file provides a JSON-file persistence backend, used for local
// development and tests. Dedupe reservations rely on O_EXCL file creation so
// the "insert once" contract holds even across processes sharing the
// directory.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/campushive/flowkit/pkg/persistence"
)

const (
	dirWorkflows    = "workflows"
	dirTemplates    = "node_templates"
	dirMappings     = "node_mappings"
	dirExecutions   = "executions"
	dirLogs         = "execution_logs"
	dirSchedules    = "schedules"
	dirScheduleRuns = "schedule_runs"
	dirTriggers     = "triggers"
	dirDedupe       = "dedupe"
)

// Persistence implements persistence.Persistence on a directory tree.
type Persistence struct {
	root string
	mu   sync.RWMutex

	definitions *definitionStore
	executions  *executionStore
	schedules   *scheduleStore
	triggers    *triggerStore
	dedupe      *dedupeStore
}

// NewPersistence creates a file persistence rooted at the given path,
// creating the directory layout when absent.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	for _, dir := range []string{
		dirWorkflows, dirTemplates, dirMappings, dirExecutions,
		dirLogs, dirSchedules, dirScheduleRuns, dirTriggers, dirDedupe,
	} {
		if err := os.MkdirAll(filepath.Join(cleanRoot, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	p := &Persistence{root: cleanRoot}
	p.definitions = &definitionStore{p}
	p.executions = &executionStore{p}
	p.schedules = &scheduleStore{p}
	p.triggers = &triggerStore{p}
	p.dedupe = &dedupeStore{p}

	return p, nil
}

func (p *Persistence) Definitions() persistence.DefinitionStore { return p.definitions }
func (p *Persistence) Executions() persistence.ExecutionStore   { return p.executions }
func (p *Persistence) Schedules() persistence.ScheduleStore     { return p.schedules }
func (p *Persistence) Triggers() persistence.TriggerStore       { return p.triggers }
func (p *Persistence) Dedupe() persistence.DedupeStore          { return p.dedupe }

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) path(dir, id string) string {
	return filepath.Join(p.root, dir, id+".json")
}

// write stores an entity as a JSON file. Caller holds the lock.
func (p *Persistence) write(dir, id string, entity any) error {
	data, err := json.MarshalIndent(entity, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", dir, id, err)
	}

	if err := os.WriteFile(p.path(dir, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	return nil
}

// read loads one entity; returns os.ErrNotExist when absent. Caller holds
// the lock.
func (p *Persistence) read(dir, id string, entity any) error {
	data, err := os.ReadFile(p.path(dir, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", dir, id, err)
	}

	return nil
}

// readAll decodes every entity in a directory through the visit callback.
// Caller holds the lock.
func readAll[T any](p *Persistence, dir string, visit func(*T)) error {
	entries, err := os.ReadDir(filepath.Join(p.root, dir))
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(p.root, dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s/%s: %w", dir, entry.Name(), err)
		}

		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", dir, entry.Name(), err)
		}

		visit(&entity)
	}

	return nil
}
