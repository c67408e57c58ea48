package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type scheduleStore struct {
	p *Persistence
}

func (s *scheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]*models.WorkflowSchedule, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var due []*models.WorkflowSchedule

	err := readAll(s.p, dirSchedules, func(schedule *models.WorkflowSchedule) {
		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	})
	if err != nil {
		return nil, err
	}

	return due, nil
}

func (s *scheduleStore) ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var schedule models.WorkflowSchedule
	if err := s.p.read(dirSchedules, id, &schedule); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, err
	}

	return &schedule, nil
}

func (s *scheduleStore) SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirSchedules, schedule.ID, schedule)
}

// CreateScheduleRun inserts the run guarded by an O_EXCL marker file named
// after the dedupe key, so concurrent ticks racing on the same planned
// minute see exactly one winner.
func (s *scheduleStore) CreateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) (bool, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	marker := filepath.Join(s.p.root, dirScheduleRuns, keyFileName(run.DedupeKey)+".key")

	f, err := os.OpenFile(marker, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to reserve schedule run %s: %w", run.DedupeKey, err)
	}

	if err := f.Close(); err != nil {
		return false, err
	}

	return true, s.p.write(dirScheduleRuns, run.ID, run)
}

func (s *scheduleStore) UpdateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirScheduleRuns, run.ID, run)
}

// keyFileName hashes a logical key into a filesystem-safe name.
func keyFileName(key string) string {
	sum := sha256.Sum256([]byte(key))

	return hex.EncodeToString(sum[:])
}
