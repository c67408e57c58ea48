package file

import (
	"context"
	"errors"
	"os"
	"sort"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type executionStore struct {
	p *Persistence
}

func (s *executionStore) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirExecutions, execution.ExecutionID, execution)
}

func (s *executionStore) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirExecutions, execution.ExecutionID, execution)
}

func (s *executionStore) ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var execution models.WorkflowExecution
	if err := s.p.read(dirExecutions, executionID, &execution); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, err
	}

	return &execution, nil
}

func (s *executionStore) SaveLog(ctx context.Context, entry *models.WorkflowExecutionLog) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirLogs, entry.ID, entry)
}

func (s *executionStore) LogsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionLog, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var logs []*models.WorkflowExecutionLog

	err := readAll(s.p, dirLogs, func(l *models.WorkflowExecutionLog) {
		if l.ExecutionID == executionID {
			logs = append(logs, l)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].StartedAt.Before(logs[j].StartedAt)
	})

	return logs, nil
}
