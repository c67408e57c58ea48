package file

import (
	"context"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type triggerStore struct {
	p *Persistence
}

func (s *triggerStore) TriggerByEvent(ctx context.Context, instituteID, eventName string) (*models.WorkflowTrigger, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var found *models.WorkflowTrigger

	err := readAll(s.p, dirTriggers, func(trigger *models.WorkflowTrigger) {
		if trigger.InstituteID == instituteID &&
			trigger.EventName == eventName &&
			trigger.Status == models.TriggerStatusActive {
			found = trigger
		}
	})
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, persistence.ErrTriggerNotFound
	}

	return found, nil
}

func (s *triggerStore) SaveTrigger(ctx context.Context, trigger *models.WorkflowTrigger) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirTriggers, trigger.ID, trigger)
}
