package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

type definitionStore struct {
	p *Persistence
}

func (s *definitionStore) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var workflow models.Workflow
	if err := s.p.read(dirWorkflows, id, &workflow); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	return &workflow, nil
}

func (s *definitionStore) OrderedNodes(ctx context.Context, workflowID string) ([]models.WorkflowNode, error) {
	s.p.mu.RLock()
	defer s.p.mu.RUnlock()

	var mappings []models.WorkflowNodeMapping

	err := readAll(s.p, dirMappings, func(m *models.WorkflowNodeMapping) {
		if m.WorkflowID == workflowID {
			mappings = append(mappings, *m)
		}
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].NodeOrder < mappings[j].NodeOrder
	})

	nodes := make([]models.WorkflowNode, 0, len(mappings))

	for _, mapping := range mappings {
		var template models.NodeTemplate
		if err := s.p.read(dirTemplates, mapping.NodeTemplateID, &template); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("node %s of workflow %s: %w",
					mapping.NodeTemplateID, workflowID, persistence.ErrNodeTemplateNotFound)
			}

			return nil, err
		}

		if !template.IsUsable() {
			return nil, fmt.Errorf("node %s of workflow %s is %s: %w",
				template.ID, workflowID, template.Status, persistence.ErrNodeTemplateNotFound)
		}

		nodes = append(nodes, models.WorkflowNode{Mapping: mapping, Template: template})
	}

	return nodes, nil
}

func (s *definitionStore) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirWorkflows, workflow.ID, workflow)
}

func (s *definitionStore) SaveNodeTemplate(ctx context.Context, template *models.NodeTemplate) error {
	if err := template.ValidateConfig(); err != nil {
		return err
	}

	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirTemplates, template.ID, template)
}

func (s *definitionStore) SaveNodeMapping(ctx context.Context, mapping *models.WorkflowNodeMapping) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()

	return s.p.write(dirMappings, mapping.ID, mapping)
}
