package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
)

// MockPersistence is a mock implementation of persistence.Persistence that
// exposes its per-store mocks as fields.
type MockPersistence struct {
	mock.Mock

	DefinitionStore *MockDefinitionStore
	ExecutionStore  *MockExecutionStore
	ScheduleStore   *MockScheduleStore
	TriggerStore    *MockTriggerStore
	DedupeStore     *MockDedupeStore
}

// NewMockPersistence builds a MockPersistence with all store mocks wired.
func NewMockPersistence() *MockPersistence {
	return &MockPersistence{
		DefinitionStore: &MockDefinitionStore{},
		ExecutionStore:  &MockExecutionStore{},
		ScheduleStore:   &MockScheduleStore{},
		TriggerStore:    &MockTriggerStore{},
		DedupeStore:     &MockDedupeStore{},
	}
}

func (m *MockPersistence) Definitions() persistence.DefinitionStore { return m.DefinitionStore }
func (m *MockPersistence) Executions() persistence.ExecutionStore   { return m.ExecutionStore }
func (m *MockPersistence) Schedules() persistence.ScheduleStore     { return m.ScheduleStore }
func (m *MockPersistence) Triggers() persistence.TriggerStore       { return m.TriggerStore }
func (m *MockPersistence) Dedupe() persistence.DedupeStore          { return m.DedupeStore }

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

// MockDefinitionStore is a mock implementation of persistence.DefinitionStore.
type MockDefinitionStore struct {
	mock.Mock
}

func (m *MockDefinitionStore) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Workflow), args.Error(1)
}

func (m *MockDefinitionStore) OrderedNodes(ctx context.Context, workflowID string) ([]models.WorkflowNode, error) {
	args := m.Called(ctx, workflowID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]models.WorkflowNode), args.Error(1)
}

func (m *MockDefinitionStore) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	args := m.Called(ctx, workflow)

	return args.Error(0)
}

func (m *MockDefinitionStore) SaveNodeTemplate(ctx context.Context, template *models.NodeTemplate) error {
	args := m.Called(ctx, template)

	return args.Error(0)
}

func (m *MockDefinitionStore) SaveNodeMapping(ctx context.Context, mapping *models.WorkflowNodeMapping) error {
	args := m.Called(ctx, mapping)

	return args.Error(0)
}

// MockExecutionStore is a mock implementation of persistence.ExecutionStore.
type MockExecutionStore struct {
	mock.Mock
}

func (m *MockExecutionStore) CreateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionStore) UpdateExecution(ctx context.Context, execution *models.WorkflowExecution) error {
	args := m.Called(ctx, execution)

	return args.Error(0)
}

func (m *MockExecutionStore) ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowExecution, error) {
	args := m.Called(ctx, executionID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowExecution), args.Error(1)
}

func (m *MockExecutionStore) SaveLog(ctx context.Context, entry *models.WorkflowExecutionLog) error {
	args := m.Called(ctx, entry)

	return args.Error(0)
}

func (m *MockExecutionStore) LogsByExecution(ctx context.Context, executionID string) ([]*models.WorkflowExecutionLog, error) {
	args := m.Called(ctx, executionID)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowExecutionLog), args.Error(1)
}

// MockScheduleStore is a mock implementation of persistence.ScheduleStore.
type MockScheduleStore struct {
	mock.Mock
}

func (m *MockScheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]*models.WorkflowSchedule, error) {
	args := m.Called(ctx, now)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.WorkflowSchedule), args.Error(1)
}

func (m *MockScheduleStore) ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error) {
	args := m.Called(ctx, id)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowSchedule), args.Error(1)
}

func (m *MockScheduleStore) SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error {
	args := m.Called(ctx, schedule)

	return args.Error(0)
}

func (m *MockScheduleStore) CreateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) (bool, error) {
	args := m.Called(ctx, run)

	return args.Bool(0), args.Error(1)
}

func (m *MockScheduleStore) UpdateScheduleRun(ctx context.Context, run *models.WorkflowScheduleRun) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

// MockTriggerStore is a mock implementation of persistence.TriggerStore.
type MockTriggerStore struct {
	mock.Mock
}

func (m *MockTriggerStore) TriggerByEvent(ctx context.Context, instituteID, eventName string) (*models.WorkflowTrigger, error) {
	args := m.Called(ctx, instituteID, eventName)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.WorkflowTrigger), args.Error(1)
}

func (m *MockTriggerStore) SaveTrigger(ctx context.Context, trigger *models.WorkflowTrigger) error {
	args := m.Called(ctx, trigger)

	return args.Error(0)
}

// MockDedupeStore is a mock implementation of persistence.DedupeStore.
type MockDedupeStore struct {
	mock.Mock
}

func (m *MockDedupeStore) Reserve(ctx context.Context, record *models.NodeDedupeRecord) (bool, error) {
	args := m.Called(ctx, record)

	return args.Bool(0), args.Error(1)
}
