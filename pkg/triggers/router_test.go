package triggers

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campushive/flowkit/pkg/dedupe"
	"github.com/campushive/flowkit/pkg/events"
	"github.com/campushive/flowkit/pkg/mocks"
	"github.com/campushive/flowkit/pkg/models"
	"github.com/campushive/flowkit/pkg/persistence"
	"github.com/campushive/flowkit/pkg/runtime"
)

func feePaidTrigger() *models.WorkflowTrigger {
	return &models.WorkflowTrigger{
		ID:          "trg-1",
		InstituteID: "inst-1",
		EventName:   "fee.payment.received",
		WorkflowID:  "wf-1",
		Status:      models.TriggerStatusActive,
		Idempotency: models.IdempotencySettings{
			Strategy:      models.IdempotencyContextBased,
			ContextFields: []string{"receiptId"},
			TTLSeconds:    3600,
		},
	}
}

func noDispatch(t *testing.T) DispatchFunc {
	return func(context.Context, runtime.RunRequest) (*models.WorkflowExecution, error) {
		t.Fatal("dispatch must not be called")

		return nil, nil
	}
}

func newTestRouter(store *mocks.MockTriggerStore, dedupeStore *mocks.MockDedupeStore, dispatch DispatchFunc) *Router {
	guard := dedupe.NewGuard(slog.Default(), dedupeStore)

	return NewRouter(slog.Default(), store, guard, dispatch, nil)
}

func TestHandleEvent_NoBindingIsSilentNoOp(t *testing.T) {
	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").
		Return(nil, persistence.ErrTriggerNotFound)

	router := newTestRouter(store, &mocks.MockDedupeStore{}, noDispatch(t))

	result, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)
}

func TestHandleEvent_InactiveTriggerIgnored(t *testing.T) {
	trigger := feePaidTrigger()
	trigger.Status = models.TriggerStatusInactive

	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(trigger, nil)

	dedupeStore := &mocks.MockDedupeStore{}
	router := newTestRouter(store, dedupeStore, noDispatch(t))

	result, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received", nil)
	require.NoError(t, err)
	assert.Equal(t, Result{}, result)

	dedupeStore.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything)
}

func TestHandleEvent_DuplicateSuppressed(t *testing.T) {
	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(feePaidTrigger(), nil)

	dedupeStore := &mocks.MockDedupeStore{}
	dedupeStore.On("Reserve", mock.Anything, mock.Anything).Return(false, nil)

	router := newTestRouter(store, dedupeStore, noDispatch(t))

	result, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received",
		map[string]any{"receiptId": "rcpt-991"})
	require.NoError(t, err)

	assert.True(t, result.Duplicate)
	assert.False(t, result.Fired)
	assert.Empty(t, result.ExecutionID)
}

func TestHandleEvent_FiresBoundWorkflow(t *testing.T) {
	trigger := feePaidTrigger()

	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(trigger, nil)

	var record *models.NodeDedupeRecord

	dedupeStore := &mocks.MockDedupeStore{}
	dedupeStore.On("Reserve", mock.Anything, mock.Anything).Return(true, nil).Run(func(args mock.Arguments) {
		record = args.Get(1).(*models.NodeDedupeRecord)
	})

	payload := map[string]any{"receiptId": "rcpt-991", "amount": 2500}

	var dispatched runtime.RunRequest

	dispatch := func(_ context.Context, req runtime.RunRequest) (*models.WorkflowExecution, error) {
		dispatched = req

		return &models.WorkflowExecution{ExecutionID: "exec-abc12345"}, nil
	}

	router := newTestRouter(store, dedupeStore, dispatch)

	result, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received", payload)
	require.NoError(t, err)

	assert.True(t, result.Fired)
	assert.Equal(t, "exec-abc12345", result.ExecutionID)

	assert.Equal(t, "wf-1", dispatched.WorkflowID)
	assert.Equal(t, payload, dispatched.Input["event"])
	assert.Equal(t, "fee.payment.received", dispatched.Input["eventName"])
	assert.Equal(t, "inst-1", dispatched.Input["instituteId"])
	assert.Equal(t, "trg-1", dispatched.Input["triggerId"])

	require.NotNil(t, record)
	assert.Equal(t, trigger.IdempotencyKey(payload), record.OperationKey)
	require.NotNil(t, record.Scope)
	assert.Equal(t, "trigger", *record.Scope)
	assert.Equal(t, trigger.Idempotency.TTL(), record.TTL)
}

func TestHandleEvent_UnknownStrategyStillFires(t *testing.T) {
	trigger := feePaidTrigger()
	trigger.Idempotency.Strategy = "TIME_WINDOW"

	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(trigger, nil)

	var record *models.NodeDedupeRecord

	dedupeStore := &mocks.MockDedupeStore{}
	dedupeStore.On("Reserve", mock.Anything, mock.Anything).Return(true, nil).Run(func(args mock.Arguments) {
		record = args.Get(1).(*models.NodeDedupeRecord)
	})

	dispatch := func(context.Context, runtime.RunRequest) (*models.WorkflowExecution, error) {
		return &models.WorkflowExecution{ExecutionID: "exec-abc12345"}, nil
	}

	router := newTestRouter(store, dedupeStore, dispatch)

	payload := map[string]any{"receiptId": "rcpt-991"}

	result, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received", payload)
	require.NoError(t, err)
	assert.True(t, result.Fired)

	// The fallback derives the same key a context-based trigger would.
	contextBased := feePaidTrigger()

	require.NotNil(t, record)
	assert.Equal(t, contextBased.IdempotencyKey(payload), record.OperationKey)
}

func TestHandleEvent_PublishesTriggerFired(t *testing.T) {
	trigger := feePaidTrigger()

	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(trigger, nil)

	dedupeStore := &mocks.MockDedupeStore{}
	dedupeStore.On("Reserve", mock.Anything, mock.Anything).Return(true, nil)

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	dispatch := func(context.Context, runtime.RunRequest) (*models.WorkflowExecution, error) {
		return &models.WorkflowExecution{ExecutionID: "exec-abc12345"}, nil
	}

	guard := dedupe.NewGuard(slog.Default(), dedupeStore)
	router := NewRouter(slog.Default(), store, guard, dispatch, bus)

	_, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received",
		map[string]any{"receiptId": "rcpt-991"})
	require.NoError(t, err)

	bus.AssertCalled(t, "Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(event any) bool {
		fired, ok := event.(events.TriggerFired)

		return ok && fired.TriggerID == "trg-1" && fired.ExecutionID == "exec-abc12345"
	}))
}

func TestHandleEvent_DispatchErrorSurfaces(t *testing.T) {
	store := &mocks.MockTriggerStore{}
	store.On("TriggerByEvent", mock.Anything, "inst-1", "fee.payment.received").Return(feePaidTrigger(), nil)

	dedupeStore := &mocks.MockDedupeStore{}
	dedupeStore.On("Reserve", mock.Anything, mock.Anything).Return(true, nil)

	dispatch := func(context.Context, runtime.RunRequest) (*models.WorkflowExecution, error) {
		return nil, errors.New("store unavailable")
	}

	router := newTestRouter(store, dedupeStore, dispatch)

	_, err := router.HandleEvent(context.Background(), "inst-1", "fee.payment.received", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dispatch workflow wf-1")
}
