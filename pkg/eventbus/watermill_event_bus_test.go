package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushive/flowkit/pkg/channels/gochannel"
	"github.com/campushive/flowkit/pkg/events"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	return NewWatermillEventBus(pub, sub)
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.ExecutionRequestedEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	scheduleID := "sch-1"

	sent := events.ExecutionRequested{
		BaseEvent: events.BaseEvent{
			Type:       events.ExecutionRequestedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: "wf-1",
		},
		Input:      map[string]any{"scheduleId": "sch-1"},
		ScheduleID: &scheduleID,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	select {
	case event := <-received:
		requested, ok := event.(*events.ExecutionRequested)
		require.True(t, ok)
		assert.Equal(t, "wf-1", requested.WorkflowID)
		assert.Equal(t, "sch-1", requested.Input["scheduleId"])
		require.NotNil(t, requested.ScheduleID)
		assert.Equal(t, "sch-1", *requested.ScheduleID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_UnhandledTypeIsAcked(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	bus := newTestBus(t)

	received := make(chan any, 1)

	require.NoError(t, bus.Handle(events.TriggerFiredEvent, func(_ context.Context, event any) error {
		received <- event

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for this type: the message is dropped, not
	// redelivered.
	started := events.ExecutionStarted{
		BaseEvent: events.BaseEvent{Type: events.ExecutionStartedEvent, WorkflowID: "wf-1"},
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", started))

	fired := events.TriggerFired{
		BaseEvent: events.BaseEvent{Type: events.TriggerFiredEvent, WorkflowID: "wf-1"},
		TriggerID: "trg-1",
	}
	require.NoError(t, bus.Publish(ctx, "trg-1", fired))

	select {
	case event := <-received:
		triggerFired, ok := event.(*events.TriggerFired)
		require.True(t, ok)
		assert.Equal(t, "trg-1", triggerFired.TriggerID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
