package nats

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

func newBus(t *testing.T) *EventBus {
	t.Helper()
	bus, srv, err := NewEmbedded()
	require.NoError(t, err)
	t.Cleanup(func() {
		bus.Close()
		srv.Shutdown()
	})
	return bus
}

func testEvent(instanceID string, position int64) eventstore.Event {
	return eventstore.Event{
		InstanceID: instanceID,
		Type:       "org.added",
		Position:   decimal.NewFromInt(position),
	}
}

func waitForTick(t *testing.T, wake <-chan struct{}) {
	t.Helper()
	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("no wake signal received")
	}
}

func TestPublishWakesSignal(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake, err := bus.Signal(ctx, "inst-1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, []eventstore.Event{testEvent("inst-1", 1)}))
	waitForTick(t, wake)
}

func TestSignalIsScopedToInstance(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake, err := bus.Signal(ctx, "inst-1")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, []eventstore.Event{testEvent("inst-other", 1)}))

	select {
	case <-wake:
		t.Fatal("received a wake for another instance")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSignalCoalescesBursts(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake, err := bus.Signal(ctx, "inst-1")
	require.NoError(t, err)

	events := make([]eventstore.Event, 0, 10)
	for i := int64(1); i <= 10; i++ {
		events = append(events, testEvent("inst-1", i))
	}
	require.NoError(t, bus.Publish(ctx, events))

	waitForTick(t, wake)

	// The channel has capacity 1; a burst leaves at most one pending tick.
	time.Sleep(100 * time.Millisecond)
	pending := 0
	for {
		select {
		case <-wake:
			pending++
			continue
		default:
		}
		break
	}
	assert.LessOrEqual(t, pending, 1)
}

func TestSignalStopsOnContextCancel(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())

	wake, err := bus.Signal(ctx, "inst-1")
	require.NoError(t, err)
	cancel()

	// Give the unsubscribe goroutine a moment, then publishing must not
	// tick the channel anymore.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, bus.Publish(context.Background(), []eventstore.Event{testEvent("inst-1", 1)}))

	select {
	case <-wake:
		t.Fatal("received a wake after cancel")
	case <-time.After(200 * time.Millisecond):
	}
}
