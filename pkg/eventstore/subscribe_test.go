package eventstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
)

// manualSignal is a LiveSignal ticked by the test.
type manualSignal struct {
	wake chan struct{}
}

func newManualSignal() *manualSignal {
	return &manualSignal{wake: make(chan struct{}, 1)}
}

func (s *manualSignal) Signal(ctx context.Context, instanceID string) (<-chan struct{}, error) {
	return s.wake, nil
}

func (s *manualSignal) tick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func pushOrgEvents(t *testing.T, store *sqlite.Store, n int) []eventstore.Event {
	t.Helper()
	var pushed []eventstore.Event
	for i := 0; i < n; i++ {
		events, err := store.Push(context.Background(), "inst-1", eventstore.Command{
			Aggregate:     eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: "org-1"},
			Type:          "org.changed",
			ResourceOwner: "org-1",
		})
		require.NoError(t, err)
		pushed = append(pushed, events...)
	}
	return pushed
}

func receive(t *testing.T, sub *eventstore.Subscription, n int) []eventstore.Event {
	t.Helper()
	received := make([]eventstore.Event, 0, n)
	timeout := time.After(5 * time.Second)
	for len(received) < n {
		select {
		case event, ok := <-sub.C:
			if !ok {
				t.Fatalf("subscription closed early: %v", sub.Err())
			}
			received = append(received, event)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(received), n)
		}
	}
	return received
}

func TestSubscribeCatchesUpAndFollows(t *testing.T) {
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	defer store.Close()

	backlog := pushOrgEvents(t, store, 3)

	signal := newManualSignal()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := eventstore.Subscribe(ctx, store, signal, "inst-1", eventstore.ZeroCursor(),
		eventstore.SubscribeOptions{PollInterval: time.Minute, BatchSize: 2})
	require.NoError(t, err)
	defer sub.Close()

	received := receive(t, sub, len(backlog))
	for i := range backlog {
		assert.Equal(t, backlog[i].ID, received[i].ID)
	}

	// New events arrive after a live signal, without waiting for the poll.
	fresh := pushOrgEvents(t, store, 2)
	signal.tick()
	received = receive(t, sub, len(fresh))
	for i := range fresh {
		assert.Equal(t, fresh[i].ID, received[i].ID)
	}
}

func TestSubscribeResumesFromCursor(t *testing.T) {
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	defer store.Close()

	pushed := pushOrgEvents(t, store, 4)
	from := eventstore.CursorOf(&pushed[1])

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := eventstore.Subscribe(ctx, store, nil, "inst-1", from,
		eventstore.SubscribeOptions{PollInterval: time.Minute})
	require.NoError(t, err)
	defer sub.Close()

	received := receive(t, sub, 2)
	assert.Equal(t, pushed[2].ID, received[0].ID)
	assert.Equal(t, pushed[3].ID, received[1].ID)
}

func TestSubscriptionCloseStopsPump(t *testing.T) {
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	defer store.Close()

	sub, err := eventstore.Subscribe(context.Background(), store, nil, "inst-1",
		eventstore.ZeroCursor(), eventstore.SubscribeOptions{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok, "channel is closed after Close")
	assert.NoError(t, sub.Err())
}
