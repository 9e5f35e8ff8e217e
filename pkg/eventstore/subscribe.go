package eventstore

import (
	"context"
	"time"
)

// LiveSignal tells a subscription that new events may be available for an
// instance. The event bus implements this; correctness never depends on it,
// since the subscription always reads ordered batches from the store.
type LiveSignal interface {
	Signal(ctx context.Context, instanceID string) (<-chan struct{}, error)
}

// Subscription streams one instance's events from a cursor. Events arrive
// on C in (position, in_position_order) order with no gaps.
type Subscription struct {
	C      <-chan Event
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Err returns the terminal error after C is closed, if any.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// Close stops the subscription and waits for the pump to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// SubscribeOptions tunes a subscription.
type SubscribeOptions struct {
	// PollInterval bounds how long the subscription sleeps without a live
	// signal. Defaults to 5s.
	PollInterval time.Duration
	// BatchSize bounds each catch-up read. Defaults to 200.
	BatchSize uint64
}

// Subscribe streams events of one instance starting after from. It catches
// up with batched queries and then waits on the live signal (or the poll
// interval) before reading again. The returned subscription is resumable:
// record the cursor of the last handled event and pass it as from.
func Subscribe(ctx context.Context, querier Querier, signal LiveSignal, instanceID string, from Cursor, opts SubscribeOptions) (*Subscription, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 200
	}

	ctx, cancel := context.WithCancel(ctx)

	var wake <-chan struct{}
	if signal != nil {
		ch, err := signal.Signal(ctx, instanceID)
		if err != nil {
			cancel()
			return nil, err
		}
		wake = ch
	}

	out := make(chan Event)
	sub := &Subscription{C: out, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(out)

		cursor := from
		timer := time.NewTimer(opts.PollInterval)
		if !timer.Stop() {
			<-timer.C
		}
		defer timer.Stop()

		for {
			events, err := querier.Query(ctx, NewFilter(instanceID).
				After(cursor.Position, cursor.InPositionOrder).
				WithLimit(opts.BatchSize))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				sub.err = err
				return
			}

			for _, event := range events {
				select {
				case out <- event:
					cursor = CursorOf(&event)
				case <-ctx.Done():
					return
				}
			}
			if uint64(len(events)) == opts.BatchSize {
				continue // more to catch up
			}

			timer.Reset(opts.PollInterval)
			select {
			case <-ctx.Done():
				return
			case <-wake:
				if !timer.Stop() {
					<-timer.C
				}
			case <-timer.C:
			}
		}
	}()

	return sub, nil
}
