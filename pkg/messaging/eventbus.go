// Package messaging defines the event bus used as the live notification
// channel behind event store subscriptions. The bus is best effort; the
// event store is the source of truth for order and durability.
package messaging

import (
	"context"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

// EventBus publishes committed events and wakes subscribers.
type EventBus interface {
	// Publish announces committed events. Best effort.
	Publish(ctx context.Context, events []eventstore.Event) error

	// Signal implements eventstore.LiveSignal: the returned channel
	// receives a tick whenever events for the instance were published.
	Signal(ctx context.Context, instanceID string) (<-chan struct{}, error)

	Close() error
}
