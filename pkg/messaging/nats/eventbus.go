// Package nats implements the event bus on NATS core subjects. One subject
// per instance keeps tenants isolated on the wire.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

const subjectPrefix = "auriga.events."

// notification is the wire form of a published event. Payloads stay in the
// store; the bus only carries enough to wake subscribers and feed metrics.
type notification struct {
	InstanceID      string `json:"instanceId"`
	EventType       string `json:"eventType"`
	Position        string `json:"position"`
	InPositionOrder uint32 `json:"inPositionOrder"`
}

// EventBus is the NATS-backed messaging.EventBus.
type EventBus struct {
	conn *nats.Conn
}

// Config for connecting to NATS.
type Config struct {
	URL string
	// Name identifies the connection in server monitoring.
	Name string
}

// DefaultConfig connects to a local server.
func DefaultConfig() Config {
	return Config{URL: nats.DefaultURL, Name: "auriga"}
}

// New connects the event bus.
func New(cfg Config) (*EventBus, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &EventBus{conn: conn}, nil
}

// Publish announces the events on the instance subject.
func (b *EventBus) Publish(ctx context.Context, events []eventstore.Event) error {
	for _, event := range events {
		data, err := json.Marshal(notification{
			InstanceID:      event.InstanceID,
			EventType:       string(event.Type),
			Position:        event.Position.String(),
			InPositionOrder: event.InPositionOrder,
		})
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}
		if err := b.conn.Publish(subjectPrefix+event.InstanceID, data); err != nil {
			return fmt.Errorf("publish notification: %w", err)
		}
	}
	return nil
}

// Signal subscribes to the instance subject and coalesces messages into a
// wake channel. The channel has capacity 1: a slow consumer misses ticks,
// not events, because it always re-reads from the store.
func (b *EventBus) Signal(ctx context.Context, instanceID string) (<-chan struct{}, error) {
	wake := make(chan struct{}, 1)
	sub, err := b.conn.Subscribe(subjectPrefix+instanceID, func(*nats.Msg) {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subjectPrefix+instanceID, err)
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return wake, nil
}

// Close drains and closes the connection.
func (b *EventBus) Close() error {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
		return err
	}
	return nil
}
