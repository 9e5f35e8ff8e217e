package eventstore

import "github.com/shopspring/decimal"

// WriteModel is the base every aggregate reducer embeds. A write model is
// reconstructed per command by appending the aggregate's events and calling
// Reduce; it is never shared between commands.
type WriteModel struct {
	AggregateID   string
	InstanceID    string
	ResourceOwner string

	// ProcessedVersion is the aggregate_version of the last reduced event.
	ProcessedVersion uint64
	// ProcessedPosition is the position of the last reduced event.
	ProcessedPosition Position

	events []Event
}

// NewWriteModel prepares a write model for one aggregate.
func NewWriteModel(instanceID, aggregateID string) WriteModel {
	return WriteModel{
		AggregateID:       aggregateID,
		InstanceID:        instanceID,
		ProcessedPosition: decimal.Zero,
	}
}

// AppendEvents queues loaded events for the next Reduce.
func (wm *WriteModel) AppendEvents(events ...Event) {
	wm.events = append(wm.events, events...)
}

// Events returns the queued, not yet reduced events.
func (wm *WriteModel) Events() []Event {
	return wm.events
}

// Reduce records version, position and ownership of the queued events and
// clears the queue. Reducers call this after folding their own state.
func (wm *WriteModel) Reduce() {
	for _, event := range wm.events {
		wm.ProcessedVersion = event.AggregateVersion
		wm.ProcessedPosition = event.Position
		if wm.ResourceOwner == "" {
			wm.ResourceOwner = event.ResourceOwner
		}
		if wm.InstanceID == "" {
			wm.InstanceID = event.InstanceID
		}
	}
	wm.events = nil
}

// ExpectedVersion returns the optimistic-concurrency version for the next
// push on this aggregate.
func (wm *WriteModel) ExpectedVersion() *uint64 {
	v := wm.ProcessedVersion
	return &v
}
