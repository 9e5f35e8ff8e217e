// Package eventstore defines the core types of the append-only event log:
// events, push commands, positions, search filters and the ports implemented
// by storage backends. The log is totally ordered per instance (tenant) and
// optimistic concurrency is enforced per aggregate.
package eventstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// AggregateType groups events that belong to the same consistency boundary.
type AggregateType string

const (
	AggregateTypeOrg      AggregateType = "org"
	AggregateTypeUser     AggregateType = "user"
	AggregateTypeProject  AggregateType = "project"
	AggregateTypeSession  AggregateType = "session"
	AggregateTypeInstance AggregateType = "instance"
	AggregateTypeWebKey   AggregateType = "web_key"
)

// EventType is the dotted domain name of an event, e.g. "org.added".
type EventType string

// Aggregate identifies the stream an event belongs to.
type Aggregate struct {
	Type AggregateType
	ID   string
}

// Position is the authoritative global order of the log within one
// instance. Events of a single push share a base position and are ordered
// by InPositionOrder.
type Position = decimal.Decimal

// Event is an immutable record of a past fact.
type Event struct {
	ID               string
	InstanceID       string
	Aggregate        Aggregate
	AggregateVersion uint64
	Type             EventType
	Revision         uint16
	Payload          []byte
	EditorUser       string
	ResourceOwner    string
	Position         Position
	InPositionOrder  uint32
	CreatedAt        time.Time
}

// UnmarshalPayload decodes the event's JSON payload into ptr. Unknown fields
// are tolerated for forward compatibility; a payload that cannot be decoded
// at all means the history is corrupt.
func (e *Event) UnmarshalPayload(ptr any) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Payload, ptr); err != nil {
		return apperror.Internal(err, "EVENT-001", "unable to decode event payload")
	}
	return nil
}

// Command is the intent to append one event. Payload is marshalled to JSON
// at push time.
type Command struct {
	InstanceID    string
	Aggregate     Aggregate
	Type          EventType
	Revision      uint16
	Payload       any
	EditorUser    string
	ResourceOwner string

	// ExpectedVersion, when set, makes the push fail with
	// ErrConcurrencyConflict unless the aggregate's current version equals
	// ExpectedVersion.
	ExpectedVersion *uint64

	UniqueConstraints []*UniqueConstraint
}

// ConstraintAction says what a unique constraint does at push time.
type ConstraintAction int

const (
	ConstraintAdd ConstraintAction = iota
	ConstraintRemove
	ConstraintRemoveInstance
)

// UniqueConstraint enforces cross-aggregate uniqueness (e.g. OIDC client
// IDs) inside the push transaction.
type UniqueConstraint struct {
	UniqueType  string
	UniqueField string
	Action      ConstraintAction
	// ErrorCode is the domain code reported on violation.
	ErrorCode string
}

// NewAddUniqueConstraint claims a value.
func NewAddUniqueConstraint(uniqueType, uniqueField, errorCode string) *UniqueConstraint {
	return &UniqueConstraint{UniqueType: uniqueType, UniqueField: uniqueField, Action: ConstraintAdd, ErrorCode: errorCode}
}

// NewRemoveUniqueConstraint releases a value.
func NewRemoveUniqueConstraint(uniqueType, uniqueField string) *UniqueConstraint {
	return &UniqueConstraint{UniqueType: uniqueType, UniqueField: uniqueField, Action: ConstraintRemove}
}

// NewRemoveInstanceUniqueConstraints releases every value of an instance.
func NewRemoveInstanceUniqueConstraints() *UniqueConstraint {
	return &UniqueConstraint{Action: ConstraintRemoveInstance}
}

// Pusher appends commands as events.
type Pusher interface {
	// Push atomically appends the commands as events. All events share one
	// base position; within the push they are ordered by InPositionOrder.
	Push(ctx context.Context, instanceID string, commands ...Command) ([]Event, error)
}

// Querier reads back the log.
type Querier interface {
	// Query returns events matching the filter in (position,
	// in_position_order) order.
	Query(ctx context.Context, filter *Filter) ([]Event, error)

	// LatestPosition returns the highest position of the instance, or the
	// zero position if the instance has no events yet.
	LatestPosition(ctx context.Context, instanceID string) (Position, error)
}

// Store is the full event store contract.
type Store interface {
	Pusher
	Querier

	// Health reports whether the backing storage is reachable.
	Health(ctx context.Context) error
	Close() error
}
