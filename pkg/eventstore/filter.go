package eventstore

import "github.com/shopspring/decimal"

// Filter narrows a Query. The zero value matches nothing; at minimum an
// instance ID must be set.
type Filter struct {
	InstanceID     string
	AggregateTypes []AggregateType
	AggregateIDs   []string

	// EventTypes matches exact types; a trailing "*" matches a prefix,
	// e.g. "org.domain.*".
	EventTypes []EventType

	EditorUser    string
	ResourceOwner string

	// PositionAfter keeps events strictly after (PositionAfter,
	// InPositionOrderAfter).
	PositionAfter        Position
	InPositionOrderAfter uint32

	Limit      uint64
	Descending bool
}

// NewFilter starts a filter for one instance.
func NewFilter(instanceID string) *Filter {
	return &Filter{InstanceID: instanceID}
}

func (f *Filter) Aggregate(typ AggregateType, ids ...string) *Filter {
	f.AggregateTypes = append(f.AggregateTypes, typ)
	f.AggregateIDs = append(f.AggregateIDs, ids...)
	return f
}

func (f *Filter) Types(types ...EventType) *Filter {
	f.EventTypes = append(f.EventTypes, types...)
	return f
}

func (f *Filter) After(position Position, inPositionOrder uint32) *Filter {
	f.PositionAfter = position
	f.InPositionOrderAfter = inPositionOrder
	return f
}

func (f *Filter) WithLimit(limit uint64) *Filter {
	f.Limit = limit
	return f
}

func (f *Filter) Desc() *Filter {
	f.Descending = true
	return f
}

// Cursor is a resumable read position in the log.
type Cursor struct {
	Position        Position
	InPositionOrder uint32
}

// ZeroCursor is the start of the log.
func ZeroCursor() Cursor {
	return Cursor{Position: decimal.Zero}
}

// Before reports whether c sorts strictly before other.
func (c Cursor) Before(other Cursor) bool {
	switch c.Position.Cmp(other.Position) {
	case -1:
		return true
	case 1:
		return false
	default:
		return c.InPositionOrder < other.InPositionOrder
	}
}

// CursorOf returns the cursor of an event.
func CursorOf(event *Event) Cursor {
	return Cursor{Position: event.Position, InPositionOrder: event.InPositionOrder}
}
