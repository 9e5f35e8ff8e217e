package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

// Query returns events matching the filter in (position, in_position_order)
// order.
func (s *Store) Query(ctx context.Context, filter *eventstore.Filter) ([]eventstore.Event, error) {
	if filter == nil || filter.InstanceID == "" {
		return nil, fmt.Errorf("%w: filter requires an instance id", eventstore.ErrStorageUnavailable)
	}

	query, args := buildQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", eventstore.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var events []eventstore.Event
	for rows.Next() {
		var (
			event     eventstore.Event
			position  int64
			createdAt int64
			aggType   string
			eventType string
		)
		if err := rows.Scan(
			&event.ID, &event.InstanceID, &aggType, &event.Aggregate.ID,
			&event.AggregateVersion, &eventType, &event.Revision, &event.Payload,
			&event.EditorUser, &event.ResourceOwner, &position,
			&event.InPositionOrder, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Aggregate.Type = eventstore.AggregateType(aggType)
		event.Type = eventstore.EventType(eventType)
		event.Position = decimal.NewFromInt(position)
		event.CreatedAt = time.UnixMicro(createdAt)
		events = append(events, event)
	}
	return events, rows.Err()
}

func buildQuery(filter *eventstore.Filter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		SELECT id, instance_id, aggregate_type, aggregate_id, aggregate_version,
			event_type, revision, payload, editor_user, resource_owner,
			position, in_position_order, creation_date
		FROM events WHERE instance_id = ?`)
	args = append(args, filter.InstanceID)

	if len(filter.AggregateTypes) > 0 {
		sb.WriteString(" AND aggregate_type IN (" + placeholders(len(filter.AggregateTypes)) + ")")
		for _, t := range filter.AggregateTypes {
			args = append(args, string(t))
		}
	}
	if len(filter.AggregateIDs) > 0 {
		sb.WriteString(" AND aggregate_id IN (" + placeholders(len(filter.AggregateIDs)) + ")")
		for _, id := range filter.AggregateIDs {
			args = append(args, id)
		}
	}
	if len(filter.EventTypes) > 0 {
		exact, globs := splitEventTypes(filter.EventTypes)
		var clauses []string
		if len(exact) > 0 {
			clauses = append(clauses, "event_type IN ("+placeholders(len(exact))+")")
			for _, t := range exact {
				args = append(args, string(t))
			}
		}
		for _, prefix := range globs {
			clauses = append(clauses, "event_type LIKE ?")
			args = append(args, prefix+"%")
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}
	if filter.EditorUser != "" {
		sb.WriteString(" AND editor_user = ?")
		args = append(args, filter.EditorUser)
	}
	if filter.ResourceOwner != "" {
		sb.WriteString(" AND resource_owner = ?")
		args = append(args, filter.ResourceOwner)
	}
	if !filter.PositionAfter.IsZero() || filter.InPositionOrderAfter > 0 {
		sb.WriteString(" AND (position > ? OR (position = ? AND in_position_order > ?))")
		p := filter.PositionAfter.IntPart()
		args = append(args, p, p, filter.InPositionOrderAfter)
	}

	if filter.Descending {
		sb.WriteString(" ORDER BY position DESC, in_position_order DESC")
	} else {
		sb.WriteString(" ORDER BY position ASC, in_position_order ASC")
	}
	if filter.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}
	return sb.String(), args
}

// splitEventTypes separates exact types from trailing-* globs.
func splitEventTypes(types []eventstore.EventType) (exact []eventstore.EventType, prefixes []string) {
	for _, t := range types {
		if s, ok := strings.CutSuffix(string(t), "*"); ok {
			prefixes = append(prefixes, s)
			continue
		}
		exact = append(exact, t)
	}
	return exact, prefixes
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
