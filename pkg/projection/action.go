package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// ActionProjection maintains actions_projection and executions_projection.
type ActionProjection struct{ tableSet }

func NewActionProjection() *ActionProjection {
	return &ActionProjection{tableSet{"actions_projection", "executions_projection"}}
}

func (*ActionProjection) Name() string { return "actions" }

func (p *ActionProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.InstanceActionAddedType:
		var payload events.InstanceActionAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO actions_projection (
				id, instance_id, name, script, timeout, allowed_to_fail, state, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, payload.Name, payload.Script,
			payload.Timeout, payload.AllowedToFail, stateActive,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.InstanceActionChangedType:
		var payload events.InstanceActionChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "name = ?"), append(args, *payload.Name)
		}
		if payload.Script != nil {
			sets, args = append(sets, "script = ?"), append(args, *payload.Script)
		}
		if payload.Timeout != nil {
			sets, args = append(sets, "timeout = ?"), append(args, *payload.Timeout)
		}
		if payload.AllowedToFail != nil {
			sets, args = append(sets, "allowed_to_fail = ?"), append(args, *payload.AllowedToFail)
		}
		if len(sets) == 0 {
			return nil
		}
		sets = append(sets, "changed_at = ?", "sequence = ?")
		args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, payload.ID)
		_, err := tx.ExecContext(ctx,
			"UPDATE actions_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
			args...)
		return err

	case events.InstanceActionDeactivatedType:
		return p.setState(ctx, tx, event, stateInactive)

	case events.InstanceActionReactivatedType:
		return p.setState(ctx, tx, event, stateActive)

	case events.InstanceActionRemovedType:
		var payload events.InstanceActionRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM actions_projection WHERE instance_id = ? AND id = ?`,
			event.InstanceID, payload.ID)
		return err

	case events.InstanceExecutionSetType:
		var payload events.InstanceExecutionSet
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO executions_projection (instance_id, condition, targets, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, condition) DO UPDATE SET
				targets = excluded.targets, changed_at = excluded.changed_at, sequence = excluded.sequence`,
			event.InstanceID, payload.Condition, jsonStrings(payload.Targets),
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.InstanceExecutionRemovedType:
		var payload events.InstanceExecutionRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM executions_projection WHERE instance_id = ? AND condition = ?`,
			event.InstanceID, payload.Condition)
		return err
	}
	return nil
}

func (*ActionProjection) setState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	var payload events.InstanceActionStateChanged
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE actions_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, payload.ID)
	return err
}
