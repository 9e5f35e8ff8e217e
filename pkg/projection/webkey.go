package projection

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// WebKeyProjection maintains web_keys_projection. Only the public JWK lands
// in the read model; the sealed private key stays in the event log.
type WebKeyProjection struct{ tableSet }

func NewWebKeyProjection() *WebKeyProjection {
	return &WebKeyProjection{tableSet{"web_keys_projection"}}
}

func (*WebKeyProjection) Name() string { return "web_keys" }

func (p *WebKeyProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.WebKeyGeneratedType:
		var payload events.WebKeyGenerated
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO web_keys_projection (id, instance_id, algorithm, public_key, state, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.KeyID, event.InstanceID, payload.Algorithm, payload.PublicKey,
			stateInitial, event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.WebKeyActivatedType:
		return p.setState(ctx, tx, event, stateActive)

	case events.WebKeyDeactivatedType:
		return p.setState(ctx, tx, event, stateInactive)

	case events.WebKeyRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM web_keys_projection WHERE instance_id = ? AND id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*WebKeyProjection) setState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE web_keys_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, event.Aggregate.ID)
	return err
}
