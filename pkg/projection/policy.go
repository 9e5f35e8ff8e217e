package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// PolicyProjection maintains policies_projection. Instance rows are the
// defaults; org rows override them, which the query layer resolves with an
// org to instance fallback.
type PolicyProjection struct{ tableSet }

func NewPolicyProjection() *PolicyProjection {
	return &PolicyProjection{tableSet{"policies_projection"}}
}

func (*PolicyProjection) Name() string { return "policies" }

func (p *PolicyProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	if event.Type == events.OrgRemovedType {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM policies_projection
			WHERE instance_id = ? AND scope = 'org' AND resource_owner = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}

	scope, policyType, lifecycle, ok := splitPolicyEventType(event.Type)
	if !ok {
		return nil
	}
	resourceOwner := event.InstanceID
	if scope == string(events.PolicyScopeOrg) {
		resourceOwner = event.Aggregate.ID
	}

	switch lifecycle {
	case "added", "changed":
		var payload events.PolicyPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO policies_projection (instance_id, scope, resource_owner, policy_type, payload, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, scope, resource_owner, policy_type) DO UPDATE SET
				payload = excluded.payload, changed_at = excluded.changed_at, sequence = excluded.sequence`,
			event.InstanceID, scope, resourceOwner, policyType, string(encoded),
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case "removed":
		_, err := tx.ExecContext(ctx, `
			DELETE FROM policies_projection
			WHERE instance_id = ? AND scope = ? AND resource_owner = ? AND policy_type = ?`,
			event.InstanceID, scope, resourceOwner, policyType)
		return err
	}
	return nil
}

// splitPolicyEventType decomposes "<scope>.policy.<type>.<lifecycle>".
func splitPolicyEventType(eventType eventstore.EventType) (scope, policyType, lifecycle string, ok bool) {
	scope, rest, found := strings.Cut(string(eventType), ".policy.")
	if !found || (scope != string(events.PolicyScopeOrg) && scope != string(events.PolicyScopeInstance)) {
		return "", "", "", false
	}
	idx := strings.LastIndex(rest, ".")
	if idx <= 0 {
		return "", "", "", false
	}
	return scope, rest[:idx], rest[idx+1:], true
}
