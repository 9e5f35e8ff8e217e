package projection

import (
	"context"
	"database/sql"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// OrgProjection maintains organizations_projection and
// org_domains_projection.
type OrgProjection struct{ tableSet }

func NewOrgProjection() *OrgProjection {
	return &OrgProjection{tableSet{"organizations_projection", "org_domains_projection"}}
}

func (*OrgProjection) Name() string { return "organizations" }

func (p *OrgProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.OrgAddedType:
		var payload events.OrgAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO organizations_projection (id, instance_id, name, state, created_at, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO UPDATE SET
				name = excluded.name, state = excluded.state,
				changed_at = excluded.changed_at, sequence = excluded.sequence`,
			event.Aggregate.ID, event.InstanceID, payload.Name, stateActive,
			event.CreatedAt.Unix(), event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OrgChangedType:
		var payload events.OrgChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE organizations_projection SET name = ?, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND id = ?`,
			payload.Name, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.OrgDeactivatedType:
		return p.setState(ctx, tx, event, stateInactive)

	case events.OrgReactivatedType:
		return p.setState(ctx, tx, event, stateActive)

	case events.OrgRemovedType:
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM org_domains_projection WHERE instance_id = ? AND org_id = ?`,
			event.InstanceID, event.Aggregate.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM organizations_projection WHERE instance_id = ? AND id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.OrgDomainAddedType:
		var payload events.OrgDomainAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO org_domains_projection (instance_id, org_id, domain, is_verified, is_primary, changed_at, sequence)
			VALUES (?, ?, ?, 0, 0, ?, ?)
			ON CONFLICT (instance_id, org_id, domain) DO UPDATE SET
				changed_at = excluded.changed_at, sequence = excluded.sequence`,
			event.InstanceID, event.Aggregate.ID, payload.Domain,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OrgDomainVerificationAddedType:
		var payload events.OrgDomainVerificationAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE org_domains_projection SET validation_type = ?, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND org_id = ? AND domain = ?`,
			payload.ValidationType, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID, payload.Domain)
		return err

	case events.OrgDomainVerifiedType:
		var payload events.OrgDomainVerified
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE org_domains_projection SET is_verified = 1, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND org_id = ? AND domain = ?`,
			event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID, payload.Domain)
		return err

	case events.OrgDomainPrimarySetType:
		var payload events.OrgDomainPrimarySet
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE org_domains_projection SET is_primary = (domain = ?), changed_at = ?, sequence = ?
			WHERE instance_id = ? AND org_id = ?`,
			payload.Domain, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE organizations_projection SET primary_domain = ?, changed_at = ?, sequence = ?
			WHERE instance_id = ? AND id = ?`,
			payload.Domain, event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		return err

	case events.OrgDomainRemovedType:
		var payload events.OrgDomainRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM org_domains_projection
			WHERE instance_id = ? AND org_id = ? AND domain = ?`,
			event.InstanceID, event.Aggregate.ID, payload.Domain); err != nil {
			return err
		}
		if !payload.WasPrimary {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE organizations_projection SET primary_domain = '', changed_at = ?, sequence = ?
			WHERE instance_id = ? AND id = ?`,
			event.CreatedAt.Unix(), event.Position.IntPart(),
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*OrgProjection) setState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE organizations_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, event.Aggregate.ID)
	return err
}
