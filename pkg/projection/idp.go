package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// IDPProjection maintains idps_projection for both org and instance scoped
// identity providers.
type IDPProjection struct{ tableSet }

func NewIDPProjection() *IDPProjection {
	return &IDPProjection{tableSet{"idps_projection"}}
}

func (*IDPProjection) Name() string { return "idps" }

func (p *IDPProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	scope := "org"
	if strings.HasPrefix(string(event.Type), "instance.") {
		scope = "instance"
	}

	switch event.Type {
	case events.OrgIDPOIDCAddedType, events.InstanceIDPOIDCAddedType:
		var payload events.IDPOIDCAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO idps_projection (
				id, instance_id, resource_owner, scope, idp_type, name,
				issuer, client_id, scopes, changed_at, sequence)
			VALUES (?, ?, ?, ?, 'oidc', ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID, scope,
			payload.Name, payload.Issuer, payload.ClientID, jsonStrings(payload.Scopes),
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OrgIDPOIDCChangedType, events.InstanceIDPOIDCChangedType:
		var payload events.IDPOIDCChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "name = ?"), append(args, *payload.Name)
		}
		if payload.Issuer != nil {
			sets, args = append(sets, "issuer = ?"), append(args, *payload.Issuer)
		}
		if payload.ClientID != nil {
			sets, args = append(sets, "client_id = ?"), append(args, *payload.ClientID)
		}
		if payload.Scopes != nil {
			sets, args = append(sets, "scopes = ?"), append(args, jsonStrings(payload.Scopes))
		}
		return p.update(ctx, tx, event, payload.ID, sets, args)

	case events.OrgIDPJWTAddedType, events.InstanceIDPJWTAddedType:
		var payload events.IDPJWTAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO idps_projection (
				id, instance_id, resource_owner, scope, idp_type, name,
				issuer, jwt_endpoint, keys_endpoint, header_name, changed_at, sequence)
			VALUES (?, ?, ?, ?, 'jwt', ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID, scope,
			payload.Name, payload.Issuer, payload.JWTEndpoint, payload.KeysEndpoint, payload.HeaderName,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OrgIDPJWTChangedType, events.InstanceIDPJWTChangedType:
		var payload events.IDPJWTChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "name = ?"), append(args, *payload.Name)
		}
		if payload.Issuer != nil {
			sets, args = append(sets, "issuer = ?"), append(args, *payload.Issuer)
		}
		if payload.JWTEndpoint != nil {
			sets, args = append(sets, "jwt_endpoint = ?"), append(args, *payload.JWTEndpoint)
		}
		if payload.KeysEndpoint != nil {
			sets, args = append(sets, "keys_endpoint = ?"), append(args, *payload.KeysEndpoint)
		}
		if payload.HeaderName != nil {
			sets, args = append(sets, "header_name = ?"), append(args, *payload.HeaderName)
		}
		return p.update(ctx, tx, event, payload.ID, sets, args)

	case events.OrgIDPSAMLAddedType, events.InstanceIDPSAMLAddedType:
		var payload events.IDPSAMLAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO idps_projection (
				id, instance_id, resource_owner, scope, idp_type, name,
				metadata, metadata_url, binding, changed_at, sequence)
			VALUES (?, ?, ?, ?, 'saml', ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, id) DO NOTHING`,
			payload.ID, event.InstanceID, event.Aggregate.ID, scope,
			payload.Name, payload.Metadata, payload.MetadataURL, payload.Binding,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OrgIDPSAMLChangedType, events.InstanceIDPSAMLChangedType:
		var payload events.IDPSAMLChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.Name != nil {
			sets, args = append(sets, "name = ?"), append(args, *payload.Name)
		}
		if payload.Metadata != nil {
			sets, args = append(sets, "metadata = ?"), append(args, *payload.Metadata)
		}
		if payload.MetadataURL != nil {
			sets, args = append(sets, "metadata_url = ?"), append(args, *payload.MetadataURL)
		}
		if payload.Binding != nil {
			sets, args = append(sets, "binding = ?"), append(args, *payload.Binding)
		}
		return p.update(ctx, tx, event, payload.ID, sets, args)

	case events.OrgIDPRemovedType, events.InstanceIDPRemovedType:
		var payload events.IDPRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM idps_projection WHERE instance_id = ? AND id = ?`,
			event.InstanceID, payload.ID)
		return err

	case events.OrgRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM idps_projection
			WHERE instance_id = ? AND scope = 'org' AND resource_owner = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*IDPProjection) update(ctx context.Context, tx *sql.Tx, event *eventstore.Event, id string, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "changed_at = ?", "sequence = ?")
	args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, id)
	_, err := tx.ExecContext(ctx,
		"UPDATE idps_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND id = ?",
		args...)
	return err
}
