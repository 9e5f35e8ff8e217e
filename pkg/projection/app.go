package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// AppProjection maintains apps_projection. All application variants share
// one table; variant-specific columns stay empty for the other types.
type AppProjection struct{ tableSet }

func NewAppProjection() *AppProjection {
	return &AppProjection{tableSet{"apps_projection"}}
}

func (*AppProjection) Name() string { return "apps" }

func (p *AppProjection) Reduce(ctx context.Context, tx *sql.Tx, event *eventstore.Event) error {
	switch event.Type {
	case events.OIDCAppAddedType:
		var payload events.OIDCAppAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO apps_projection (
				app_id, instance_id, project_id, resource_owner, name, app_type, state,
				client_id, oidc_app_type, auth_method_type,
				redirect_uris, post_logout_redirect_uris, response_types, grant_types, dev_mode,
				changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, 'oidc', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, app_id) DO NOTHING`,
			payload.AppID, event.InstanceID, event.Aggregate.ID, event.ResourceOwner,
			payload.Name, stateActive,
			payload.ClientID, oidcAppTypeText(payload.AppType), oidcAuthMethodText(payload.AuthMethodType),
			jsonStrings(payload.RedirectURIs), jsonStrings(payload.PostLogoutRedirectURIs),
			jsonStrings(payload.ResponseTypes), jsonStrings(payload.GrantTypes), payload.DevMode,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.OIDCAppConfigChangedType:
		var payload events.OIDCAppConfigChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.AuthMethodType != nil {
			sets, args = append(sets, "auth_method_type = ?"), append(args, oidcAuthMethodText(*payload.AuthMethodType))
		}
		if payload.RedirectURIs != nil {
			sets, args = append(sets, "redirect_uris = ?"), append(args, jsonStrings(payload.RedirectURIs))
		}
		if payload.PostLogoutRedirectURIs != nil {
			sets, args = append(sets, "post_logout_redirect_uris = ?"), append(args, jsonStrings(payload.PostLogoutRedirectURIs))
		}
		if payload.DevMode != nil {
			sets, args = append(sets, "dev_mode = ?"), append(args, *payload.DevMode)
		}
		return p.update(ctx, tx, event, payload.AppID, sets, args)

	case events.APIAppAddedType:
		var payload events.APIAppAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO apps_projection (
				app_id, instance_id, project_id, resource_owner, name, app_type, state,
				client_id, auth_method_type, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, 'api', ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, app_id) DO NOTHING`,
			payload.AppID, event.InstanceID, event.Aggregate.ID, event.ResourceOwner,
			payload.Name, stateActive,
			payload.ClientID, apiAuthMethodText(payload.AuthMethodType),
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.APIAppConfigChangedType:
		var payload events.APIAppConfigChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.AuthMethodType != nil {
			sets, args = append(sets, "auth_method_type = ?"), append(args, apiAuthMethodText(*payload.AuthMethodType))
		}
		return p.update(ctx, tx, event, payload.AppID, sets, args)

	case events.SAMLAppAddedType:
		var payload events.SAMLAppAdded
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO apps_projection (
				app_id, instance_id, project_id, resource_owner, name, app_type, state,
				entity_id, metadata, metadata_url, changed_at, sequence)
			VALUES (?, ?, ?, ?, ?, 'saml', ?, ?, ?, ?, ?, ?)
			ON CONFLICT (instance_id, app_id) DO NOTHING`,
			payload.AppID, event.InstanceID, event.Aggregate.ID, event.ResourceOwner,
			payload.Name, stateActive,
			payload.EntityID, payload.Metadata, payload.MetadataURL,
			event.CreatedAt.Unix(), event.Position.IntPart())
		return err

	case events.SAMLAppConfigChangedType:
		var payload events.SAMLAppConfigChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		sets, args := []string{}, []any{}
		if payload.EntityID != nil {
			sets, args = append(sets, "entity_id = ?"), append(args, *payload.EntityID)
		}
		if payload.Metadata != nil {
			sets, args = append(sets, "metadata = ?"), append(args, *payload.Metadata)
		}
		if payload.MetadataURL != nil {
			sets, args = append(sets, "metadata_url = ?"), append(args, *payload.MetadataURL)
		}
		return p.update(ctx, tx, event, payload.AppID, sets, args)

	case events.AppChangedType:
		var payload events.AppChanged
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		return p.update(ctx, tx, event, payload.AppID, []string{"name = ?"}, []any{payload.Name})

	case events.AppDeactivatedType:
		return p.setState(ctx, tx, event, stateInactive)

	case events.AppReactivatedType:
		return p.setState(ctx, tx, event, stateActive)

	case events.AppRemovedType:
		var payload events.AppRemoved
		if err := event.UnmarshalPayload(&payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM apps_projection WHERE instance_id = ? AND app_id = ?`,
			event.InstanceID, payload.AppID)
		return err

	case events.ProjectRemovedType:
		_, err := tx.ExecContext(ctx, `
			DELETE FROM apps_projection WHERE instance_id = ? AND project_id = ?`,
			event.InstanceID, event.Aggregate.ID)
		return err
	}
	return nil
}

func (*AppProjection) update(ctx context.Context, tx *sql.Tx, event *eventstore.Event, appID string, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "changed_at = ?", "sequence = ?")
	args = append(args, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, appID)
	_, err := tx.ExecContext(ctx,
		"UPDATE apps_projection SET "+strings.Join(sets, ", ")+" WHERE instance_id = ? AND app_id = ?",
		args...)
	return err
}

func (*AppProjection) setState(ctx context.Context, tx *sql.Tx, event *eventstore.Event, state string) error {
	var payload events.AppStateChanged
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE apps_projection SET state = ?, changed_at = ?, sequence = ?
		WHERE instance_id = ? AND app_id = ?`,
		state, event.CreatedAt.Unix(), event.Position.IntPart(),
		event.InstanceID, payload.AppID)
	return err
}

func oidcAppTypeText(t domain.OIDCAppType) string {
	switch t {
	case domain.OIDCAppTypeUserAgent:
		return "user_agent"
	case domain.OIDCAppTypeNative:
		return "native"
	default:
		return "web"
	}
}

func oidcAuthMethodText(t domain.OIDCAuthMethodType) string {
	switch t {
	case domain.OIDCAuthMethodTypePost:
		return "post"
	case domain.OIDCAuthMethodTypeNone:
		return "none"
	case domain.OIDCAuthMethodTypePrivateKeyJWT:
		return "private_key_jwt"
	default:
		return "basic"
	}
}

func apiAuthMethodText(t domain.APIAuthMethodType) string {
	if t == domain.APIAuthMethodTypePrivateKeyJWT {
		return "private_key_jwt"
	}
	return "basic"
}
