package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// App is one row of apps_projection. Variant-specific fields are only set
// for the matching Type.
type App struct {
	AppID         string
	ProjectID     string
	ResourceOwner string
	Name          string
	Type          string
	State         string

	ClientID               string
	OIDCAppType            string
	AuthMethodType         string
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	ResponseTypes          []string
	GrantTypes             []string
	DevMode                bool

	EntityID    string
	Metadata    string
	MetadataURL string

	ChangedAt time.Time
	Sequence  int64
}

const appColumns = `app_id, project_id, resource_owner, name, app_type, state,
	client_id, oidc_app_type, auth_method_type,
	redirect_uris, post_logout_redirect_uris, response_types, grant_types, dev_mode,
	entity_id, metadata, metadata_url, changed_at, sequence`

func scanApp(row *sql.Row, notFoundCode string) (*App, error) {
	app := &App{}
	var redirectURIs, postLogoutURIs, responseTypes, grantTypes string
	var changedAt int64
	err := row.Scan(
		&app.AppID, &app.ProjectID, &app.ResourceOwner, &app.Name, &app.Type, &app.State,
		&app.ClientID, &app.OIDCAppType, &app.AuthMethodType,
		&redirectURIs, &postLogoutURIs, &responseTypes, &grantTypes, &app.DevMode,
		&app.EntityID, &app.Metadata, &app.MetadataURL, &changedAt, &app.Sequence)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, notFoundCode, "application not found")
	}
	if err != nil {
		return nil, err
	}
	app.RedirectURIs = decodeStrings(redirectURIs)
	app.PostLogoutRedirectURIs = decodeStrings(postLogoutURIs)
	app.ResponseTypes = decodeStrings(responseTypes)
	app.GrantTypes = decodeStrings(grantTypes)
	app.ChangedAt = time.Unix(changedAt, 0)
	return app, nil
}

// AppByID returns one application.
func (q *Queries) AppByID(ctx context.Context, instanceID, appID string) (*App, error) {
	return scanApp(q.db.QueryRowContext(ctx, `
		SELECT `+appColumns+` FROM apps_projection
		WHERE instance_id = ? AND app_id = ?`,
		instanceID, appID), "QUERY-APP-001")
}

// OIDCAppByClientID resolves an OIDC client by its client ID.
func (q *Queries) OIDCAppByClientID(ctx context.Context, instanceID, clientID string) (*App, error) {
	return scanApp(q.db.QueryRowContext(ctx, `
		SELECT `+appColumns+` FROM apps_projection
		WHERE instance_id = ? AND client_id = ? AND app_type = 'oidc'`,
		instanceID, clientID), "QUERY-APP-002")
}

// APIAppByClientID resolves an API client by its client ID.
func (q *Queries) APIAppByClientID(ctx context.Context, instanceID, clientID string) (*App, error) {
	return scanApp(q.db.QueryRowContext(ctx, `
		SELECT `+appColumns+` FROM apps_projection
		WHERE instance_id = ? AND client_id = ? AND app_type = 'api'`,
		instanceID, clientID), "QUERY-APP-003")
}

// SAMLAppByEntityID resolves a SAML service provider by its entity ID.
func (q *Queries) SAMLAppByEntityID(ctx context.Context, instanceID, entityID string) (*App, error) {
	return scanApp(q.db.QueryRowContext(ctx, `
		SELECT `+appColumns+` FROM apps_projection
		WHERE instance_id = ? AND entity_id = ? AND app_type = 'saml'`,
		instanceID, entityID), "QUERY-APP-004")
}

// AppsByProject lists all applications of a project.
func (q *Queries) AppsByProject(ctx context.Context, instanceID, projectID string) ([]App, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+appColumns+` FROM apps_projection
		WHERE instance_id = ? AND project_id = ?
		ORDER BY name`,
		instanceID, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		app := App{}
		var redirectURIs, postLogoutURIs, responseTypes, grantTypes string
		var changedAt int64
		if err := rows.Scan(
			&app.AppID, &app.ProjectID, &app.ResourceOwner, &app.Name, &app.Type, &app.State,
			&app.ClientID, &app.OIDCAppType, &app.AuthMethodType,
			&redirectURIs, &postLogoutURIs, &responseTypes, &grantTypes, &app.DevMode,
			&app.EntityID, &app.Metadata, &app.MetadataURL, &changedAt, &app.Sequence); err != nil {
			return nil, err
		}
		app.RedirectURIs = decodeStrings(redirectURIs)
		app.PostLogoutRedirectURIs = decodeStrings(postLogoutURIs)
		app.ResponseTypes = decodeStrings(responseTypes)
		app.GrantTypes = decodeStrings(grantTypes)
		app.ChangedAt = time.Unix(changedAt, 0)
		apps = append(apps, app)
	}
	return apps, rows.Err()
}
