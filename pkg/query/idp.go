package query

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/auriga-id/auriga/pkg/apperror"
)

// IDP is one row of idps_projection. Type-specific columns are empty for
// the other types.
type IDP struct {
	ID            string
	ResourceOwner string
	Scope         string
	Type          string
	Name          string
	Issuer        string
	ClientID      string
	Scopes        []string
	JWTEndpoint   string
	KeysEndpoint  string
	HeaderName    string
	Metadata      string
	MetadataURL   string
	Binding       string
}

const idpColumns = `id, resource_owner, scope, idp_type, name, issuer,
	client_id, scopes, jwt_endpoint, keys_endpoint, header_name,
	metadata, metadata_url, binding`

func scanIDPColumns(scan func(...any) error) (*IDP, error) {
	idp := &IDP{}
	var scopes string
	err := scan(&idp.ID, &idp.ResourceOwner, &idp.Scope, &idp.Type, &idp.Name,
		&idp.Issuer, &idp.ClientID, &scopes, &idp.JWTEndpoint, &idp.KeysEndpoint,
		&idp.HeaderName, &idp.Metadata, &idp.MetadataURL, &idp.Binding)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(scopes), &idp.Scopes); err != nil {
		return nil, err
	}
	return idp, nil
}

// IDPByID returns one identity provider, org or instance scoped.
func (q *Queries) IDPByID(ctx context.Context, instanceID, idpID string) (*IDP, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+idpColumns+`
		FROM idps_projection
		WHERE instance_id = ? AND id = ?`,
		instanceID, idpID)
	idp, err := scanIDPColumns(row.Scan)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-IDP-001", "idp not found")
	}
	if err != nil {
		return nil, err
	}
	return idp, nil
}

// IDPsByOwner lists the identity providers of one org, or of the instance
// when ownerID is the instance ID.
func (q *Queries) IDPsByOwner(ctx context.Context, instanceID, ownerID string) ([]IDP, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+idpColumns+`
		FROM idps_projection
		WHERE instance_id = ? AND resource_owner = ?
		ORDER BY name, id`,
		instanceID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var idps []IDP
	for rows.Next() {
		idp, err := scanIDPColumns(rows.Scan)
		if err != nil {
			return nil, err
		}
		idps = append(idps, *idp)
	}
	return idps, rows.Err()
}
