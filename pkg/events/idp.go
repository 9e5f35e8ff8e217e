package events

import "github.com/auriga-id/auriga/pkg/eventstore"

// IDP events exist on both org and instance aggregates; the scope prefix is
// the aggregate type.
const (
	OrgIDPOIDCAddedType   eventstore.EventType = "org.idp.oidc.added"
	OrgIDPOIDCChangedType eventstore.EventType = "org.idp.oidc.changed"
	OrgIDPJWTAddedType    eventstore.EventType = "org.idp.jwt.added"
	OrgIDPJWTChangedType  eventstore.EventType = "org.idp.jwt.changed"
	OrgIDPSAMLAddedType   eventstore.EventType = "org.idp.saml.added"
	OrgIDPSAMLChangedType eventstore.EventType = "org.idp.saml.changed"
	OrgIDPRemovedType     eventstore.EventType = "org.idp.removed"

	InstanceIDPOIDCAddedType   eventstore.EventType = "instance.idp.oidc.added"
	InstanceIDPOIDCChangedType eventstore.EventType = "instance.idp.oidc.changed"
	InstanceIDPJWTAddedType    eventstore.EventType = "instance.idp.jwt.added"
	InstanceIDPJWTChangedType  eventstore.EventType = "instance.idp.jwt.changed"
	InstanceIDPSAMLAddedType   eventstore.EventType = "instance.idp.saml.added"
	InstanceIDPSAMLChangedType eventstore.EventType = "instance.idp.saml.changed"
	InstanceIDPRemovedType     eventstore.EventType = "instance.idp.removed"
)

type IDPOIDCAdded struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Issuer       string   `json:"issuer"`
	ClientID     string   `json:"clientId"`
	ClientSecret string   `json:"clientSecret,omitempty"` // sealed
	Scopes       []string `json:"scopes,omitempty"`
}

type IDPOIDCChanged struct {
	ID           string   `json:"id"`
	Name         *string  `json:"name,omitempty"`
	Issuer       *string  `json:"issuer,omitempty"`
	ClientID     *string  `json:"clientId,omitempty"`
	ClientSecret *string  `json:"clientSecret,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

type IDPJWTAdded struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Issuer       string `json:"issuer"`
	JWTEndpoint  string `json:"jwtEndpoint"`
	KeysEndpoint string `json:"keysEndpoint"`
	HeaderName   string `json:"headerName,omitempty"`
}

type IDPJWTChanged struct {
	ID           string  `json:"id"`
	Name         *string `json:"name,omitempty"`
	Issuer       *string `json:"issuer,omitempty"`
	JWTEndpoint  *string `json:"jwtEndpoint,omitempty"`
	KeysEndpoint *string `json:"keysEndpoint,omitempty"`
	HeaderName   *string `json:"headerName,omitempty"`
}

type IDPSAMLAdded struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Metadata    string `json:"metadata,omitempty"`
	MetadataURL string `json:"metadataUrl,omitempty"`
	Binding     string `json:"binding,omitempty"`
}

type IDPSAMLChanged struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Metadata    *string `json:"metadata,omitempty"`
	MetadataURL *string `json:"metadataUrl,omitempty"`
	Binding     *string `json:"binding,omitempty"`
}

type IDPRemoved struct {
	ID string `json:"id"`
}
