package events

import (
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// Project aggregate events, including roles, grants, members and
// applications (apps live on the project aggregate).
const (
	ProjectAddedType       eventstore.EventType = "project.added"
	ProjectChangedType     eventstore.EventType = "project.changed"
	ProjectDeactivatedType eventstore.EventType = "project.deactivated"
	ProjectReactivatedType eventstore.EventType = "project.reactivated"
	ProjectRemovedType     eventstore.EventType = "project.removed"

	ProjectRoleAddedType   eventstore.EventType = "project.role.added"
	ProjectRoleChangedType eventstore.EventType = "project.role.changed"
	ProjectRoleRemovedType eventstore.EventType = "project.role.removed"

	ProjectGrantAddedType       eventstore.EventType = "project.grant.added"
	ProjectGrantChangedType     eventstore.EventType = "project.grant.changed"
	ProjectGrantDeactivatedType eventstore.EventType = "project.grant.deactivated"
	ProjectGrantReactivatedType eventstore.EventType = "project.grant.reactivated"
	ProjectGrantRemovedType     eventstore.EventType = "project.grant.removed"

	ProjectMemberAddedType   eventstore.EventType = "project.member.added"
	ProjectMemberChangedType eventstore.EventType = "project.member.changed"
	ProjectMemberRemovedType eventstore.EventType = "project.member.removed"

	ProjectGrantMemberAddedType   eventstore.EventType = "project.grant.member.added"
	ProjectGrantMemberChangedType eventstore.EventType = "project.grant.member.changed"
	ProjectGrantMemberRemovedType eventstore.EventType = "project.grant.member.removed"

	OIDCAppAddedType         eventstore.EventType = "project.application.oidc.added"
	OIDCAppConfigChangedType eventstore.EventType = "project.application.oidc.config.changed"
	APIAppAddedType          eventstore.EventType = "project.application.api.added"
	APIAppConfigChangedType  eventstore.EventType = "project.application.api.config.changed"
	SAMLAppAddedType         eventstore.EventType = "project.application.saml.added"
	SAMLAppConfigChangedType eventstore.EventType = "project.application.saml.config.changed"
	AppChangedType           eventstore.EventType = "project.application.changed"
	AppDeactivatedType       eventstore.EventType = "project.application.deactivated"
	AppReactivatedType       eventstore.EventType = "project.application.reactivated"
	AppRemovedType           eventstore.EventType = "project.application.removed"

	ClientSessionsTerminatedType eventstore.EventType = "project.application.sessions.terminated"
)

type ProjectAdded struct {
	Name                 string `json:"name"`
	ProjectRoleAssertion bool   `json:"projectRoleAssertion,omitempty"`
	ProjectRoleCheck     bool   `json:"projectRoleCheck,omitempty"`
}

type ProjectChanged struct {
	Name                 *string `json:"name,omitempty"`
	ProjectRoleAssertion *bool   `json:"projectRoleAssertion,omitempty"`
	ProjectRoleCheck     *bool   `json:"projectRoleCheck,omitempty"`
}

type ProjectRoleAdded struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
	Group       string `json:"group,omitempty"`
}

type ProjectRoleChanged struct {
	Key         string  `json:"key"`
	DisplayName *string `json:"displayName,omitempty"`
	Group       *string `json:"group,omitempty"`
}

type ProjectRoleRemoved struct {
	Key string `json:"key"`
}

type ProjectGrantAdded struct {
	GrantID      string   `json:"grantId"`
	GrantedOrgID string   `json:"grantedOrgId"`
	RoleKeys     []string `json:"roleKeys"`
}

type ProjectGrantChanged struct {
	GrantID  string   `json:"grantId"`
	RoleKeys []string `json:"roleKeys"`
}

type ProjectGrantStateChanged struct {
	GrantID string `json:"grantId"`
}

type ProjectMemberAdded struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type ProjectMemberChanged struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type ProjectMemberRemoved struct {
	UserID string `json:"userId"`
}

type ProjectGrantMemberAdded struct {
	GrantID string   `json:"grantId"`
	UserID  string   `json:"userId"`
	Roles   []string `json:"roles"`
}

type ProjectGrantMemberChanged struct {
	GrantID string   `json:"grantId"`
	UserID  string   `json:"userId"`
	Roles   []string `json:"roles"`
}

type ProjectGrantMemberRemoved struct {
	GrantID string `json:"grantId"`
	UserID  string `json:"userId"`
}

// OIDCAppAdded carries the full OIDC client config.
type OIDCAppAdded struct {
	AppID                  string                    `json:"appId"`
	Name                   string                    `json:"name"`
	ClientID               string                    `json:"clientId"`
	AppType                domain.OIDCAppType        `json:"appType"`
	AuthMethodType         domain.OIDCAuthMethodType `json:"authMethodType"`
	RedirectURIs           []string                  `json:"redirectUris,omitempty"`
	PostLogoutRedirectURIs []string                  `json:"postLogoutRedirectUris,omitempty"`
	ResponseTypes          []string                  `json:"responseTypes,omitempty"`
	GrantTypes             []string                  `json:"grantTypes,omitempty"`
	DevMode                bool                      `json:"devMode,omitempty"`
}

type OIDCAppConfigChanged struct {
	AppID                  string                     `json:"appId"`
	AuthMethodType         *domain.OIDCAuthMethodType `json:"authMethodType,omitempty"`
	RedirectURIs           []string                   `json:"redirectUris,omitempty"`
	PostLogoutRedirectURIs []string                   `json:"postLogoutRedirectUris,omitempty"`
	DevMode                *bool                      `json:"devMode,omitempty"`
}

type APIAppAdded struct {
	AppID          string                   `json:"appId"`
	Name           string                   `json:"name"`
	ClientID       string                   `json:"clientId"`
	AuthMethodType domain.APIAuthMethodType `json:"authMethodType"`
}

type APIAppConfigChanged struct {
	AppID          string                    `json:"appId"`
	AuthMethodType *domain.APIAuthMethodType `json:"authMethodType,omitempty"`
}

type SAMLAppAdded struct {
	AppID       string `json:"appId"`
	Name        string `json:"name"`
	EntityID    string `json:"entityId"`
	Metadata    string `json:"metadata,omitempty"`
	MetadataURL string `json:"metadataUrl,omitempty"`
}

type SAMLAppConfigChanged struct {
	AppID       string  `json:"appId"`
	EntityID    *string `json:"entityId,omitempty"`
	Metadata    *string `json:"metadata,omitempty"`
	MetadataURL *string `json:"metadataUrl,omitempty"`
}

type AppChanged struct {
	AppID string `json:"appId"`
	Name  string `json:"name"`
}

type AppStateChanged struct {
	AppID string `json:"appId"`
}

type AppRemoved struct {
	AppID string `json:"appId"`
	// EntityID / ClientID are recorded so unique constraints can be
	// released without reloading the config.
	ClientID string `json:"clientId,omitempty"`
	EntityID string `json:"entityId,omitempty"`
}

type ClientSessionsTerminated struct {
	ClientID string `json:"clientId"`
	Reason   string `json:"reason,omitempty"`
}
