package command

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

const (
	// Client IDs are unique per instance across OIDC and API apps.
	uniqueTypeClientID = "client_ids"
	// SAML entity IDs are unique per instance.
	uniqueTypeEntityID = "entity_ids"
)

// App is the reduced state of one application on a project.
type App struct {
	AppID    string
	Name     string
	Type     domain.AppType
	State    domain.AppState
	ClientID string

	OIDCAppType            domain.OIDCAppType
	OIDCAuthMethodType     domain.OIDCAuthMethodType
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	DevMode                bool

	APIAuthMethodType domain.APIAuthMethodType

	EntityID    string
	Metadata    string
	MetadataURL string
}

// AppWriteModel reduces the applications of one project.
type AppWriteModel struct {
	eventstore.WriteModel

	ProjectState domain.ProjectState
	Apps         map[string]*App
}

func NewAppWriteModel(instanceID, projectID string) *AppWriteModel {
	return &AppWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, projectID),
		Apps:       map[string]*App{},
	}
}

func (wm *AppWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeProject, ID: wm.AggregateID}
}

func (wm *AppWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.ProjectAddedType:
			wm.ProjectState = domain.ProjectStateActive
		case events.ProjectDeactivatedType:
			wm.ProjectState = domain.ProjectStateInactive
		case events.ProjectReactivatedType:
			wm.ProjectState = domain.ProjectStateActive
		case events.ProjectRemovedType:
			wm.ProjectState = domain.ProjectStateRemoved
		case events.OIDCAppAddedType:
			var payload events.OIDCAppAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Apps[payload.AppID] = &App{
				AppID:                  payload.AppID,
				Name:                   payload.Name,
				Type:                   domain.AppTypeOIDC,
				State:                  domain.AppStateActive,
				ClientID:               payload.ClientID,
				OIDCAppType:            payload.AppType,
				OIDCAuthMethodType:     payload.AuthMethodType,
				RedirectURIs:           payload.RedirectURIs,
				PostLogoutRedirectURIs: payload.PostLogoutRedirectURIs,
				DevMode:                payload.DevMode,
			}
		case events.OIDCAppConfigChangedType:
			var payload events.OIDCAppConfigChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			app, ok := wm.Apps[payload.AppID]
			if !ok {
				continue
			}
			if payload.AuthMethodType != nil {
				app.OIDCAuthMethodType = *payload.AuthMethodType
			}
			if payload.RedirectURIs != nil {
				app.RedirectURIs = payload.RedirectURIs
			}
			if payload.PostLogoutRedirectURIs != nil {
				app.PostLogoutRedirectURIs = payload.PostLogoutRedirectURIs
			}
			if payload.DevMode != nil {
				app.DevMode = *payload.DevMode
			}
		case events.APIAppAddedType:
			var payload events.APIAppAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Apps[payload.AppID] = &App{
				AppID:             payload.AppID,
				Name:              payload.Name,
				Type:              domain.AppTypeAPI,
				State:             domain.AppStateActive,
				ClientID:          payload.ClientID,
				APIAuthMethodType: payload.AuthMethodType,
			}
		case events.APIAppConfigChangedType:
			var payload events.APIAppConfigChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if app, ok := wm.Apps[payload.AppID]; ok && payload.AuthMethodType != nil {
				app.APIAuthMethodType = *payload.AuthMethodType
			}
		case events.SAMLAppAddedType:
			var payload events.SAMLAppAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Apps[payload.AppID] = &App{
				AppID:       payload.AppID,
				Name:        payload.Name,
				Type:        domain.AppTypeSAML,
				State:       domain.AppStateActive,
				EntityID:    payload.EntityID,
				Metadata:    payload.Metadata,
				MetadataURL: payload.MetadataURL,
			}
		case events.SAMLAppConfigChangedType:
			var payload events.SAMLAppConfigChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			app, ok := wm.Apps[payload.AppID]
			if !ok {
				continue
			}
			if payload.EntityID != nil {
				app.EntityID = *payload.EntityID
			}
			if payload.Metadata != nil {
				app.Metadata = *payload.Metadata
			}
			if payload.MetadataURL != nil {
				app.MetadataURL = *payload.MetadataURL
			}
		case events.AppChangedType:
			var payload events.AppChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if app, ok := wm.Apps[payload.AppID]; ok {
					app.Name = payload.Name
				}
			}
		case events.AppDeactivatedType:
			var payload events.AppStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if app, ok := wm.Apps[payload.AppID]; ok {
					app.State = domain.AppStateInactive
				}
			}
		case events.AppReactivatedType:
			var payload events.AppStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if app, ok := wm.Apps[payload.AppID]; ok {
					app.State = domain.AppStateActive
				}
			}
		case events.AppRemovedType:
			var payload events.AppRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.Apps, payload.AppID)
			}
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *AppWriteModel) appByClientID(clientID string) *App {
	for _, app := range wm.Apps {
		if app.ClientID == clientID {
			return app
		}
	}
	return nil
}

// CreatedApp is the result of an add-application command.
type CreatedApp struct {
	AppID    string
	ClientID string
	EntityID string
	Details  *Details
}

// AddOIDCApp holds the configuration for a new OIDC client.
type AddOIDCApp struct {
	Name                   string
	AppType                domain.OIDCAppType
	AuthMethodType         domain.OIDCAuthMethodType
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	ResponseTypes          []string
	GrantTypes             []string
	DevMode                bool
}

// AddOIDCApp registers an OIDC client on a project and claims its client ID.
func (c *Commands) AddOIDCApp(ctx context.Context, instanceID, projectID string, app AddOIDCApp) (*CreatedApp, error) {
	if strings.TrimSpace(app.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "APP-001", "application name must not be empty")
	}
	if app.AppType != domain.OIDCAppTypeNative && len(app.RedirectURIs) == 0 {
		return nil, apperror.InvalidArgument(nil, "APP-OIDC-001", "at least one redirect uri is required")
	}
	for _, uri := range app.RedirectURIs {
		if err := domain.CheckURL(uri); err != nil {
			return nil, apperror.InvalidArgument(err, "APP-OIDC-002", "redirect uri is not a valid url")
		}
	}

	appID, err := c.nextID()
	if err != nil {
		return nil, err
	}
	clientID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.app.oidc.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadApps(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.OIDCAppAddedType,
			Payload: events.OIDCAppAdded{
				AppID:                  appID,
				Name:                   app.Name,
				ClientID:               clientID,
				AppType:                app.AppType,
				AuthMethodType:         app.AuthMethodType,
				RedirectURIs:           app.RedirectURIs,
				PostLogoutRedirectURIs: app.PostLogoutRedirectURIs,
				ResponseTypes:          app.ResponseTypes,
				GrantTypes:             app.GrantTypes,
				DevMode:                app.DevMode,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeClientID, clientID, "APP-002"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedApp{AppID: appID, ClientID: clientID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeOIDCAppConfig is the input of ChangeOIDCAppConfig; nil fields keep
// the current value.
type ChangeOIDCAppConfig struct {
	AuthMethodType         *domain.OIDCAuthMethodType
	RedirectURIs           []string
	PostLogoutRedirectURIs []string
	DevMode                *bool
}

// ChangeOIDCAppConfig updates the OIDC client config. All fields equal is a
// no-op.
func (c *Commands) ChangeOIDCAppConfig(ctx context.Context, instanceID, projectID, appID string, change ChangeOIDCAppConfig) (*Details, error) {
	for _, uri := range change.RedirectURIs {
		if err := domain.CheckURL(uri); err != nil {
			return nil, apperror.InvalidArgument(err, "APP-OIDC-002", "redirect uri is not a valid url")
		}
	}

	var details *Details
	_, err := c.exec(ctx, "project.app.oidc.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, app, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		if app.Type != domain.AppTypeOIDC {
			return nil, apperror.InvalidArgument(nil, "APP-OIDC-003", "not an OIDC application")
		}
		if app.OIDCAppType != domain.OIDCAppTypeNative && change.RedirectURIs != nil && len(change.RedirectURIs) == 0 {
			return nil, apperror.InvalidArgument(nil, "APP-OIDC-001", "at least one redirect uri is required")
		}

		payload := events.OIDCAppConfigChanged{AppID: appID}
		if change.AuthMethodType != nil && *change.AuthMethodType != app.OIDCAuthMethodType {
			payload.AuthMethodType = change.AuthMethodType
		}
		if change.RedirectURIs != nil && !sameStringSet(app.RedirectURIs, change.RedirectURIs) {
			payload.RedirectURIs = change.RedirectURIs
		}
		if change.PostLogoutRedirectURIs != nil && !sameStringSet(app.PostLogoutRedirectURIs, change.PostLogoutRedirectURIs) {
			payload.PostLogoutRedirectURIs = change.PostLogoutRedirectURIs
		}
		if change.DevMode != nil && *change.DevMode != app.DevMode {
			payload.DevMode = change.DevMode
		}
		if payload.AuthMethodType == nil && payload.RedirectURIs == nil && payload.PostLogoutRedirectURIs == nil && payload.DevMode == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OIDCAppConfigChangedType,
			Payload:         payload,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// AddAPIApp registers an API client on a project and claims its client ID.
func (c *Commands) AddAPIApp(ctx context.Context, instanceID, projectID, name string, authMethod domain.APIAuthMethodType) (*CreatedApp, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.InvalidArgument(nil, "APP-001", "application name must not be empty")
	}

	appID, err := c.nextID()
	if err != nil {
		return nil, err
	}
	clientID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.app.api.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadApps(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.APIAppAddedType,
			Payload: events.APIAppAdded{
				AppID:          appID,
				Name:           name,
				ClientID:       clientID,
				AuthMethodType: authMethod,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeClientID, clientID, "APP-002"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedApp{AppID: appID, ClientID: clientID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeAPIAppAuthMethod sets how an API client authenticates. The method is
// given in OIDC terms so callers share one enum; only BASIC and
// PRIVATE_KEY_JWT are valid for API apps.
func (c *Commands) ChangeAPIAppAuthMethod(ctx context.Context, instanceID, projectID, appID string, authMethod domain.OIDCAuthMethodType) (*Details, error) {
	var apiMethod domain.APIAuthMethodType
	switch authMethod {
	case domain.OIDCAuthMethodTypeBasic:
		apiMethod = domain.APIAuthMethodTypeBasic
	case domain.OIDCAuthMethodTypePrivateKeyJWT:
		apiMethod = domain.APIAuthMethodTypePrivateKeyJWT
	default:
		return nil, apperror.InvalidArgument(nil, "APP-API-001", "invalid auth method for API app")
	}

	var details *Details
	_, err := c.exec(ctx, "project.app.api.auth.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, app, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		if app.Type != domain.AppTypeAPI {
			return nil, apperror.InvalidArgument(nil, "APP-API-002", "not an API application")
		}
		if app.APIAuthMethodType == apiMethod {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.APIAppConfigChangedType,
			Payload:         events.APIAppConfigChanged{AppID: appID, AuthMethodType: &apiMethod},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// AddSAMLApp holds the configuration for a new SAML service provider.
type AddSAMLApp struct {
	Name        string
	Metadata    string
	MetadataURL string
}

// AddSAMLApp registers a SAML service provider and claims its entity ID. The
// entity ID is read from the metadata document; when only a metadata URL is
// configured the URL serves as the entity ID until the document is fetched.
func (c *Commands) AddSAMLApp(ctx context.Context, instanceID, projectID string, app AddSAMLApp) (*CreatedApp, error) {
	if strings.TrimSpace(app.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "APP-001", "application name must not be empty")
	}
	entityID, err := samlEntityID(app.Metadata, app.MetadataURL)
	if err != nil {
		return nil, err
	}

	appID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.app.saml.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadApps(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SAMLAppAddedType,
			Payload: events.SAMLAppAdded{
				AppID:       appID,
				Name:        app.Name,
				EntityID:    entityID,
				Metadata:    app.Metadata,
				MetadataURL: app.MetadataURL,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
			UniqueConstraints: []*eventstore.UniqueConstraint{
				eventstore.NewAddUniqueConstraint(uniqueTypeEntityID, entityID, "APP-SAML-003"),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedApp{AppID: appID, EntityID: entityID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeSAMLAppConfig replaces the SAML metadata. A changed entity ID swaps
// the claim.
func (c *Commands) ChangeSAMLAppConfig(ctx context.Context, instanceID, projectID, appID string, app AddSAMLApp) (*Details, error) {
	entityID, err := samlEntityID(app.Metadata, app.MetadataURL)
	if err != nil {
		return nil, err
	}

	var details *Details
	_, err = c.exec(ctx, "project.app.saml.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, current, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		if current.Type != domain.AppTypeSAML {
			return nil, apperror.InvalidArgument(nil, "APP-SAML-004", "not a SAML application")
		}
		payload := events.SAMLAppConfigChanged{AppID: appID}
		var constraints []*eventstore.UniqueConstraint
		if entityID != current.EntityID {
			payload.EntityID = &entityID
			constraints = append(constraints,
				eventstore.NewRemoveUniqueConstraint(uniqueTypeEntityID, current.EntityID),
				eventstore.NewAddUniqueConstraint(uniqueTypeEntityID, entityID, "APP-SAML-003"),
			)
		}
		if app.Metadata != current.Metadata {
			payload.Metadata = &app.Metadata
		}
		if app.MetadataURL != current.MetadataURL {
			payload.MetadataURL = &app.MetadataURL
		}
		if payload.EntityID == nil && payload.Metadata == nil && payload.MetadataURL == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:         wm.aggregate(),
			Type:              events.SAMLAppConfigChangedType,
			Payload:           payload,
			ResourceOwner:     wm.ResourceOwner,
			ExpectedVersion:   wm.ExpectedVersion(),
			UniqueConstraints: constraints,
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ChangeApp renames an application. Same name is a no-op.
func (c *Commands) ChangeApp(ctx context.Context, instanceID, projectID, appID, name string) (*Details, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.InvalidArgument(nil, "APP-001", "application name must not be empty")
	}

	var details *Details
	_, err := c.exec(ctx, "project.app.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, app, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		if app.Name == name {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.AppChangedType,
			Payload:         events.AppChanged{AppID: appID, Name: name},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// DeactivateApp suspends an active application.
func (c *Commands) DeactivateApp(ctx context.Context, instanceID, projectID, appID string) (*Details, error) {
	return c.changeAppState(ctx, "project.app.deactivate", instanceID, projectID, appID,
		domain.AppStateActive, events.AppDeactivatedType, "APP-004", "application is not active")
}

// ReactivateApp resumes an inactive application.
func (c *Commands) ReactivateApp(ctx context.Context, instanceID, projectID, appID string) (*Details, error) {
	return c.changeAppState(ctx, "project.app.reactivate", instanceID, projectID, appID,
		domain.AppStateInactive, events.AppReactivatedType, "APP-005", "application is not inactive")
}

func (c *Commands) changeAppState(ctx context.Context, name, instanceID, projectID, appID string, required domain.AppState, eventType eventstore.EventType, code, message string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, app, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		if app.State != required {
			return nil, apperror.FailedPrecondition(nil, code, message)
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         events.AppStateChanged{AppID: appID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveApp removes an application and releases its claimed identity.
func (c *Commands) RemoveApp(ctx context.Context, instanceID, projectID, appID string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.app.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, app, err := c.loadExistingApp(ctx, instanceID, projectID, appID)
		if err != nil {
			return nil, err
		}
		var constraints []*eventstore.UniqueConstraint
		if app.ClientID != "" {
			constraints = append(constraints, eventstore.NewRemoveUniqueConstraint(uniqueTypeClientID, app.ClientID))
		}
		if app.EntityID != "" {
			constraints = append(constraints, eventstore.NewRemoveUniqueConstraint(uniqueTypeEntityID, app.EntityID))
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:         wm.aggregate(),
			Type:              events.AppRemovedType,
			Payload:           events.AppRemoved{AppID: appID, ClientID: app.ClientID, EntityID: app.EntityID},
			ResourceOwner:     wm.ResourceOwner,
			ExpectedVersion:   wm.ExpectedVersion(),
			UniqueConstraints: constraints,
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// TerminateClientSessions records a backchannel logout for one client. The
// session projection fans the termination out to all sessions of the client.
func (c *Commands) TerminateClientSessions(ctx context.Context, instanceID, projectID, clientID, reason string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.app.sessions.terminate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadApps(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if wm.appByClientID(clientID) == nil {
			return nil, apperror.NotFound(nil, "APP-003", "application not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ClientSessionsTerminatedType,
			Payload:         events.ClientSessionsTerminated{ClientID: clientID, Reason: reason},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadApps(ctx context.Context, instanceID, projectID string) (*AppWriteModel, error) {
	wm := NewAppWriteModel(instanceID, projectID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if !wm.ProjectState.Exists() {
		return nil, apperror.NotFound(nil, "PROJECT-004", "project not found")
	}
	return wm, nil
}

func (c *Commands) loadExistingApp(ctx context.Context, instanceID, projectID, appID string) (*AppWriteModel, *App, error) {
	wm, err := c.loadApps(ctx, instanceID, projectID)
	if err != nil {
		return nil, nil, err
	}
	app, ok := wm.Apps[appID]
	if !ok {
		return nil, nil, apperror.NotFound(nil, "APP-003", "application not found")
	}
	return wm, app, nil
}

// samlEntityDescriptor is the subset of the SAML metadata document needed to
// read the entity ID.
type samlEntityDescriptor struct {
	XMLName  xml.Name `xml:"EntityDescriptor"`
	EntityID string   `xml:"entityID,attr"`
}

func samlEntityID(metadata, metadataURL string) (string, error) {
	if metadata == "" && metadataURL == "" {
		return "", apperror.InvalidArgument(nil, "APP-SAML-001", "metadata or metadata url is required")
	}
	if metadata != "" {
		var descriptor samlEntityDescriptor
		if err := xml.Unmarshal([]byte(metadata), &descriptor); err != nil {
			return "", apperror.InvalidArgument(err, "APP-SAML-002", "metadata is not valid xml")
		}
		if descriptor.EntityID == "" {
			return "", apperror.InvalidArgument(nil, "APP-SAML-002", "metadata has no entity id")
		}
		return descriptor.EntityID, nil
	}
	if err := domain.CheckURL(metadataURL); err != nil {
		return "", apperror.InvalidArgument(err, "APP-SAML-005", "metadata url is not a valid url")
	}
	return metadataURL, nil
}
