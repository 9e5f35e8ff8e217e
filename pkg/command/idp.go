package command

import (
	"context"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// IDPScope selects the aggregate identity providers live on.
type IDPScope int

const (
	IDPScopeOrg IDPScope = iota
	IDPScopeInstance
)

// IDP is the reduced state of one identity provider config.
type IDP struct {
	ID    string
	Name  string
	Type  domain.IDPType
	State domain.IDPState

	Issuer       string
	ClientID     string
	ClientSecret string // sealed
	Scopes       []string

	JWTEndpoint  string
	KeysEndpoint string
	HeaderName   string

	Metadata    string
	MetadataURL string
	Binding     string
}

// IDPWriteModel reduces the identity providers of one scope aggregate.
type IDPWriteModel struct {
	eventstore.WriteModel

	scope IDPScope
	IDPs  map[string]*IDP
}

func NewIDPWriteModel(instanceID, aggregateID string, scope IDPScope) *IDPWriteModel {
	return &IDPWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, aggregateID),
		scope:      scope,
		IDPs:       map[string]*IDP{},
	}
}

func (wm *IDPWriteModel) aggregate() eventstore.Aggregate {
	if wm.scope == IDPScopeInstance {
		return eventstore.Aggregate{Type: eventstore.AggregateTypeInstance, ID: wm.AggregateID}
	}
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

func (wm *IDPWriteModel) eventTypes() (oidcAdded, oidcChanged, jwtAdded, jwtChanged, samlAdded, samlChanged, removed eventstore.EventType) {
	if wm.scope == IDPScopeInstance {
		return events.InstanceIDPOIDCAddedType, events.InstanceIDPOIDCChangedType,
			events.InstanceIDPJWTAddedType, events.InstanceIDPJWTChangedType,
			events.InstanceIDPSAMLAddedType, events.InstanceIDPSAMLChangedType,
			events.InstanceIDPRemovedType
	}
	return events.OrgIDPOIDCAddedType, events.OrgIDPOIDCChangedType,
		events.OrgIDPJWTAddedType, events.OrgIDPJWTChangedType,
		events.OrgIDPSAMLAddedType, events.OrgIDPSAMLChangedType,
		events.OrgIDPRemovedType
}

func (wm *IDPWriteModel) Reduce() {
	oidcAdded, oidcChanged, jwtAdded, jwtChanged, samlAdded, samlChanged, removed := wm.eventTypes()
	for _, event := range wm.Events() {
		switch event.Type {
		case oidcAdded:
			var payload events.IDPOIDCAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.IDPs[payload.ID] = &IDP{
				ID:           payload.ID,
				Name:         payload.Name,
				Type:         domain.IDPTypeOIDC,
				State:        domain.IDPStateActive,
				Issuer:       payload.Issuer,
				ClientID:     payload.ClientID,
				ClientSecret: payload.ClientSecret,
				Scopes:       payload.Scopes,
			}
		case oidcChanged:
			var payload events.IDPOIDCChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			idp, ok := wm.IDPs[payload.ID]
			if !ok {
				continue
			}
			if payload.Name != nil {
				idp.Name = *payload.Name
			}
			if payload.Issuer != nil {
				idp.Issuer = *payload.Issuer
			}
			if payload.ClientID != nil {
				idp.ClientID = *payload.ClientID
			}
			if payload.ClientSecret != nil {
				idp.ClientSecret = *payload.ClientSecret
			}
			if payload.Scopes != nil {
				idp.Scopes = payload.Scopes
			}
		case jwtAdded:
			var payload events.IDPJWTAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.IDPs[payload.ID] = &IDP{
				ID:           payload.ID,
				Name:         payload.Name,
				Type:         domain.IDPTypeJWT,
				State:        domain.IDPStateActive,
				Issuer:       payload.Issuer,
				JWTEndpoint:  payload.JWTEndpoint,
				KeysEndpoint: payload.KeysEndpoint,
				HeaderName:   payload.HeaderName,
			}
		case jwtChanged:
			var payload events.IDPJWTChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			idp, ok := wm.IDPs[payload.ID]
			if !ok {
				continue
			}
			if payload.Name != nil {
				idp.Name = *payload.Name
			}
			if payload.Issuer != nil {
				idp.Issuer = *payload.Issuer
			}
			if payload.JWTEndpoint != nil {
				idp.JWTEndpoint = *payload.JWTEndpoint
			}
			if payload.KeysEndpoint != nil {
				idp.KeysEndpoint = *payload.KeysEndpoint
			}
			if payload.HeaderName != nil {
				idp.HeaderName = *payload.HeaderName
			}
		case samlAdded:
			var payload events.IDPSAMLAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.IDPs[payload.ID] = &IDP{
				ID:          payload.ID,
				Name:        payload.Name,
				Type:        domain.IDPTypeSAML,
				State:       domain.IDPStateActive,
				Metadata:    payload.Metadata,
				MetadataURL: payload.MetadataURL,
				Binding:     payload.Binding,
			}
		case samlChanged:
			var payload events.IDPSAMLChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			idp, ok := wm.IDPs[payload.ID]
			if !ok {
				continue
			}
			if payload.Name != nil {
				idp.Name = *payload.Name
			}
			if payload.Metadata != nil {
				idp.Metadata = *payload.Metadata
			}
			if payload.MetadataURL != nil {
				idp.MetadataURL = *payload.MetadataURL
			}
			if payload.Binding != nil {
				idp.Binding = *payload.Binding
			}
		case removed:
			var payload events.IDPRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.IDPs, payload.ID)
			}
		}
	}
	wm.WriteModel.Reduce()
}

// CreatedIDP is the result of an add-IDP command.
type CreatedIDP struct {
	ID      string
	Details *Details
}

// AddOIDCIDP is the input of AddOIDCIDP. The client secret is sealed before
// it is stored.
type AddOIDCIDP struct {
	Name         string
	Issuer       string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// AddOIDCIDP registers an upstream OIDC provider. scope selects the org or
// the instance; orgID is ignored at instance scope.
func (c *Commands) AddOIDCIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, idp AddOIDCIDP) (*CreatedIDP, error) {
	if strings.TrimSpace(idp.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "IDP-001", "idp name must not be empty")
	}
	if err := domain.CheckURL(idp.Issuer); err != nil {
		return nil, apperror.InvalidArgument(err, "IDP-002", "issuer is not a valid url")
	}
	if idp.ClientID == "" {
		return nil, apperror.InvalidArgument(nil, "IDP-003", "client id must not be empty")
	}
	sealed, err := c.sealer.Seal(ctx, idp.ClientSecret)
	if err != nil {
		return nil, apperror.Internal(err, "IDP-004", "unable to seal client secret")
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "idp.oidc.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadIDPs(ctx, instanceID, orgID, scope)
		if err != nil {
			return nil, err
		}
		oidcAdded, _, _, _, _, _, _ := wm.eventTypes()
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      oidcAdded,
			Payload: events.IDPOIDCAdded{
				ID:           id,
				Name:         idp.Name,
				Issuer:       idp.Issuer,
				ClientID:     idp.ClientID,
				ClientSecret: sealed,
				Scopes:       idp.Scopes,
			},
			ResourceOwner:   wm.AggregateID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedIDP{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// ChangeOIDCIDP is the input of ChangeOIDCIDP; nil fields keep the current
// value.
type ChangeOIDCIDP struct {
	Name         *string
	Issuer       *string
	ClientID     *string
	ClientSecret *string
	Scopes       []string
}

// ChangeOIDCIDP updates an OIDC provider. All fields equal is a no-op. A new
// client secret always emits an event.
func (c *Commands) ChangeOIDCIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, id string, change ChangeOIDCIDP) (*Details, error) {
	if change.Issuer != nil {
		if err := domain.CheckURL(*change.Issuer); err != nil {
			return nil, apperror.InvalidArgument(err, "IDP-002", "issuer is not a valid url")
		}
	}
	var sealed *string
	if change.ClientSecret != nil {
		value, err := c.sealer.Seal(ctx, *change.ClientSecret)
		if err != nil {
			return nil, apperror.Internal(err, "IDP-004", "unable to seal client secret")
		}
		sealed = &value
	}

	var details *Details
	_, err := c.exec(ctx, "idp.oidc.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, idp, err := c.loadExistingIDP(ctx, instanceID, orgID, scope, id)
		if err != nil {
			return nil, err
		}
		if idp.Type != domain.IDPTypeOIDC {
			return nil, apperror.InvalidArgument(nil, "IDP-006", "not an OIDC idp")
		}
		payload := events.IDPOIDCChanged{ID: id}
		if stringChanged(idp.Name, change.Name) {
			payload.Name = change.Name
		}
		if stringChanged(idp.Issuer, change.Issuer) {
			payload.Issuer = change.Issuer
		}
		if stringChanged(idp.ClientID, change.ClientID) {
			payload.ClientID = change.ClientID
		}
		payload.ClientSecret = sealed
		if change.Scopes != nil && !sameStringSet(idp.Scopes, change.Scopes) {
			payload.Scopes = change.Scopes
		}
		if payload.Name == nil && payload.Issuer == nil && payload.ClientID == nil && payload.ClientSecret == nil && payload.Scopes == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		_, oidcChanged, _, _, _, _, _ := wm.eventTypes()
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            oidcChanged,
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

// AddJWTIDP is the input of AddJWTIDP.
type AddJWTIDP struct {
	Name         string
	Issuer       string
	JWTEndpoint  string
	KeysEndpoint string
	HeaderName   string
}

// AddJWTIDP registers an upstream JWT provider.
func (c *Commands) AddJWTIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, idp AddJWTIDP) (*CreatedIDP, error) {
	if strings.TrimSpace(idp.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "IDP-001", "idp name must not be empty")
	}
	if err := domain.CheckURL(idp.Issuer); err != nil {
		return nil, apperror.InvalidArgument(err, "IDP-002", "issuer is not a valid url")
	}
	if err := domain.CheckURL(idp.JWTEndpoint); err != nil {
		return nil, apperror.InvalidArgument(err, "IDP-007", "jwt endpoint is not a valid url")
	}
	if err := domain.CheckURL(idp.KeysEndpoint); err != nil {
		return nil, apperror.InvalidArgument(err, "IDP-008", "keys endpoint is not a valid url")
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "idp.jwt.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadIDPs(ctx, instanceID, orgID, scope)
		if err != nil {
			return nil, err
		}
		_, _, jwtAdded, _, _, _, _ := wm.eventTypes()
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      jwtAdded,
			Payload: events.IDPJWTAdded{
				ID:           id,
				Name:         idp.Name,
				Issuer:       idp.Issuer,
				JWTEndpoint:  idp.JWTEndpoint,
				KeysEndpoint: idp.KeysEndpoint,
				HeaderName:   idp.HeaderName,
			},
			ResourceOwner:   wm.AggregateID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedIDP{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// ChangeJWTIDP is the input of ChangeJWTIDP; nil fields keep the current
// value.
type ChangeJWTIDP struct {
	Name         *string
	Issuer       *string
	JWTEndpoint  *string
	KeysEndpoint *string
	HeaderName   *string
}

// ChangeJWTIDP updates a JWT provider. All fields equal is a no-op.
func (c *Commands) ChangeJWTIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, id string, change ChangeJWTIDP) (*Details, error) {
	for _, endpoint := range []*string{change.Issuer, change.JWTEndpoint, change.KeysEndpoint} {
		if endpoint == nil {
			continue
		}
		if err := domain.CheckURL(*endpoint); err != nil {
			return nil, apperror.InvalidArgument(err, "IDP-007", "endpoint is not a valid url")
		}
	}

	var details *Details
	_, err := c.exec(ctx, "idp.jwt.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, idp, err := c.loadExistingIDP(ctx, instanceID, orgID, scope, id)
		if err != nil {
			return nil, err
		}
		if idp.Type != domain.IDPTypeJWT {
			return nil, apperror.InvalidArgument(nil, "IDP-009", "not a JWT idp")
		}
		payload := events.IDPJWTChanged{ID: id}
		if stringChanged(idp.Name, change.Name) {
			payload.Name = change.Name
		}
		if stringChanged(idp.Issuer, change.Issuer) {
			payload.Issuer = change.Issuer
		}
		if stringChanged(idp.JWTEndpoint, change.JWTEndpoint) {
			payload.JWTEndpoint = change.JWTEndpoint
		}
		if stringChanged(idp.KeysEndpoint, change.KeysEndpoint) {
			payload.KeysEndpoint = change.KeysEndpoint
		}
		if stringChanged(idp.HeaderName, change.HeaderName) {
			payload.HeaderName = change.HeaderName
		}
		if payload == (events.IDPJWTChanged{ID: id}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		_, _, _, jwtChanged, _, _, _ := wm.eventTypes()
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            jwtChanged,
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

// AddSAMLIDP is the input of AddSAMLIDP. Either a metadata document or a
// metadata URL is required.
type AddSAMLIDP struct {
	Name        string
	Metadata    string
	MetadataURL string
	Binding     string
}

// AddSAMLIDP registers an upstream SAML provider.
func (c *Commands) AddSAMLIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, idp AddSAMLIDP) (*CreatedIDP, error) {
	if strings.TrimSpace(idp.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "IDP-001", "idp name must not be empty")
	}
	if idp.Metadata == "" && idp.MetadataURL == "" {
		return nil, apperror.InvalidArgument(nil, "IDP-010", "metadata or metadata url is required")
	}
	if idp.MetadataURL != "" {
		if err := domain.CheckURL(idp.MetadataURL); err != nil {
			return nil, apperror.InvalidArgument(err, "IDP-011", "metadata url is not a valid url")
		}
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "idp.saml.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadIDPs(ctx, instanceID, orgID, scope)
		if err != nil {
			return nil, err
		}
		_, _, _, _, samlAdded, _, _ := wm.eventTypes()
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      samlAdded,
			Payload: events.IDPSAMLAdded{
				ID:          id,
				Name:        idp.Name,
				Metadata:    idp.Metadata,
				MetadataURL: idp.MetadataURL,
				Binding:     idp.Binding,
			},
			ResourceOwner:   wm.AggregateID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedIDP{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// ChangeSAMLIDP is the input of ChangeSAMLIDP; nil fields keep the current
// value.
type ChangeSAMLIDP struct {
	Name        *string
	Metadata    *string
	MetadataURL *string
	Binding     *string
}

// ChangeSAMLIDP updates a SAML provider. All fields equal is a no-op. The
// change must not clear both metadata and metadata URL.
func (c *Commands) ChangeSAMLIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, id string, change ChangeSAMLIDP) (*Details, error) {
	if change.MetadataURL != nil && *change.MetadataURL != "" {
		if err := domain.CheckURL(*change.MetadataURL); err != nil {
			return nil, apperror.InvalidArgument(err, "IDP-011", "metadata url is not a valid url")
		}
	}

	var details *Details
	_, err := c.exec(ctx, "idp.saml.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, idp, err := c.loadExistingIDP(ctx, instanceID, orgID, scope, id)
		if err != nil {
			return nil, err
		}
		if idp.Type != domain.IDPTypeSAML {
			return nil, apperror.InvalidArgument(nil, "IDP-012", "not a SAML idp")
		}
		metadata := idp.Metadata
		if change.Metadata != nil {
			metadata = *change.Metadata
		}
		metadataURL := idp.MetadataURL
		if change.MetadataURL != nil {
			metadataURL = *change.MetadataURL
		}
		if metadata == "" && metadataURL == "" {
			return nil, apperror.InvalidArgument(nil, "IDP-010", "metadata or metadata url is required")
		}

		payload := events.IDPSAMLChanged{ID: id}
		if stringChanged(idp.Name, change.Name) {
			payload.Name = change.Name
		}
		if stringChanged(idp.Metadata, change.Metadata) {
			payload.Metadata = change.Metadata
		}
		if stringChanged(idp.MetadataURL, change.MetadataURL) {
			payload.MetadataURL = change.MetadataURL
		}
		if stringChanged(idp.Binding, change.Binding) {
			payload.Binding = change.Binding
		}
		if payload == (events.IDPSAMLChanged{ID: id}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		_, _, _, _, _, samlChanged, _ := wm.eventTypes()
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            samlChanged,
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

// RemoveIDP removes a provider of any protocol.
func (c *Commands) RemoveIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "idp.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, _, err := c.loadExistingIDP(ctx, instanceID, orgID, scope, id)
		if err != nil {
			return nil, err
		}
		_, _, _, _, _, _, removed := wm.eventTypes()
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            removed,
			Payload:         events.IDPRemoved{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadIDPs(ctx context.Context, instanceID, orgID string, scope IDPScope) (*IDPWriteModel, error) {
	aggregateID := orgID
	if scope == IDPScopeInstance {
		aggregateID = instanceID
	}
	wm := NewIDPWriteModel(instanceID, aggregateID, scope)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	return wm, nil
}

func (c *Commands) loadExistingIDP(ctx context.Context, instanceID, orgID string, scope IDPScope, id string) (*IDPWriteModel, *IDP, error) {
	wm, err := c.loadIDPs(ctx, instanceID, orgID, scope)
	if err != nil {
		return nil, nil, err
	}
	idp, ok := wm.IDPs[id]
	if !ok {
		return nil, nil, apperror.NotFound(nil, "IDP-005", "idp not found")
	}
	return wm, idp, nil
}
