package command

import (
	"context"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// SMTPConfig is the reduced state of one SMTP provider config.
type SMTPConfig struct {
	ID             string
	Description    string
	Host           string
	User           string
	Password       string // sealed
	TLS            bool
	SenderAddress  string
	SenderName     string
	ReplyToAddress string
	State          domain.ConfigState
}

// SMSConfig is the reduced state of one SMS provider config.
type SMSConfig struct {
	ID           string
	ProviderType domain.SMSProviderType
	Description  string
	SID          string
	Token        string // sealed
	SenderNumber string
	Endpoint     string
	State        domain.ConfigState
}

// NotifyConfigWriteModel reduces the SMTP and SMS provider configs of one
// org. At most one config of each kind is active.
type NotifyConfigWriteModel struct {
	eventstore.WriteModel

	OrgState domain.OrgState
	SMTP     map[string]*SMTPConfig
	SMS      map[string]*SMSConfig
}

func NewNotifyConfigWriteModel(instanceID, orgID string) *NotifyConfigWriteModel {
	return &NotifyConfigWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, orgID),
		SMTP:       map[string]*SMTPConfig{},
		SMS:        map[string]*SMSConfig{},
	}
}

func (wm *NotifyConfigWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

func (wm *NotifyConfigWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.OrgAddedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgDeactivatedType:
			wm.OrgState = domain.OrgStateInactive
		case events.OrgReactivatedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgRemovedType:
			wm.OrgState = domain.OrgStateRemoved
		case events.SMTPConfigAddedType:
			var payload events.SMTPConfigAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.SMTP[payload.ID] = &SMTPConfig{
				ID:             payload.ID,
				Description:    payload.Description,
				Host:           payload.Host,
				User:           payload.User,
				Password:       payload.Password,
				TLS:            payload.TLS,
				SenderAddress:  payload.SenderAddress,
				SenderName:     payload.SenderName,
				ReplyToAddress: payload.ReplyToAddress,
				State:          domain.ConfigStateInactive,
			}
		case events.SMTPConfigChangedType:
			var payload events.SMTPConfigChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			config, ok := wm.SMTP[payload.ID]
			if !ok {
				continue
			}
			if payload.Description != nil {
				config.Description = *payload.Description
			}
			if payload.Host != nil {
				config.Host = *payload.Host
			}
			if payload.User != nil {
				config.User = *payload.User
			}
			if payload.Password != nil {
				config.Password = *payload.Password
			}
			if payload.TLS != nil {
				config.TLS = *payload.TLS
			}
			if payload.SenderAddress != nil {
				config.SenderAddress = *payload.SenderAddress
			}
			if payload.SenderName != nil {
				config.SenderName = *payload.SenderName
			}
			if payload.ReplyToAddress != nil {
				config.ReplyToAddress = *payload.ReplyToAddress
			}
		case events.SMTPConfigActivatedType:
			var payload events.SMTPConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			// Activation is exclusive; the previously active config is
			// deactivated in the same push.
			if config, ok := wm.SMTP[payload.ID]; ok {
				config.State = domain.ConfigStateActive
			}
		case events.SMTPConfigDeactivatedType:
			var payload events.SMTPConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if config, ok := wm.SMTP[payload.ID]; ok {
					config.State = domain.ConfigStateInactive
				}
			}
		case events.SMTPConfigRemovedType:
			var payload events.SMTPConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.SMTP, payload.ID)
			}
		case events.SMSConfigTwilioAddedType:
			var payload events.SMSConfigTwilioAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.SMS[payload.ID] = &SMSConfig{
				ID:           payload.ID,
				ProviderType: domain.SMSProviderTypeTwilio,
				Description:  payload.Description,
				SID:          payload.SID,
				Token:        payload.Token,
				SenderNumber: payload.SenderNumber,
				State:        domain.ConfigStateInactive,
			}
		case events.SMSConfigHTTPAddedType:
			var payload events.SMSConfigHTTPAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.SMS[payload.ID] = &SMSConfig{
				ID:           payload.ID,
				ProviderType: domain.SMSProviderTypeHTTP,
				Description:  payload.Description,
				Endpoint:     payload.Endpoint,
				State:        domain.ConfigStateInactive,
			}
		case events.SMSConfigChangedType:
			var payload events.SMSConfigChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			config, ok := wm.SMS[payload.ID]
			if !ok {
				continue
			}
			if payload.Description != nil {
				config.Description = *payload.Description
			}
			if payload.SID != nil {
				config.SID = *payload.SID
			}
			if payload.Token != nil {
				config.Token = *payload.Token
			}
			if payload.SenderNumber != nil {
				config.SenderNumber = *payload.SenderNumber
			}
			if payload.Endpoint != nil {
				config.Endpoint = *payload.Endpoint
			}
		case events.SMSConfigActivatedType:
			var payload events.SMSConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if config, ok := wm.SMS[payload.ID]; ok {
					config.State = domain.ConfigStateActive
				}
			}
		case events.SMSConfigDeactivatedType:
			var payload events.SMSConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if config, ok := wm.SMS[payload.ID]; ok {
					config.State = domain.ConfigStateInactive
				}
			}
		case events.SMSConfigRemovedType:
			var payload events.SMSConfigStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.SMS, payload.ID)
			}
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *NotifyConfigWriteModel) activeSMTP() *SMTPConfig {
	for _, config := range wm.SMTP {
		if config.State == domain.ConfigStateActive {
			return config
		}
	}
	return nil
}

func (wm *NotifyConfigWriteModel) activeSMS() *SMSConfig {
	for _, config := range wm.SMS {
		if config.State == domain.ConfigStateActive {
			return config
		}
	}
	return nil
}

// CreatedConfig is the result of an add-config command.
type CreatedConfig struct {
	ID      string
	Details *Details
}

// AddSMTPConfig is the input of AddSMTPConfig. The password is sealed before
// it is stored.
type AddSMTPConfig struct {
	Description    string
	Host           string
	User           string
	Password       string
	TLS            bool
	SenderAddress  string
	SenderName     string
	ReplyToAddress string
}

// AddSMTPConfig registers an SMTP provider. New configs start inactive.
func (c *Commands) AddSMTPConfig(ctx context.Context, instanceID, orgID string, config AddSMTPConfig) (*CreatedConfig, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, apperror.InvalidArgument(nil, "SMTP-001", "smtp host must not be empty")
	}
	if err := domain.CheckEmail(domain.NormalizeEmail(config.SenderAddress)); err != nil {
		return nil, apperror.InvalidArgument(err, "SMTP-002", "sender address is not a valid email")
	}
	sealed, err := c.sealer.Seal(ctx, config.Password)
	if err != nil {
		return nil, apperror.Internal(err, "SMTP-003", "unable to seal smtp password")
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "org.smtp.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SMTPConfigAddedType,
			Payload: events.SMTPConfigAdded{
				ID:             id,
				Description:    config.Description,
				Host:           config.Host,
				User:           config.User,
				Password:       sealed,
				TLS:            config.TLS,
				SenderAddress:  domain.NormalizeEmail(config.SenderAddress),
				SenderName:     config.SenderName,
				ReplyToAddress: config.ReplyToAddress,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedConfig{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// ChangeSMTPConfig is the input of ChangeSMTPConfig; nil fields keep the
// current value.
type ChangeSMTPConfig struct {
	Description    *string
	Host           *string
	User           *string
	Password       *string
	TLS            *bool
	SenderAddress  *string
	SenderName     *string
	ReplyToAddress *string
}

// ChangeSMTPConfig updates an SMTP provider. All fields equal is a no-op. A
// new password always emits an event; sealed values are not comparable.
func (c *Commands) ChangeSMTPConfig(ctx context.Context, instanceID, orgID, id string, change ChangeSMTPConfig) (*Details, error) {
	if change.Host != nil && strings.TrimSpace(*change.Host) == "" {
		return nil, apperror.InvalidArgument(nil, "SMTP-001", "smtp host must not be empty")
	}
	if change.SenderAddress != nil {
		normalized := domain.NormalizeEmail(*change.SenderAddress)
		if err := domain.CheckEmail(normalized); err != nil {
			return nil, apperror.InvalidArgument(err, "SMTP-002", "sender address is not a valid email")
		}
		change.SenderAddress = &normalized
	}
	var sealed *string
	if change.Password != nil {
		value, err := c.sealer.Seal(ctx, *change.Password)
		if err != nil {
			return nil, apperror.Internal(err, "SMTP-003", "unable to seal smtp password")
		}
		sealed = &value
	}

	var details *Details
	_, err := c.exec(ctx, "org.smtp.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMTP[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMTP-004", "smtp config not found")
		}
		payload := events.SMTPConfigChanged{ID: id}
		if stringChanged(config.Description, change.Description) {
			payload.Description = change.Description
		}
		if stringChanged(config.Host, change.Host) {
			payload.Host = change.Host
		}
		if stringChanged(config.User, change.User) {
			payload.User = change.User
		}
		payload.Password = sealed
		if boolChanged(config.TLS, change.TLS) {
			payload.TLS = change.TLS
		}
		if stringChanged(config.SenderAddress, change.SenderAddress) {
			payload.SenderAddress = change.SenderAddress
		}
		if stringChanged(config.SenderName, change.SenderName) {
			payload.SenderName = change.SenderName
		}
		if stringChanged(config.ReplyToAddress, change.ReplyToAddress) {
			payload.ReplyToAddress = change.ReplyToAddress
		}
		if payload == (events.SMTPConfigChanged{ID: id}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMTPConfigChangedType,
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

// ActivateSMTPConfig makes one config the active provider, deactivating the
// previously active one in the same push. Activating the already active
// config is a no-op.
func (c *Commands) ActivateSMTPConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "org.smtp.activate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMTP[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMTP-004", "smtp config not found")
		}
		if config.State == domain.ConfigStateActive {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		commands := make([]eventstore.Command, 0, 2)
		if active := wm.activeSMTP(); active != nil {
			commands = append(commands, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.SMTPConfigDeactivatedType,
				Payload:         events.SMTPConfigStateChanged{ID: active.ID},
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			})
		}
		activate := eventstore.Command{
			Aggregate:     wm.aggregate(),
			Type:          events.SMTPConfigActivatedType,
			Payload:       events.SMTPConfigStateChanged{ID: id},
			ResourceOwner: wm.ResourceOwner,
		}
		if len(commands) == 0 {
			activate.ExpectedVersion = wm.ExpectedVersion()
		}
		commands = append(commands, activate)
		pushed, err := c.push(ctx, instanceID, commands...)
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

// DeactivateSMTPConfig takes a config out of rotation.
func (c *Commands) DeactivateSMTPConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.smtp.deactivate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMTP[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMTP-004", "smtp config not found")
		}
		if config.State != domain.ConfigStateActive {
			return nil, apperror.FailedPrecondition(nil, "SMTP-005", "smtp config is not active")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMTPConfigDeactivatedType,
			Payload:         events.SMTPConfigStateChanged{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveSMTPConfig deletes a config.
func (c *Commands) RemoveSMTPConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.smtp.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.SMTP[id]; !ok {
			return nil, apperror.NotFound(nil, "SMTP-004", "smtp config not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMTPConfigRemovedType,
			Payload:         events.SMTPConfigStateChanged{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// AddTwilioSMSConfig registers a Twilio SMS provider. The auth token is
// sealed before it is stored. New configs start inactive.
func (c *Commands) AddTwilioSMSConfig(ctx context.Context, instanceID, orgID, description, sid, token, senderNumber string) (*CreatedConfig, error) {
	if sid == "" {
		return nil, apperror.InvalidArgument(nil, "SMS-001", "twilio sid must not be empty")
	}
	if token == "" {
		return nil, apperror.InvalidArgument(nil, "SMS-002", "twilio token must not be empty")
	}
	sealed, err := c.sealer.Seal(ctx, token)
	if err != nil {
		return nil, apperror.Internal(err, "SMS-003", "unable to seal twilio token")
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "org.sms.twilio.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SMSConfigTwilioAddedType,
			Payload: events.SMSConfigTwilioAdded{
				ID:           id,
				Description:  description,
				SID:          sid,
				Token:        sealed,
				SenderNumber: senderNumber,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedConfig{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// AddHTTPSMSConfig registers a webhook SMS provider.
func (c *Commands) AddHTTPSMSConfig(ctx context.Context, instanceID, orgID, description, endpoint string) (*CreatedConfig, error) {
	if err := domain.CheckURL(endpoint); err != nil {
		return nil, apperror.InvalidArgument(err, "SMS-004", "endpoint is not a valid url")
	}

	id, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "org.sms.http.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.SMSConfigHTTPAddedType,
			Payload: events.SMSConfigHTTPAdded{
				ID:          id,
				Description: description,
				Endpoint:    endpoint,
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedConfig{ID: id, Details: detailsFromEvents(pushed)}, nil
}

// ChangeSMSConfig is the input of ChangeSMSConfig; nil fields keep the
// current value. Provider-specific fields must match the config's type.
type ChangeSMSConfig struct {
	Description  *string
	SID          *string
	Token        *string
	SenderNumber *string
	Endpoint     *string
}

// ChangeSMSConfig updates an SMS provider. All fields equal is a no-op.
func (c *Commands) ChangeSMSConfig(ctx context.Context, instanceID, orgID, id string, change ChangeSMSConfig) (*Details, error) {
	var sealed *string
	if change.Token != nil {
		value, err := c.sealer.Seal(ctx, *change.Token)
		if err != nil {
			return nil, apperror.Internal(err, "SMS-003", "unable to seal twilio token")
		}
		sealed = &value
	}
	if change.Endpoint != nil {
		if err := domain.CheckURL(*change.Endpoint); err != nil {
			return nil, apperror.InvalidArgument(err, "SMS-004", "endpoint is not a valid url")
		}
	}

	var details *Details
	_, err := c.exec(ctx, "org.sms.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMS[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMS-005", "sms config not found")
		}
		if config.ProviderType == domain.SMSProviderTypeHTTP && (change.SID != nil || change.Token != nil || change.SenderNumber != nil) {
			return nil, apperror.InvalidArgument(nil, "SMS-006", "twilio fields on http config")
		}
		if config.ProviderType == domain.SMSProviderTypeTwilio && change.Endpoint != nil {
			return nil, apperror.InvalidArgument(nil, "SMS-007", "endpoint on twilio config")
		}

		payload := events.SMSConfigChanged{ID: id, ProviderType: config.ProviderType}
		if stringChanged(config.Description, change.Description) {
			payload.Description = change.Description
		}
		if stringChanged(config.SID, change.SID) {
			payload.SID = change.SID
		}
		payload.Token = sealed
		if stringChanged(config.SenderNumber, change.SenderNumber) {
			payload.SenderNumber = change.SenderNumber
		}
		if stringChanged(config.Endpoint, change.Endpoint) {
			payload.Endpoint = change.Endpoint
		}
		if payload == (events.SMSConfigChanged{ID: id, ProviderType: config.ProviderType}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMSConfigChangedType,
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

// ActivateSMSConfig makes one config the active provider, deactivating the
// previously active one in the same push. Activating the already active
// config is a no-op.
func (c *Commands) ActivateSMSConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "org.sms.activate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMS[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMS-005", "sms config not found")
		}
		if config.State == domain.ConfigStateActive {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		commands := make([]eventstore.Command, 0, 2)
		if active := wm.activeSMS(); active != nil {
			commands = append(commands, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.SMSConfigDeactivatedType,
				Payload:         events.SMSConfigStateChanged{ID: active.ID},
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			})
		}
		activate := eventstore.Command{
			Aggregate:     wm.aggregate(),
			Type:          events.SMSConfigActivatedType,
			Payload:       events.SMSConfigStateChanged{ID: id},
			ResourceOwner: wm.ResourceOwner,
		}
		if len(commands) == 0 {
			activate.ExpectedVersion = wm.ExpectedVersion()
		}
		commands = append(commands, activate)
		pushed, err := c.push(ctx, instanceID, commands...)
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

// DeactivateSMSConfig takes a config out of rotation.
func (c *Commands) DeactivateSMSConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.sms.deactivate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		config, ok := wm.SMS[id]
		if !ok {
			return nil, apperror.NotFound(nil, "SMS-005", "sms config not found")
		}
		if config.State != domain.ConfigStateActive {
			return nil, apperror.FailedPrecondition(nil, "SMS-008", "sms config is not active")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMSConfigDeactivatedType,
			Payload:         events.SMSConfigStateChanged{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveSMSConfig deletes a config.
func (c *Commands) RemoveSMSConfig(ctx context.Context, instanceID, orgID, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.sms.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadNotifyConfigs(ctx, instanceID, orgID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.SMS[id]; !ok {
			return nil, apperror.NotFound(nil, "SMS-005", "sms config not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.SMSConfigRemovedType,
			Payload:         events.SMSConfigStateChanged{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadNotifyConfigs(ctx context.Context, instanceID, orgID string) (*NotifyConfigWriteModel, error) {
	wm := NewNotifyConfigWriteModel(instanceID, orgID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if !wm.OrgState.Exists() {
		return nil, apperror.NotFound(nil, "ORG-003", "org not found")
	}
	return wm, nil
}
