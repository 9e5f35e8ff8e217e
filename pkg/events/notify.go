package events

import (
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// SMTP and SMS provider config events live on the org aggregate.
const (
	SMTPConfigAddedType       eventstore.EventType = "org.smtp.config.added"
	SMTPConfigChangedType     eventstore.EventType = "org.smtp.config.changed"
	SMTPConfigActivatedType   eventstore.EventType = "org.smtp.config.activated"
	SMTPConfigDeactivatedType eventstore.EventType = "org.smtp.config.deactivated"
	SMTPConfigRemovedType     eventstore.EventType = "org.smtp.config.removed"

	SMSConfigTwilioAddedType  eventstore.EventType = "org.sms.config.twilio.added"
	SMSConfigHTTPAddedType    eventstore.EventType = "org.sms.config.http.added"
	SMSConfigChangedType      eventstore.EventType = "org.sms.config.changed"
	SMSConfigActivatedType    eventstore.EventType = "org.sms.config.activated"
	SMSConfigDeactivatedType  eventstore.EventType = "org.sms.config.deactivated"
	SMSConfigRemovedType      eventstore.EventType = "org.sms.config.removed"
)

type SMTPConfigAdded struct {
	ID             string `json:"id"`
	Description    string `json:"description,omitempty"`
	Host           string `json:"host"`
	User           string `json:"user,omitempty"`
	Password       string `json:"password,omitempty"` // sealed by the crypto keeper
	TLS            bool   `json:"tls"`
	SenderAddress  string `json:"senderAddress"`
	SenderName     string `json:"senderName,omitempty"`
	ReplyToAddress string `json:"replyToAddress,omitempty"`
}

type SMTPConfigChanged struct {
	ID             string  `json:"id"`
	Description    *string `json:"description,omitempty"`
	Host           *string `json:"host,omitempty"`
	User           *string `json:"user,omitempty"`
	Password       *string `json:"password,omitempty"`
	TLS            *bool   `json:"tls,omitempty"`
	SenderAddress  *string `json:"senderAddress,omitempty"`
	SenderName     *string `json:"senderName,omitempty"`
	ReplyToAddress *string `json:"replyToAddress,omitempty"`
}

type SMTPConfigStateChanged struct {
	ID string `json:"id"`
}

type SMSConfigTwilioAdded struct {
	ID           string `json:"id"`
	Description  string `json:"description,omitempty"`
	SID          string `json:"sid"`
	Token        string `json:"token"` // sealed by the crypto keeper
	SenderNumber string `json:"senderNumber"`
}

type SMSConfigHTTPAdded struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Endpoint    string `json:"endpoint"`
}

type SMSConfigChanged struct {
	ID           string           `json:"id"`
	ProviderType domain.SMSProviderType `json:"providerType,omitempty"`
	Description  *string          `json:"description,omitempty"`
	SID          *string          `json:"sid,omitempty"`
	Token        *string          `json:"token,omitempty"`
	SenderNumber *string          `json:"senderNumber,omitempty"`
	Endpoint     *string          `json:"endpoint,omitempty"`
}

type SMSConfigStateChanged struct {
	ID string `json:"id"`
}
