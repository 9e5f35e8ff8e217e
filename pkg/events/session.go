package events

import (
	"time"

	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// Session aggregate events.
const (
	SessionAddedType      eventstore.EventType = "session.added"
	SessionOIDCAddedType  eventstore.EventType = "session.oidc.added"
	SessionUpdatedType    eventstore.EventType = "session.updated"
	SessionFactorSetType  eventstore.EventType = "session.factor.set"
	SessionTerminatedType eventstore.EventType = "session.terminated"
)

type SessionAdded struct {
	UserID        string `json:"userId"`
	UserAgent     string `json:"userAgent,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
	Lifetime      time.Duration `json:"lifetime,omitempty"`
}

// SessionOIDCAdded creates a session bound to an OIDC authorization
// request, optionally with a PKCE pair.
type SessionOIDCAdded struct {
	UserID        string                   `json:"userId"`
	ClientID      string                   `json:"clientId"`
	RedirectURI   string                   `json:"redirectUri,omitempty"`
	Scope         []string                 `json:"scope,omitempty"`
	Nonce         string                   `json:"nonce,omitempty"`
	CodeChallenge *domain.OIDCCodeChallenge `json:"codeChallenge,omitempty"`
}

type SessionUpdated struct {
	AccessTokenID  *string    `json:"accessTokenId,omitempty"`
	RefreshTokenID *string    `json:"refreshTokenId,omitempty"`
	AMR            []string   `json:"amr,omitempty"`
	AuthTime       *time.Time `json:"authTime,omitempty"`
}

// SessionFactorSet records a verified auth factor; at most one verified
// factor per type is kept by the reducer.
type SessionFactorSet struct {
	Type      domain.AuthMethodType `json:"type"`
	CheckedAt time.Time             `json:"checkedAt"`
}

type SessionTerminated struct {
	Reason string `json:"reason,omitempty"`
}
