// Package events declares the event types of every aggregate and their JSON
// payloads. Payload decoding tolerates unknown fields so old binaries can
// read new history.
package events

import (
	"time"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

// Org aggregate events.
const (
	OrgAddedType       eventstore.EventType = "org.added"
	OrgChangedType     eventstore.EventType = "org.changed"
	OrgDeactivatedType eventstore.EventType = "org.deactivated"
	OrgReactivatedType eventstore.EventType = "org.reactivated"
	OrgRemovedType     eventstore.EventType = "org.removed"

	OrgDomainAddedType             eventstore.EventType = "org.domain.added"
	OrgDomainVerificationAddedType eventstore.EventType = "org.domain.verification.added"
	OrgDomainVerificationFailedType eventstore.EventType = "org.domain.verification.failed"
	OrgDomainVerifiedType          eventstore.EventType = "org.domain.verified"
	OrgDomainPrimarySetType        eventstore.EventType = "org.domain.primary.set"
	OrgDomainRemovedType           eventstore.EventType = "org.domain.removed"

	OrgMemberAddedType   eventstore.EventType = "org.member.added"
	OrgMemberChangedType eventstore.EventType = "org.member.changed"
	OrgMemberRemovedType eventstore.EventType = "org.member.removed"

	OrgSessionsTerminatedType eventstore.EventType = "org.sessions.terminated"
)

type OrgAdded struct {
	Name string `json:"name"`
}

type OrgChanged struct {
	Name string `json:"name"`
}

type OrgDomainAdded struct {
	Domain string `json:"domain"`
}

// OrgDomainVerificationAdded carries the verification token and how it must
// be proven.
type OrgDomainVerificationAdded struct {
	Domain         string    `json:"domain"`
	ValidationType string    `json:"validationType"` // "http" or "dns"
	Code           string    `json:"code"`
	Expiry         time.Time `json:"expiry"`
}

type OrgDomainVerificationFailed struct {
	Domain string `json:"domain"`
}

type OrgDomainVerified struct {
	Domain string `json:"domain"`
}

type OrgDomainPrimarySet struct {
	Domain string `json:"domain"`
}

type OrgDomainRemoved struct {
	Domain     string `json:"domain"`
	WasPrimary bool   `json:"wasPrimary,omitempty"`
}

type OrgMemberAdded struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type OrgMemberChanged struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
}

type OrgMemberRemoved struct {
	UserID string `json:"userId"`
}

type OrgSessionsTerminated struct {
	Reason string `json:"reason,omitempty"`
}
