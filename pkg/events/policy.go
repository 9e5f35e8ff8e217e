package events

import (
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// Policy events exist at instance scope (defaults) and org scope
// (overrides). The event type is assembled from scope and policy type, e.g.
// "org.policy.password.complexity.added".
// PolicyScope is the aggregate a policy event lives on.
type PolicyScope string

const (
	PolicyScopeInstance PolicyScope = "instance"
	PolicyScopeOrg      PolicyScope = "org"
)

// PolicyEventType builds the event type for a scope, policy and lifecycle
// suffix ("added", "changed", "removed").
func PolicyEventType(scope PolicyScope, policy domain.PolicyType, lifecycle string) eventstore.EventType {
	return eventstore.EventType(string(scope) + ".policy." + string(policy) + "." + lifecycle)
}

func PolicyAddedType(scope PolicyScope, policy domain.PolicyType) eventstore.EventType {
	return PolicyEventType(scope, policy, "added")
}

func PolicyChangedType(scope PolicyScope, policy domain.PolicyType) eventstore.EventType {
	return PolicyEventType(scope, policy, "changed")
}

func PolicyRemovedType(scope PolicyScope, policy domain.PolicyType) eventstore.EventType {
	return PolicyEventType(scope, policy, "removed")
}

// PolicyPayload wraps any policy value; exactly one field is set, matching
// the policy type in the event type.
type PolicyPayload struct {
	PasswordComplexity *domain.PasswordComplexityPolicy `json:"passwordComplexity,omitempty"`
	PasswordAge        *domain.PasswordAgePolicy        `json:"passwordAge,omitempty"`
	PasswordLockout    *domain.PasswordLockoutPolicy    `json:"passwordLockout,omitempty"`
	Login              *domain.LoginPolicy              `json:"login,omitempty"`
	Label              *domain.LabelPolicy              `json:"label,omitempty"`
	Privacy            *domain.PrivacyPolicy            `json:"privacy,omitempty"`
	Notification       *domain.NotificationPolicy       `json:"notification,omitempty"`
	Domain             *domain.DomainPolicy             `json:"domain,omitempty"`
	MFA                *domain.MFAPolicy                `json:"mfa,omitempty"`
}
