// Package domain holds the value types of the IAM model: entity state
// enums, format validation and the pure policy checks used by commands.
package domain

// OrgState is the lifecycle of an organization.
type OrgState int32

const (
	OrgStateUnspecified OrgState = iota
	OrgStateActive
	OrgStateInactive
	OrgStateRemoved
)

func (s OrgState) Exists() bool {
	return s == OrgStateActive || s == OrgStateInactive
}

// UserType distinguishes human from machine users.
type UserType int32

const (
	UserTypeUnspecified UserType = iota
	UserTypeHuman
	UserTypeMachine
)

// UserState is the lifecycle of a user.
type UserState int32

const (
	UserStateUnspecified UserState = iota
	UserStateActive
	// UserStateInitial marks a human user that has not completed setup.
	UserStateInitial
	UserStateInactive
	UserStateLocked
	UserStateDeleted
)

func (s UserState) Exists() bool {
	return s != UserStateUnspecified && s != UserStateDeleted
}

// ProjectState is the lifecycle of a project.
type ProjectState int32

const (
	ProjectStateUnspecified ProjectState = iota
	ProjectStateActive
	ProjectStateInactive
	ProjectStateRemoved
)

func (s ProjectState) Exists() bool {
	return s == ProjectStateActive || s == ProjectStateInactive
}

// ProjectGrantState is the lifecycle of a project grant.
type ProjectGrantState int32

const (
	ProjectGrantStateUnspecified ProjectGrantState = iota
	ProjectGrantStateActive
	ProjectGrantStateInactive
	ProjectGrantStateRemoved
)

func (s ProjectGrantState) Exists() bool {
	return s == ProjectGrantStateActive || s == ProjectGrantStateInactive
}

// AppState is the lifecycle of an application.
type AppState int32

const (
	AppStateUnspecified AppState = iota
	AppStateActive
	AppStateInactive
	AppStateRemoved
)

func (s AppState) Exists() bool {
	return s == AppStateActive || s == AppStateInactive
}

// AppType is the kind of application configuration.
type AppType int32

const (
	AppTypeUnspecified AppType = iota
	AppTypeOIDC
	AppTypeAPI
	AppTypeSAML
)

// OIDCAppType is the OIDC client profile.
type OIDCAppType int32

const (
	OIDCAppTypeWeb OIDCAppType = iota
	OIDCAppTypeUserAgent
	OIDCAppTypeNative
)

// OIDCAuthMethodType is how an OIDC client authenticates.
type OIDCAuthMethodType int32

const (
	OIDCAuthMethodTypeBasic OIDCAuthMethodType = iota
	OIDCAuthMethodTypePost
	OIDCAuthMethodTypeNone
	OIDCAuthMethodTypePrivateKeyJWT
)

// APIAuthMethodType is how an API client authenticates. NONE is invalid for
// API apps.
type APIAuthMethodType int32

const (
	APIAuthMethodTypeBasic APIAuthMethodType = iota
	APIAuthMethodTypePrivateKeyJWT
)

// SessionState is the lifecycle of a session.
type SessionState int32

const (
	SessionStateUnspecified SessionState = iota
	SessionStateActive
	SessionStateTerminated
)

// IDPState is the lifecycle of an identity provider config.
type IDPState int32

const (
	IDPStateUnspecified IDPState = iota
	IDPStateActive
	IDPStateRemoved
)

// IDPType is the protocol of an identity provider.
type IDPType int32

const (
	IDPTypeUnspecified IDPType = iota
	IDPTypeOIDC
	IDPTypeJWT
	IDPTypeSAML
)

// ActionState is the lifecycle of an action.
type ActionState int32

const (
	ActionStateUnspecified ActionState = iota
	ActionStateActive
	ActionStateInactive
	ActionStateRemoved
)

func (s ActionState) Exists() bool {
	return s == ActionStateActive || s == ActionStateInactive
}

// ConfigState is the lifecycle of SMTP/SMS provider configs.
type ConfigState int32

const (
	ConfigStateUnspecified ConfigState = iota
	ConfigStateInactive
	ConfigStateActive
	ConfigStateRemoved
)

func (s ConfigState) Exists() bool {
	return s == ConfigStateActive || s == ConfigStateInactive
}

// SMSProviderType is the kind of SMS provider.
type SMSProviderType int32

const (
	SMSProviderTypeUnspecified SMSProviderType = iota
	SMSProviderTypeTwilio
	SMSProviderTypeHTTP
)

// WebKeyState is the lifecycle of a signing web key.
type WebKeyState int32

const (
	WebKeyStateUnspecified WebKeyState = iota
	WebKeyStateInitial
	WebKeyStateActive
	WebKeyStateInactive
	WebKeyStateRemoved
)

// PolicyType identifies a policy variant shared by instance and org scope.
type PolicyType string

const (
	PolicyTypePasswordComplexity PolicyType = "password.complexity"
	PolicyTypePasswordAge        PolicyType = "password.age"
	PolicyTypePasswordLockout    PolicyType = "password.lockout"
	PolicyTypeLogin              PolicyType = "login"
	PolicyTypeLabel              PolicyType = "label"
	PolicyTypePrivacy            PolicyType = "privacy"
	PolicyTypeNotification       PolicyType = "notification"
	PolicyTypeDomain             PolicyType = "domain"
	PolicyTypeMFA                PolicyType = "mfa"
)

// AuthMethodType enumerates session factor kinds. A session keeps at most
// one verified factor per type.
type AuthMethodType int32

const (
	AuthMethodTypeUnspecified AuthMethodType = iota
	AuthMethodTypePassword
	AuthMethodTypeTOTP
	AuthMethodTypeOTPSMS
	AuthMethodTypeOTPEmail
	AuthMethodTypeU2F
	AuthMethodTypePasswordless
	AuthMethodTypeIDP
)
