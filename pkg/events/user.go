package events

import (
	"time"

	"github.com/auriga-id/auriga/pkg/eventstore"
)

// User aggregate events.
const (
	HumanAddedType      eventstore.EventType = "user.human.added"
	MachineAddedType    eventstore.EventType = "user.machine.added"
	MachineChangedType  eventstore.EventType = "user.machine.changed"
	UsernameChangedType eventstore.EventType = "user.username.changed"

	HumanProfileChangedType eventstore.EventType = "user.human.profile.changed"

	HumanEmailChangedType  eventstore.EventType = "user.human.email.changed"
	HumanEmailCodeAddedType eventstore.EventType = "user.human.email.code.added"
	HumanEmailVerifiedType eventstore.EventType = "user.human.email.verified"
	HumanEmailVerificationFailedType eventstore.EventType = "user.human.email.verification.failed"

	HumanPhoneChangedType  eventstore.EventType = "user.human.phone.changed"
	HumanPhoneCodeAddedType eventstore.EventType = "user.human.phone.code.added"
	HumanPhoneVerifiedType eventstore.EventType = "user.human.phone.verified"
	HumanPhoneVerificationFailedType eventstore.EventType = "user.human.phone.verification.failed"
	HumanPhoneRemovedType  eventstore.EventType = "user.human.phone.removed"

	HumanPasswordChangedType eventstore.EventType = "user.human.password.changed"
	HumanPasswordCheckSucceededType eventstore.EventType = "user.human.password.check.succeeded"
	HumanPasswordCheckFailedType eventstore.EventType = "user.human.password.check.failed"

	UserLockedType      eventstore.EventType = "user.locked"
	UserUnlockedType    eventstore.EventType = "user.unlocked"
	UserDeactivatedType eventstore.EventType = "user.deactivated"
	UserReactivatedType eventstore.EventType = "user.reactivated"
	UserRemovedType     eventstore.EventType = "user.removed"

	HumanTOTPAddedType    eventstore.EventType = "user.human.mfa.otp.added"
	HumanTOTPVerifiedType eventstore.EventType = "user.human.mfa.otp.verified"
	HumanTOTPCheckSucceededType eventstore.EventType = "user.human.mfa.otp.check.succeeded"
	HumanTOTPCheckFailedType eventstore.EventType = "user.human.mfa.otp.check.failed"
	HumanTOTPRemovedType  eventstore.EventType = "user.human.mfa.otp.removed"

	HumanOTPSMSAddedType       eventstore.EventType = "user.human.otp.sms.added"
	HumanOTPSMSRemovedType     eventstore.EventType = "user.human.otp.sms.removed"
	HumanOTPSMSCodeAddedType   eventstore.EventType = "user.human.otp.sms.code.added"
	HumanOTPSMSCheckSucceededType eventstore.EventType = "user.human.otp.sms.check.succeeded"
	HumanOTPSMSCheckFailedType eventstore.EventType = "user.human.otp.sms.check.failed"

	HumanOTPEmailAddedType       eventstore.EventType = "user.human.otp.email.added"
	HumanOTPEmailRemovedType     eventstore.EventType = "user.human.otp.email.removed"
	HumanOTPEmailCodeAddedType   eventstore.EventType = "user.human.otp.email.code.added"
	HumanOTPEmailCheckSucceededType eventstore.EventType = "user.human.otp.email.check.succeeded"
	HumanOTPEmailCheckFailedType eventstore.EventType = "user.human.otp.email.check.failed"

	HumanU2FAddedType    eventstore.EventType = "user.human.mfa.u2f.token.added"
	HumanU2FVerifiedType eventstore.EventType = "user.human.mfa.u2f.token.verified"
	HumanU2FRemovedType  eventstore.EventType = "user.human.mfa.u2f.token.removed"

	HumanPasswordlessAddedType    eventstore.EventType = "user.human.passwordless.token.added"
	HumanPasswordlessVerifiedType eventstore.EventType = "user.human.passwordless.token.verified"
	HumanPasswordlessRemovedType  eventstore.EventType = "user.human.passwordless.token.removed"

	UserSessionsTerminatedType eventstore.EventType = "user.sessions.terminated"
)

type HumanAdded struct {
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DisplayName string `json:"displayName,omitempty"`
	Language    string `json:"language,omitempty"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	// EncodedHash is the bcrypt hash of the initial password, if any.
	EncodedHash string `json:"encodedHash,omitempty"`
}

type MachineAdded struct {
	Username    string `json:"username"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type MachineChanged struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UsernameChanged struct {
	OldUsername string `json:"oldUsername"`
	Username    string `json:"username"`
}

type HumanProfileChanged struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Language    *string `json:"language,omitempty"`
}

type HumanEmailChanged struct {
	Email string `json:"email"`
}

// VerificationCode is shared by email, phone and OTP code events. The code
// is stored hashed; comparison happens in the command engine.
type VerificationCode struct {
	CodeHash string        `json:"codeHash"`
	Expiry   time.Duration `json:"expiry"`
}

type HumanEmailCodeAdded struct {
	VerificationCode
}

type HumanPhoneChanged struct {
	// Phone is normalized E.164.
	Phone string `json:"phone"`
}

type HumanPhoneCodeAdded struct {
	VerificationCode
}

type HumanPasswordChanged struct {
	EncodedHash       string `json:"encodedHash"`
	ChangeRequired    bool   `json:"changeRequired,omitempty"`
	TriggeredAtOrigin string `json:"triggerOrigin,omitempty"`
}

type HumanTOTPAdded struct {
	// Secret is the encrypted TOTP seed.
	Secret string `json:"secret"`
}

type HumanOTPSMSCodeAdded struct {
	VerificationCode
}

type HumanOTPEmailCodeAdded struct {
	VerificationCode
}

type HumanWebAuthNTokenAdded struct {
	TokenID   string `json:"tokenId"`
	Challenge string `json:"challenge"`
}

type HumanWebAuthNTokenVerified struct {
	TokenID       string `json:"tokenId"`
	TokenName     string `json:"tokenName"`
	AttestationType string `json:"attestationType,omitempty"`
	KeyID         string `json:"keyId,omitempty"`
	PublicKey     string `json:"publicKey,omitempty"`
}

type HumanWebAuthNTokenRemoved struct {
	TokenID string `json:"tokenId"`
}

type UserSessionsTerminated struct {
	Reason string `json:"reason,omitempty"`
}
