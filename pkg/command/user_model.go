package command

import (
	"time"

	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// uniqueTypeUsername claims a username per org.
const uniqueTypeUsername = "usernames"

func usernameUniqueField(orgID, username string) string {
	return orgID + ":" + username
}

// codeState is a pending verification code on the user aggregate.
type codeState struct {
	Hash     string
	Expiry   time.Duration
	IssuedAt time.Time
}

func (c *codeState) valid(now time.Time) bool {
	return c != nil && c.Hash != "" && now.Before(c.IssuedAt.Add(c.Expiry))
}

// webAuthNToken is a registered U2F or passwordless token.
type webAuthNToken struct {
	TokenID   string
	Name      string
	Challenge string
	Verified  bool
}

// UserWriteModel reduces the full user aggregate: identity, contact
// information, password and every MFA method. Human and machine users share
// the aggregate; Type tags the variant.
type UserWriteModel struct {
	eventstore.WriteModel

	Type     domain.UserType
	State    domain.UserState
	Username string

	// Human profile.
	FirstName   string
	LastName    string
	DisplayName string
	Language    string

	Email         string
	EmailVerified bool
	EmailCode     *codeState

	Phone         string
	PhoneVerified bool
	PhoneCode     *codeState

	PasswordHash        string
	PasswordCheckFailed uint64

	TOTPSecret   string
	TOTPVerified bool

	OTPSMSAdded    bool
	OTPSMSCode     *codeState
	OTPCheckFailed uint64

	OTPEmailAdded bool
	OTPEmailCode  *codeState

	U2FTokens          map[string]*webAuthNToken
	PasswordlessTokens map[string]*webAuthNToken

	// Machine profile.
	MachineName        string
	MachineDescription string
}

func NewUserWriteModel(instanceID, userID string) *UserWriteModel {
	return &UserWriteModel{
		WriteModel:         eventstore.NewWriteModel(instanceID, userID),
		U2FTokens:          map[string]*webAuthNToken{},
		PasswordlessTokens: map[string]*webAuthNToken{},
	}
}

func (wm *UserWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeUser, ID: wm.AggregateID}
}

func (wm *UserWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.HumanAddedType:
			var payload events.HumanAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Type = domain.UserTypeHuman
			wm.Username = payload.Username
			wm.FirstName = payload.FirstName
			wm.LastName = payload.LastName
			wm.DisplayName = payload.DisplayName
			wm.Language = payload.Language
			wm.Email = payload.Email
			wm.Phone = payload.Phone
			wm.PasswordHash = payload.EncodedHash
			if payload.EncodedHash == "" {
				wm.State = domain.UserStateInitial
			} else {
				wm.State = domain.UserStateActive
			}
		case events.MachineAddedType:
			var payload events.MachineAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Type = domain.UserTypeMachine
			wm.Username = payload.Username
			wm.MachineName = payload.Name
			wm.MachineDescription = payload.Description
			wm.State = domain.UserStateActive
		case events.MachineChangedType:
			var payload events.MachineChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if payload.Name != nil {
				wm.MachineName = *payload.Name
			}
			if payload.Description != nil {
				wm.MachineDescription = *payload.Description
			}
		case events.UsernameChangedType:
			var payload events.UsernameChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Username = payload.Username
			}
		case events.HumanProfileChangedType:
			var payload events.HumanProfileChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if payload.FirstName != nil {
				wm.FirstName = *payload.FirstName
			}
			if payload.LastName != nil {
				wm.LastName = *payload.LastName
			}
			if payload.DisplayName != nil {
				wm.DisplayName = *payload.DisplayName
			}
			if payload.Language != nil {
				wm.Language = *payload.Language
			}
		case events.HumanEmailChangedType:
			var payload events.HumanEmailChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Email = payload.Email
				wm.EmailVerified = false
				wm.EmailCode = nil
			}
		case events.HumanEmailCodeAddedType:
			var payload events.HumanEmailCodeAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.EmailCode = &codeState{Hash: payload.CodeHash, Expiry: payload.Expiry, IssuedAt: event.CreatedAt}
			}
		case events.HumanEmailVerifiedType:
			wm.EmailVerified = true
			wm.EmailCode = nil
		case events.HumanPhoneChangedType:
			var payload events.HumanPhoneChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Phone = payload.Phone
				wm.PhoneVerified = false
				wm.PhoneCode = nil
			}
		case events.HumanPhoneCodeAddedType:
			var payload events.HumanPhoneCodeAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.PhoneCode = &codeState{Hash: payload.CodeHash, Expiry: payload.Expiry, IssuedAt: event.CreatedAt}
			}
		case events.HumanPhoneVerifiedType:
			wm.PhoneVerified = true
			wm.PhoneCode = nil
		case events.HumanPhoneRemovedType:
			wm.Phone = ""
			wm.PhoneVerified = false
			wm.PhoneCode = nil
			wm.OTPSMSAdded = false
		case events.HumanPasswordChangedType:
			var payload events.HumanPasswordChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.PasswordHash = payload.EncodedHash
				wm.PasswordCheckFailed = 0
				if wm.State == domain.UserStateInitial {
					wm.State = domain.UserStateActive
				}
			}
		case events.HumanPasswordCheckSucceededType:
			wm.PasswordCheckFailed = 0
		case events.HumanPasswordCheckFailedType:
			wm.PasswordCheckFailed++
		case events.UserLockedType:
			wm.State = domain.UserStateLocked
		case events.UserUnlockedType:
			wm.State = domain.UserStateActive
		case events.UserDeactivatedType:
			wm.State = domain.UserStateInactive
		case events.UserReactivatedType:
			wm.State = domain.UserStateActive
		case events.UserRemovedType:
			wm.State = domain.UserStateDeleted
		case events.HumanTOTPAddedType:
			var payload events.HumanTOTPAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.TOTPSecret = payload.Secret
				wm.TOTPVerified = false
			}
		case events.HumanTOTPVerifiedType:
			wm.TOTPVerified = true
		case events.HumanTOTPRemovedType:
			wm.TOTPSecret = ""
			wm.TOTPVerified = false
		case events.HumanOTPSMSAddedType:
			wm.OTPSMSAdded = true
		case events.HumanOTPSMSRemovedType:
			wm.OTPSMSAdded = false
			wm.OTPSMSCode = nil
		case events.HumanOTPSMSCodeAddedType:
			var payload events.HumanOTPSMSCodeAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.OTPSMSCode = &codeState{Hash: payload.CodeHash, Expiry: payload.Expiry, IssuedAt: event.CreatedAt}
			}
		case events.HumanOTPSMSCheckSucceededType:
			wm.OTPSMSCode = nil
			wm.OTPCheckFailed = 0
		case events.HumanOTPSMSCheckFailedType:
			wm.OTPCheckFailed++
		case events.HumanOTPEmailAddedType:
			wm.OTPEmailAdded = true
		case events.HumanOTPEmailRemovedType:
			wm.OTPEmailAdded = false
			wm.OTPEmailCode = nil
		case events.HumanOTPEmailCodeAddedType:
			var payload events.HumanOTPEmailCodeAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.OTPEmailCode = &codeState{Hash: payload.CodeHash, Expiry: payload.Expiry, IssuedAt: event.CreatedAt}
			}
		case events.HumanOTPEmailCheckSucceededType:
			wm.OTPEmailCode = nil
			wm.OTPCheckFailed = 0
		case events.HumanOTPEmailCheckFailedType:
			wm.OTPCheckFailed++
		case events.HumanU2FAddedType:
			wm.reduceWebAuthNAdded(wm.U2FTokens, event)
		case events.HumanU2FVerifiedType:
			wm.reduceWebAuthNVerified(wm.U2FTokens, event)
		case events.HumanU2FRemovedType:
			wm.reduceWebAuthNRemoved(wm.U2FTokens, event)
		case events.HumanPasswordlessAddedType:
			wm.reduceWebAuthNAdded(wm.PasswordlessTokens, event)
		case events.HumanPasswordlessVerifiedType:
			wm.reduceWebAuthNVerified(wm.PasswordlessTokens, event)
		case events.HumanPasswordlessRemovedType:
			wm.reduceWebAuthNRemoved(wm.PasswordlessTokens, event)
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *UserWriteModel) reduceWebAuthNAdded(tokens map[string]*webAuthNToken, event eventstore.Event) {
	var payload events.HumanWebAuthNTokenAdded
	if err := event.UnmarshalPayload(&payload); err == nil {
		tokens[payload.TokenID] = &webAuthNToken{TokenID: payload.TokenID, Challenge: payload.Challenge}
	}
}

func (wm *UserWriteModel) reduceWebAuthNVerified(tokens map[string]*webAuthNToken, event eventstore.Event) {
	var payload events.HumanWebAuthNTokenVerified
	if err := event.UnmarshalPayload(&payload); err != nil {
		return
	}
	if token, ok := tokens[payload.TokenID]; ok {
		token.Verified = true
		token.Name = payload.TokenName
	}
}

func (wm *UserWriteModel) reduceWebAuthNRemoved(tokens map[string]*webAuthNToken, event eventstore.Event) {
	var payload events.HumanWebAuthNTokenRemoved
	if err := event.UnmarshalPayload(&payload); err == nil {
		delete(tokens, payload.TokenID)
	}
}
