package command

import (
	"context"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/crypto"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// AddHumanTOTP registers a TOTP seed on the user. The seed is generated and
// sealed by the caller; it becomes usable after verification.
func (c *Commands) AddHumanTOTP(ctx context.Context, instanceID, userID, secret string) (*Details, error) {
	if secret == "" {
		return nil, apperror.InvalidArgument(nil, "USER-MFA-002", "totp secret must not be empty")
	}
	pushed, err := c.exec(ctx, "user.human.totp.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.TOTPVerified {
			return nil, apperror.AlreadyExists(nil, "USER-MFA-003", "totp is already configured")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanTOTPAddedType,
			Payload:         events.HumanTOTPAdded{Secret: secret},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// VerifyHumanTOTP confirms the enrollment with a first valid code.
func (c *Commands) VerifyHumanTOTP(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.totp.verify", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.TOTPSecret == "" {
			return nil, apperror.NotFound(nil, "USER-MFA-004", "totp is not configured")
		}
		if wm.TOTPVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-003", "totp is already configured")
		}
		if !c.totp.Verify(wm.TOTPSecret, code) {
			return nil, apperror.InvalidArgument(nil, "USER-MFA-005", "totp code is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanTOTPVerifiedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// CheckHumanTOTP verifies a login code against the enrolled seed. The
// outcome is always recorded.
func (c *Commands) CheckHumanTOTP(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.totp.check", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.TOTPSecret == "" || !wm.TOTPVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-004", "totp is not configured")
		}
		if !c.totp.Verify(wm.TOTPSecret, code) {
			if _, pushErr := c.push(ctx, instanceID, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanTOTPCheckFailedType,
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.Unauthenticated(nil, "USER-MFA-005", "totp code is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanTOTPCheckSucceededType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveHumanTOTP unregisters TOTP.
func (c *Commands) RemoveHumanTOTP(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.totp.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.TOTPSecret == "" {
			return nil, apperror.NotFound(nil, "USER-MFA-004", "totp is not configured")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanTOTPRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// AddHumanOTPSMS enables SMS based one-time codes. Requires a verified
// phone number.
func (c *Commands) AddHumanOTPSMS(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.sms.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.PhoneVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-001", "phone must be verified")
		}
		if wm.OTPSMSAdded {
			return nil, apperror.AlreadyExists(nil, "USER-MFA-006", "sms otp is already enabled")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanOTPSMSAddedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveHumanOTPSMS disables SMS based one-time codes.
func (c *Commands) RemoveHumanOTPSMS(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.sms.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.OTPSMSAdded {
			return nil, apperror.NotFound(nil, "USER-MFA-007", "sms otp is not enabled")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanOTPSMSRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// SendHumanOTPSMSCode issues a login code and delivers it over SMS.
func (c *Commands) SendHumanOTPSMSCode(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.sms.code.send", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.OTPSMSAdded {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-007", "sms otp is not enabled")
		}
		code, err := c.codes.OTP6()
		if err != nil {
			return nil, apperror.Internal(err, "USER-MFA-008", "unable to generate otp code")
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.HumanOTPSMSCodeAddedType,
			Payload: events.HumanOTPSMSCodeAdded{
				VerificationCode: events.VerificationCode{CodeHash: crypto.HashCode(code), Expiry: c.codeExpiry},
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		c.sendSMSCode(ctx, wm.Phone, code)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// CheckHumanOTPSMS verifies a login code issued over SMS.
func (c *Commands) CheckHumanOTPSMS(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	return c.checkOTPCode(ctx, "user.human.otp.sms.check", instanceID, userID,
		func(wm *UserWriteModel) *codeState { return wm.OTPSMSCode },
		events.HumanOTPSMSCheckSucceededType, events.HumanOTPSMSCheckFailedType, code)
}

// AddHumanOTPEmail enables email based one-time codes. Requires a verified
// email.
func (c *Commands) AddHumanOTPEmail(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.email.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.EmailVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-009", "email must be verified")
		}
		if wm.OTPEmailAdded {
			return nil, apperror.AlreadyExists(nil, "USER-MFA-010", "email otp is already enabled")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanOTPEmailAddedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveHumanOTPEmail disables email based one-time codes.
func (c *Commands) RemoveHumanOTPEmail(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.email.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.OTPEmailAdded {
			return nil, apperror.NotFound(nil, "USER-MFA-011", "email otp is not enabled")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanOTPEmailRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// SendHumanOTPEmailCode issues a login code and delivers it by email.
func (c *Commands) SendHumanOTPEmailCode(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.otp.email.code.send", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if !wm.OTPEmailAdded {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-011", "email otp is not enabled")
		}
		code, err := c.codes.OTP6()
		if err != nil {
			return nil, apperror.Internal(err, "USER-MFA-008", "unable to generate otp code")
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.HumanOTPEmailCodeAddedType,
			Payload: events.HumanOTPEmailCodeAdded{
				VerificationCode: events.VerificationCode{CodeHash: crypto.HashCode(code), Expiry: c.codeExpiry},
			},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		c.sendEmailCode(ctx, wm.Email, code)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// CheckHumanOTPEmail verifies a login code issued by email.
func (c *Commands) CheckHumanOTPEmail(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	return c.checkOTPCode(ctx, "user.human.otp.email.check", instanceID, userID,
		func(wm *UserWriteModel) *codeState { return wm.OTPEmailCode },
		events.HumanOTPEmailCheckSucceededType, events.HumanOTPEmailCheckFailedType, code)
}

func (c *Commands) checkOTPCode(ctx context.Context, name, instanceID, userID string, pending func(*UserWriteModel) *codeState, succeededType, failedType eventstore.EventType, code string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		state := pending(wm)
		if !state.valid(c.now()) {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-012", "no valid otp code found")
		}
		if !crypto.VerifyCode(state.Hash, code) {
			commands := []eventstore.Command{{
				Aggregate:       wm.aggregate(),
				Type:            failedType,
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}}
			if c.lockoutPolicy.MaxOTPAttempts > 0 && wm.OTPCheckFailed+1 >= c.lockoutPolicy.MaxOTPAttempts {
				commands = append(commands, eventstore.Command{
					Aggregate:     wm.aggregate(),
					Type:          events.UserLockedType,
					ResourceOwner: wm.ResourceOwner,
				})
			}
			if _, pushErr := c.push(ctx, instanceID, commands...); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.Unauthenticated(nil, "USER-MFA-013", "otp code is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            succeededType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// WebAuthNRegistration is the begin-step result of a U2F or passwordless
// enrollment.
type WebAuthNRegistration struct {
	TokenID   string
	Challenge string
	Details   *Details
}

// AddHumanU2F begins a U2F enrollment and returns the ceremony challenge.
func (c *Commands) AddHumanU2F(ctx context.Context, instanceID, userID string) (*WebAuthNRegistration, error) {
	return c.addWebAuthNToken(ctx, "user.human.u2f.add", instanceID, userID, events.HumanU2FAddedType)
}

// VerifyHumanU2F completes a U2F enrollment; the ceremony result is checked
// outside the core.
func (c *Commands) VerifyHumanU2F(ctx context.Context, instanceID, userID string, verified events.HumanWebAuthNTokenVerified) (*Details, error) {
	return c.verifyWebAuthNToken(ctx, "user.human.u2f.verify", instanceID, userID, events.HumanU2FVerifiedType,
		func(wm *UserWriteModel) map[string]*webAuthNToken { return wm.U2FTokens }, verified)
}

// RemoveHumanU2F unregisters a U2F token.
func (c *Commands) RemoveHumanU2F(ctx context.Context, instanceID, userID, tokenID string) (*Details, error) {
	return c.removeWebAuthNToken(ctx, "user.human.u2f.remove", instanceID, userID, events.HumanU2FRemovedType,
		func(wm *UserWriteModel) map[string]*webAuthNToken { return wm.U2FTokens }, tokenID)
}

// AddHumanPasswordless begins a passwordless (platform WebAuthn) enrollment.
func (c *Commands) AddHumanPasswordless(ctx context.Context, instanceID, userID string) (*WebAuthNRegistration, error) {
	return c.addWebAuthNToken(ctx, "user.human.passwordless.add", instanceID, userID, events.HumanPasswordlessAddedType)
}

// VerifyHumanPasswordless completes a passwordless enrollment.
func (c *Commands) VerifyHumanPasswordless(ctx context.Context, instanceID, userID string, verified events.HumanWebAuthNTokenVerified) (*Details, error) {
	return c.verifyWebAuthNToken(ctx, "user.human.passwordless.verify", instanceID, userID, events.HumanPasswordlessVerifiedType,
		func(wm *UserWriteModel) map[string]*webAuthNToken { return wm.PasswordlessTokens }, verified)
}

// RemoveHumanPasswordless unregisters a passwordless token.
func (c *Commands) RemoveHumanPasswordless(ctx context.Context, instanceID, userID, tokenID string) (*Details, error) {
	return c.removeWebAuthNToken(ctx, "user.human.passwordless.remove", instanceID, userID, events.HumanPasswordlessRemovedType,
		func(wm *UserWriteModel) map[string]*webAuthNToken { return wm.PasswordlessTokens }, tokenID)
}

func (c *Commands) addWebAuthNToken(ctx context.Context, name, instanceID, userID string, eventType eventstore.EventType) (*WebAuthNRegistration, error) {
	tokenID, err := c.nextID()
	if err != nil {
		return nil, err
	}
	challenge, err := c.codes.Token32()
	if err != nil {
		return nil, apperror.Internal(err, "USER-MFA-014", "unable to generate challenge")
	}

	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         events.HumanWebAuthNTokenAdded{TokenID: tokenID, Challenge: challenge},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &WebAuthNRegistration{TokenID: tokenID, Challenge: challenge, Details: detailsFromEvents(pushed)}, nil
}

func (c *Commands) verifyWebAuthNToken(ctx context.Context, name, instanceID, userID string, eventType eventstore.EventType, tokens func(*UserWriteModel) map[string]*webAuthNToken, verified events.HumanWebAuthNTokenVerified) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		token, ok := tokens(wm)[verified.TokenID]
		if !ok {
			return nil, apperror.NotFound(nil, "USER-MFA-015", "webauthn token not found")
		}
		if token.Verified {
			return nil, apperror.FailedPrecondition(nil, "USER-MFA-016", "webauthn token is already verified")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         verified,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) removeWebAuthNToken(ctx context.Context, name, instanceID, userID string, eventType eventstore.EventType, tokens func(*UserWriteModel) map[string]*webAuthNToken, tokenID string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if _, ok := tokens(wm)[tokenID]; !ok {
			return nil, apperror.NotFound(nil, "USER-MFA-015", "webauthn token not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         events.HumanWebAuthNTokenRemoved{TokenID: tokenID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
