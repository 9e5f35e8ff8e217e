package command

import (
	"context"
	"fmt"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/crypto"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/notification"
)

// ChangeHumanEmail sets a new email address and issues a verification code.
// Setting the already verified address is a no-op.
func (c *Commands) ChangeHumanEmail(ctx context.Context, instanceID, userID, email string) (*Details, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.CheckEmail(email); err != nil {
		return nil, err
	}

	var details *Details
	_, err := c.exec(ctx, "user.human.email.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Email == email && wm.EmailVerified {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		code, err := c.codes.OTP6()
		if err != nil {
			return nil, apperror.Internal(err, "USER-EMAIL-005", "unable to generate verification code")
		}

		commands := []eventstore.Command{
			{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanEmailChangedType,
				Payload:         events.HumanEmailChanged{Email: email},
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			},
			{
				Aggregate: wm.aggregate(),
				Type:      events.HumanEmailCodeAddedType,
				Payload: events.HumanEmailCodeAdded{
					VerificationCode: events.VerificationCode{CodeHash: crypto.HashCode(code), Expiry: c.codeExpiry},
				},
				ResourceOwner: wm.ResourceOwner,
			},
		}
		pushed, err := c.push(ctx, instanceID, commands...)
		if err != nil {
			return nil, err
		}
		c.sendEmailCode(ctx, email, code)
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// ResendHumanEmailCode issues a fresh code for the pending email.
func (c *Commands) ResendHumanEmailCode(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.email.code.resend", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.EmailVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-EMAIL-006", "email is already verified")
		}
		code, err := c.codes.OTP6()
		if err != nil {
			return nil, apperror.Internal(err, "USER-EMAIL-005", "unable to generate verification code")
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.HumanEmailCodeAddedType,
			Payload: events.HumanEmailCodeAdded{
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

// VerifyHumanEmail checks the submitted code against the latest unexpired
// one. A wrong code is recorded as a failed verification and surfaced as an
// error.
func (c *Commands) VerifyHumanEmail(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.email.verify", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.EmailVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-EMAIL-006", "email is already verified")
		}
		if !wm.EmailCode.valid(c.now()) {
			return nil, apperror.FailedPrecondition(nil, "USER-EMAIL-004", "no valid verification code found")
		}
		if !crypto.VerifyCode(wm.EmailCode.Hash, code) {
			if _, pushErr := c.push(ctx, instanceID, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanEmailVerificationFailedType,
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.InvalidArgument(nil, "USER-EMAIL-003", "verification code is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanEmailVerifiedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeHumanPhone sets a new phone number (normalized to E.164) and issues
// a verification code over SMS.
func (c *Commands) ChangeHumanPhone(ctx context.Context, instanceID, userID, phoneNumber string) (*Details, error) {
	normalized, err := c.phones.Normalize(phoneNumber, c.defaultRegion)
	if err != nil {
		return nil, err
	}

	var details *Details
	_, err = c.exec(ctx, "user.human.phone.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Phone == normalized && wm.PhoneVerified {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		code, err := c.codes.OTP6()
		if err != nil {
			return nil, apperror.Internal(err, "USER-PHONE-003", "unable to generate verification code")
		}
		pushed, err := c.push(ctx, instanceID,
			eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanPhoneChangedType,
				Payload:         events.HumanPhoneChanged{Phone: normalized},
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			},
			eventstore.Command{
				Aggregate: wm.aggregate(),
				Type:      events.HumanPhoneCodeAddedType,
				Payload: events.HumanPhoneCodeAdded{
					VerificationCode: events.VerificationCode{CodeHash: crypto.HashCode(code), Expiry: c.codeExpiry},
				},
				ResourceOwner: wm.ResourceOwner,
			},
		)
		if err != nil {
			return nil, err
		}
		c.sendSMSCode(ctx, normalized, code)
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// VerifyHumanPhone checks the submitted code against the latest unexpired
// one.
func (c *Commands) VerifyHumanPhone(ctx context.Context, instanceID, userID, code string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.phone.verify", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Phone == "" {
			return nil, apperror.NotFound(nil, "USER-PHONE-001", "user has no phone number")
		}
		if wm.PhoneVerified {
			return nil, apperror.FailedPrecondition(nil, "USER-PHONE-002", "phone is already verified")
		}
		if !wm.PhoneCode.valid(c.now()) {
			return nil, apperror.FailedPrecondition(nil, "USER-PHONE-004", "no valid verification code found")
		}
		if !crypto.VerifyCode(wm.PhoneCode.Hash, code) {
			if _, pushErr := c.push(ctx, instanceID, eventstore.Command{
				Aggregate:       wm.aggregate(),
				Type:            events.HumanPhoneVerificationFailedType,
				ResourceOwner:   wm.ResourceOwner,
				ExpectedVersion: wm.ExpectedVersion(),
			}); pushErr != nil {
				return nil, pushErr
			}
			return nil, apperror.InvalidArgument(nil, "USER-PHONE-005", "verification code is invalid")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanPhoneVerifiedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveHumanPhone removes the phone number. SMS based OTP is removed with
// it by the reducer.
func (c *Commands) RemoveHumanPhone(ctx context.Context, instanceID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "user.human.phone.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingHuman(ctx, instanceID, userID)
		if err != nil {
			return nil, err
		}
		if wm.Phone == "" {
			return nil, apperror.NotFound(nil, "USER-PHONE-001", "user has no phone number")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.HumanPhoneRemovedType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// sendEmailCode delivers a verification code; failures are logged, never
// rolled back.
func (c *Commands) sendEmailCode(ctx context.Context, email, code string) {
	err := c.notifier.SendEmail(ctx, notification.Email{
		Recipient: email,
		Subject:   "Verification code",
		Body:      fmt.Sprintf("Your verification code is %s", code),
	})
	if err != nil {
		c.logger.Error("sending verification email failed", "error", err)
	}
}

func (c *Commands) sendSMSCode(ctx context.Context, phoneNumber, code string) {
	err := c.notifier.SendSMS(ctx, notification.SMS{
		Recipient: phoneNumber,
		Body:      fmt.Sprintf("Your verification code is %s", code),
	})
	if err != nil {
		c.logger.Error("sending verification sms failed", "error", err)
	}
}
