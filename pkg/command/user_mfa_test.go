package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// acceptCode builds a TOTP verifier that accepts exactly one code.
func acceptCode(valid string) command.Option {
	return command.WithTOTPVerifier(command.TOTPVerifierFunc(func(_, code string) bool {
		return code == valid
	}))
}

// verifiedPhoneUser creates a human with a verified phone number.
func verifiedPhoneUser(t *testing.T, cmds *command.Commands) string {
	t.Helper()
	ctx := context.Background()
	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)
	_, err = cmds.ChangeHumanPhone(ctx, testInstance, created.ID, "+41791234567")
	require.NoError(t, err)
	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)
	return created.ID
}

func TestHumanTOTPEnrollment(t *testing.T) {
	cmds, store := newEngine(t, acceptCode("000111"))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.AddHumanTOTP(ctx, testInstance, created.ID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.VerifyHumanTOTP(ctx, testInstance, created.ID, "000111")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = cmds.AddHumanTOTP(ctx, testInstance, created.ID, "sealed-seed")
	require.NoError(t, err)

	// Login checks need a completed enrollment.
	_, err = cmds.CheckHumanTOTP(ctx, testInstance, created.ID, "000111")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.VerifyHumanTOTP(ctx, testInstance, created.ID, "999999")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.VerifyHumanTOTP(ctx, testInstance, created.ID, "000111")
	require.NoError(t, err)

	_, err = cmds.AddHumanTOTP(ctx, testInstance, created.ID, "another-seed")
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.mfa.otp.verified"), types[len(types)-1])
}

func TestCheckHumanTOTPRecordsOutcome(t *testing.T) {
	cmds, store := newEngine(t, acceptCode("000111"))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)
	_, err = cmds.AddHumanTOTP(ctx, testInstance, created.ID, "sealed-seed")
	require.NoError(t, err)
	_, err = cmds.VerifyHumanTOTP(ctx, testInstance, created.ID, "000111")
	require.NoError(t, err)

	_, err = cmds.CheckHumanTOTP(ctx, testInstance, created.ID, "999999")
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthenticated(err))
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.mfa.otp.check.failed"), types[len(types)-1])

	_, err = cmds.CheckHumanTOTP(ctx, testInstance, created.ID, "000111")
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.mfa.otp.check.succeeded"), types[len(types)-1])

	_, err = cmds.RemoveHumanTOTP(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.RemoveHumanTOTP(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestHumanOTPSMSRequiresVerifiedPhone(t *testing.T) {
	cmds, _ := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.AddHumanOTPSMS(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "USER-MFA-001", appErr.Code)
}

func TestHumanOTPSMSCheck(t *testing.T) {
	cmds, store := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456"}))
	ctx := context.Background()

	userID := verifiedPhoneUser(t, cmds)
	_, err := cmds.AddHumanOTPSMS(ctx, testInstance, userID)
	require.NoError(t, err)
	_, err = cmds.AddHumanOTPSMS(ctx, testInstance, userID)
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))

	// Checks without an issued code fail closed.
	_, err = cmds.CheckHumanOTPSMS(ctx, testInstance, userID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.SendHumanOTPSMSCode(ctx, testInstance, userID)
	require.NoError(t, err)

	_, err = cmds.CheckHumanOTPSMS(ctx, testInstance, userID, "000000")
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthenticated(err))
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, userID)
	assert.Equal(t, eventstore.EventType("user.human.otp.sms.check.failed"), types[len(types)-1])

	_, err = cmds.CheckHumanOTPSMS(ctx, testInstance, userID, "123456")
	require.NoError(t, err)

	_, err = cmds.RemoveHumanOTPSMS(ctx, testInstance, userID)
	require.NoError(t, err)
	_, err = cmds.SendHumanOTPSMSCode(ctx, testInstance, userID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestHumanOTPCheckLockout(t *testing.T) {
	cmds, store := newEngine(t,
		command.WithCodeGenerator(fixedCodes{otp: "123456"}),
		command.WithPasswordLockout(domain.PasswordLockoutPolicy{MaxPasswordAttempts: 10, MaxOTPAttempts: 2}),
	)
	ctx := context.Background()

	userID := verifiedPhoneUser(t, cmds)
	_, err := cmds.AddHumanOTPSMS(ctx, testInstance, userID)
	require.NoError(t, err)
	_, err = cmds.SendHumanOTPSMSCode(ctx, testInstance, userID)
	require.NoError(t, err)

	_, err = cmds.CheckHumanOTPSMS(ctx, testInstance, userID, "000000")
	require.Error(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, userID)
	assert.NotContains(t, types, events.UserLockedType)

	// The second failed attempt reaches the limit and locks the user in the
	// same push.
	_, err = cmds.CheckHumanOTPSMS(ctx, testInstance, userID, "000000")
	require.Error(t, err)
	assert.True(t, apperror.IsUnauthenticated(err))
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeUser, userID)
	assert.Equal(t, events.UserLockedType, types[len(types)-1])

	_, err = cmds.LockUser(ctx, testInstance, userID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestHumanOTPEmailRequiresVerifiedEmail(t *testing.T) {
	cmds, _ := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.AddHumanOTPEmail(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.ResendHumanEmailCode(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)

	_, err = cmds.AddHumanOTPEmail(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.SendHumanOTPEmailCode(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.CheckHumanOTPEmail(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)

	_, err = cmds.RemoveHumanOTPEmail(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.RemoveHumanOTPEmail(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestHumanU2FLifecycle(t *testing.T) {
	cmds, store := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456", token: "challenge-token"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	registration, err := cmds.AddHumanU2F(ctx, testInstance, created.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, registration.TokenID)
	assert.Equal(t, "challenge-token", registration.Challenge)

	_, err = cmds.VerifyHumanU2F(ctx, testInstance, created.ID, events.HumanWebAuthNTokenVerified{TokenID: "no-such-token"})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	verified := events.HumanWebAuthNTokenVerified{TokenID: registration.TokenID, TokenName: "yubikey"}
	_, err = cmds.VerifyHumanU2F(ctx, testInstance, created.ID, verified)
	require.NoError(t, err)

	_, err = cmds.VerifyHumanU2F(ctx, testInstance, created.ID, verified)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.RemoveHumanU2F(ctx, testInstance, created.ID, registration.TokenID)
	require.NoError(t, err)
	_, err = cmds.RemoveHumanU2F(ctx, testInstance, created.ID, registration.TokenID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.mfa.u2f.token.removed"), types[len(types)-1])
}

func TestHumanPasswordlessTokensAreSeparate(t *testing.T) {
	cmds, _ := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456", token: "challenge-token"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	registration, err := cmds.AddHumanPasswordless(ctx, testInstance, created.ID)
	require.NoError(t, err)

	// A passwordless token is not visible to the U2F operations.
	_, err = cmds.RemoveHumanU2F(ctx, testInstance, created.ID, registration.TokenID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = cmds.VerifyHumanPasswordless(ctx, testInstance, created.ID,
		events.HumanWebAuthNTokenVerified{TokenID: registration.TokenID, TokenName: "platform"})
	require.NoError(t, err)
	_, err = cmds.RemoveHumanPasswordless(ctx, testInstance, created.ID, registration.TokenID)
	require.NoError(t, err)
}
