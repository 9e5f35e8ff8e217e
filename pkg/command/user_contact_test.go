package command_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/eventstore"
	"github.com/auriga-id/auriga/pkg/notification"
)

// fixedCodes is a deterministic crypto.CodeGenerator for tests.
type fixedCodes struct {
	otp   string
	token string
}

func (g fixedCodes) OTP6() (string, error)    { return g.otp, nil }
func (g fixedCodes) Token32() (string, error) { return g.token, nil }

// captureNotifier records outbound messages instead of delivering them.
type captureNotifier struct {
	emails []notification.Email
	sms    []notification.SMS
}

func (n *captureNotifier) SendEmail(_ context.Context, email notification.Email) error {
	n.emails = append(n.emails, email)
	return nil
}

func (n *captureNotifier) SendSMS(_ context.Context, sms notification.SMS) error {
	n.sms = append(n.sms, sms)
	return nil
}

func TestVerifyHumanEmail(t *testing.T) {
	notifier := &captureNotifier{}
	cmds, store := newEngine(t,
		command.WithCodeGenerator(fixedCodes{otp: "123456"}),
		command.WithNotifier(notifier),
	)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	// No code has been issued yet.
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.ChangeHumanEmail(ctx, testInstance, created.ID, "countess@example.com")
	require.NoError(t, err)
	require.Len(t, notifier.emails, 1)
	assert.Equal(t, "countess@example.com", notifier.emails[0].Recipient)
	assert.Contains(t, notifier.emails[0].Body, "123456")

	// A wrong code is recorded on the aggregate and rejected.
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "654321")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "USER-EMAIL-003", appErr.Code)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.email.verification.failed"), types[len(types)-1])

	// The code stays usable after a failed attempt.
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.email.verified"), types[len(types)-1])

	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestChangeHumanEmailNoOpWhenVerified(t *testing.T) {
	cmds, store := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)
	_, err = cmds.ChangeHumanEmail(ctx, testInstance, created.ID, "countess@example.com")
	require.NoError(t, err)
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)

	before := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	_, err = cmds.ChangeHumanEmail(ctx, testInstance, created.ID, "Countess@Example.com")
	require.NoError(t, err)
	after := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, before, after)
}

func TestVerifyHumanEmailRejectsExpiredCode(t *testing.T) {
	cmds, _ := newEngine(t,
		command.WithCodeGenerator(fixedCodes{otp: "123456"}),
		command.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }),
	)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)
	_, err = cmds.ChangeHumanEmail(ctx, testInstance, created.ID, "countess@example.com")
	require.NoError(t, err)

	// The default code lifetime is one hour; the clock sits two hours ahead.
	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "USER-EMAIL-004", appErr.Code)
}

func TestResendHumanEmailCode(t *testing.T) {
	notifier := &captureNotifier{}
	cmds, _ := newEngine(t,
		command.WithCodeGenerator(fixedCodes{otp: "123456"}),
		command.WithNotifier(notifier),
	)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.ResendHumanEmailCode(ctx, testInstance, created.ID)
	require.NoError(t, err)
	require.Len(t, notifier.emails, 1)

	_, err = cmds.VerifyHumanEmail(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)

	_, err = cmds.ResendHumanEmailCode(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestVerifyHumanPhone(t *testing.T) {
	notifier := &captureNotifier{}
	cmds, store := newEngine(t,
		command.WithCodeGenerator(fixedCodes{otp: "123456"}),
		command.WithNotifier(notifier),
	)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = cmds.ChangeHumanPhone(ctx, testInstance, created.ID, "+41791234567")
	require.NoError(t, err)
	require.Len(t, notifier.sms, 1)
	assert.Equal(t, "+41791234567", notifier.sms[0].Recipient)

	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "000000")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.phone.verification.failed"), types[len(types)-1])

	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "123456")
	require.NoError(t, err)

	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestRemoveHumanPhone(t *testing.T) {
	cmds, store := newEngine(t, command.WithCodeGenerator(fixedCodes{otp: "123456"}))
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.RemoveHumanPhone(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = cmds.ChangeHumanPhone(ctx, testInstance, created.ID, "+41791234567")
	require.NoError(t, err)
	_, err = cmds.RemoveHumanPhone(ctx, testInstance, created.ID)
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.human.phone.removed"), types[len(types)-1])

	_, err = cmds.VerifyHumanPhone(ctx, testInstance, created.ID, "123456")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
