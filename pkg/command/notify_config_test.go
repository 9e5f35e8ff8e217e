package command_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func testSMTPConfig(description string) command.AddSMTPConfig {
	return command.AddSMTPConfig{
		Description:   description,
		Host:          "smtp.example.com:587",
		User:          "mailer",
		Password:      "hunter2",
		TLS:           true,
		SenderAddress: "noreply@example.com",
		SenderName:    "Auriga",
	}
}

func TestActivateSMTPConfigIsExclusive(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	first, err := cmds.AddSMTPConfig(ctx, testInstance, "org-1", testSMTPConfig("primary"))
	require.NoError(t, err)
	second, err := cmds.AddSMTPConfig(ctx, testInstance, "org-1", testSMTPConfig("fallback"))
	require.NoError(t, err)

	_, err = cmds.ActivateSMTPConfig(ctx, testInstance, "org-1", first.ID)
	require.NoError(t, err)

	// Activating the second deactivates the first in the same push.
	_, err = cmds.ActivateSMTPConfig(ctx, testInstance, "org-1", second.ID)
	require.NoError(t, err)

	events, err := store.Query(ctx, eventstore.NewFilter(testInstance).Types("org.smtp.*"))
	require.NoError(t, err)
	var types []eventstore.EventType
	for _, event := range events {
		types = append(types, event.Type)
	}
	assert.Equal(t, []eventstore.EventType{
		"org.smtp.config.added",
		"org.smtp.config.added",
		"org.smtp.config.activated",
		"org.smtp.config.deactivated",
		"org.smtp.config.activated",
	}, types)
}

func TestActivateSMTPConfigTwiceIsNoOp(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddSMTPConfig(ctx, testInstance, "org-1", testSMTPConfig("primary"))
	require.NoError(t, err)

	_, err = cmds.ActivateSMTPConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)
	details, err := cmds.ActivateSMTPConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)
	require.NotNil(t, details)

	events, err := store.Query(ctx, eventstore.NewFilter(testInstance).Types("org.smtp.*"))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestDeactivateSMTPConfigRequiresActive(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddSMTPConfig(ctx, testInstance, "org-1", testSMTPConfig("primary"))
	require.NoError(t, err)

	_, err = cmds.DeactivateSMTPConfig(ctx, testInstance, "org-1", created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestAddSMTPConfigValidation(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	invalid := testSMTPConfig("bad")
	invalid.Host = " "
	_, err := cmds.AddSMTPConfig(ctx, testInstance, "org-1", invalid)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	invalid = testSMTPConfig("bad")
	invalid.SenderAddress = "not-an-email"
	_, err = cmds.AddSMTPConfig(ctx, testInstance, "org-1", invalid)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestSMSConfigLifecycle(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddTwilioSMSConfig(ctx, testInstance, "org-1", "twilio", "AC123", "token", "+41791234567")
	require.NoError(t, err)

	_, err = cmds.ActivateSMSConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)
	_, err = cmds.DeactivateSMSConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)
	_, err = cmds.RemoveSMSConfig(ctx, testInstance, "org-1", created.ID)
	require.NoError(t, err)

	_, err = cmds.ActivateSMSConfig(ctx, testInstance, "org-1", created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
