package command_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func TestSessionLifecycle(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	cmds, store := newEngine(t, command.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	created, err := cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "test-agent", "client-1", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = cmds.SetSessionFactor(ctx, testInstance, created.ID, domain.AuthMethodTypePassword)
	require.NoError(t, err)

	token := "at-1"
	_, err = cmds.UpdateSession(ctx, testInstance, created.ID, command.UpdateSession{
		AccessTokenID: &token,
		AMR:           []string{"pwd"},
	})
	require.NoError(t, err)

	_, err = cmds.TerminateSession(ctx, testInstance, created.ID, "logout")
	require.NoError(t, err)

	assert.Equal(t, []eventstore.EventType{
		"session.added",
		"session.factor.set",
		"session.updated",
		"session.terminated",
	}, aggregateEventTypes(t, store, eventstore.AggregateTypeSession, created.ID))
}

func TestTerminateSessionTwiceIsNoOp(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = cmds.TerminateSession(ctx, testInstance, created.ID, "logout")
	require.NoError(t, err)

	details, err := cmds.TerminateSession(ctx, testInstance, created.ID, "logout")
	require.NoError(t, err)
	require.NotNil(t, details)

	assert.Len(t, aggregateEventTypes(t, store, eventstore.AggregateTypeSession, created.ID), 2)
}

func TestUpdateSessionNoChangesIsNoOp(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "", "", time.Hour)
	require.NoError(t, err)

	token := "at-1"
	_, err = cmds.UpdateSession(ctx, testInstance, created.ID, command.UpdateSession{AccessTokenID: &token})
	require.NoError(t, err)

	// Same token again changes nothing.
	_, err = cmds.UpdateSession(ctx, testInstance, created.ID, command.UpdateSession{AccessTokenID: &token})
	require.NoError(t, err)

	assert.Len(t, aggregateEventTypes(t, store, eventstore.AggregateTypeSession, created.ID), 2)
}

func TestTerminatedSessionRejectsFactors(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = cmds.TerminateSession(ctx, testInstance, created.ID, "logout")
	require.NoError(t, err)

	_, err = cmds.SetSessionFactor(ctx, testInstance, created.ID, domain.AuthMethodTypePassword)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestSessionValidation(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.CreateSession(ctx, testInstance, "org-1", "", "", "", time.Hour)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.TerminateSession(ctx, testInstance, "missing", "logout")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	created, err := cmds.CreateSession(ctx, testInstance, "org-1", "user-1", "", "", time.Hour)
	require.NoError(t, err)
	_, err = cmds.SetSessionFactor(ctx, testInstance, created.ID, domain.AuthMethodTypeUnspecified)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestCreateOIDCSessionValidatesPKCE(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.CreateOIDCSession(ctx, testInstance, "org-1", command.CreateOIDCSession{
		UserID:              "user-1",
		ClientID:            "client-1",
		RedirectURI:         "https://app.example.com/callback",
		Scope:               []string{"openid", "profile"},
		CodeChallenge:       "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		CodeChallengeMethod: domain.CodeChallengeMethodS256,
	})
	require.NoError(t, err)

	assert.Equal(t, []eventstore.EventType{"session.oidc.added"},
		aggregateEventTypes(t, store, eventstore.AggregateTypeSession, created.ID))

	_, err = cmds.CreateOIDCSession(ctx, testInstance, "org-1", command.CreateOIDCSession{
		UserID:   "user-1",
		ClientID: "",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}
