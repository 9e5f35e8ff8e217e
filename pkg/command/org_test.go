package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func TestOrgLifecycle(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "  ACME  ")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, uint64(1), created.Details.Sequence)
	assert.Equal(t, created.ID, created.Details.ResourceOwner)

	_, err = cmds.ChangeOrg(ctx, testInstance, created.ID, "ACME GmbH")
	require.NoError(t, err)
	_, err = cmds.DeactivateOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)
	details, err := cmds.ReactivateOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), details.Sequence)

	assert.Equal(t, []eventstore.EventType{
		"org.added",
		"org.changed",
		"org.deactivated",
		"org.reactivated",
	}, aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, created.ID))
}

func TestAddOrgValidatesName(t *testing.T) {
	cmds, _ := newEngine(t)

	_, err := cmds.AddOrg(context.Background(), testInstance, "   ")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestChangeOrgSameNameIsNoOp(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	details, err := cmds.ChangeOrg(ctx, testInstance, created.ID, "acme")
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Equal(t, uint64(1), details.Sequence)

	assert.Len(t, aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, created.ID), 1)
}

func TestChangeOrgNotFound(t *testing.T) {
	cmds, _ := newEngine(t)

	_, err := cmds.ChangeOrg(context.Background(), testInstance, "missing", "acme")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrgStateTransitionsAreGuarded(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	// Reactivating an active org is rejected.
	_, err = cmds.ReactivateOrg(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.DeactivateOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.DeactivateOrg(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ORG-004", appErr.Code)
}

func TestRemoveOrgReleasesDomainClaims(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	first, err := cmds.AddOrg(ctx, testInstance, "first")
	require.NoError(t, err)
	_, err = cmds.AddOrgDomain(ctx, testInstance, first.ID, "Example.COM")
	require.NoError(t, err)

	second, err := cmds.AddOrg(ctx, testInstance, "second")
	require.NoError(t, err)

	// Claimed by the first org.
	_, err = cmds.AddOrgDomain(ctx, testInstance, second.ID, "example.com")
	require.ErrorIs(t, err, eventstore.ErrUniqueConstraintViolated)

	_, err = cmds.RemoveOrg(ctx, testInstance, first.ID)
	require.NoError(t, err)

	_, err = cmds.AddOrgDomain(ctx, testInstance, second.ID, "example.com")
	require.NoError(t, err)
}

func TestRemovedOrgIsGone(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)
	_, err = cmds.RemoveOrg(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.ChangeOrg(ctx, testInstance, created.ID, "renamed")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTerminateAllOrgSessionsEmitsOneEvent(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	_, err = cmds.TerminateAllOrgSessions(ctx, testInstance, created.ID, "security incident")
	require.NoError(t, err)

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, created.ID)
	assert.Equal(t, eventstore.EventType("org.sessions.terminated"), types[len(types)-1])
}
