package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/command"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func testHuman(username string) command.AddHuman {
	return command.AddHuman{
		Username:  username,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	}
}

func TestAddHumanClaimsUsernamePerOrg(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.ErrorIs(t, err, eventstore.ErrUniqueConstraintViolated)
	var constraintErr *eventstore.UniqueConstraintError
	require.True(t, errors.As(err, &constraintErr))
	assert.Equal(t, "USER-003", constraintErr.ErrorCode)

	// The same username is free in another org.
	_, err = cmds.AddHuman(ctx, testInstance, "org-2", testHuman("ada"))
	require.NoError(t, err)
}

func TestAddHumanValidatesInput(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		human command.AddHuman
	}{
		{"empty username", command.AddHuman{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}},
		{"empty first name", command.AddHuman{Username: "ada", LastName: "Lovelace", Email: "ada@example.com"}},
		{"empty last name", command.AddHuman{Username: "ada", FirstName: "Ada", Email: "ada@example.com"}},
		{"malformed email", command.AddHuman{Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "not-an-email"}},
		{"malformed language", command.AddHuman{Username: "ada", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Language: "no such tag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cmds.AddHuman(ctx, testInstance, "org-1", tt.human)
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidArgument(err))
		})
	}
}

func TestChangeUsernameReleasesOldClaim(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.ChangeUsername(ctx, testInstance, created.ID, "countess")
	require.NoError(t, err)

	// The old username is free again.
	_, err = cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	// The new one is taken.
	_, err = cmds.AddHuman(ctx, testInstance, "org-1", testHuman("countess"))
	require.ErrorIs(t, err, eventstore.ErrUniqueConstraintViolated)
}

func TestAddMachineUser(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddMachine(ctx, testInstance, "org-1", command.AddMachine{
		Username: "ci-runner",
		Name:     "CI Runner",
	})
	require.NoError(t, err)

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, []eventstore.EventType{"user.machine.added"}, types)

	_, err = cmds.AddMachine(ctx, testInstance, "org-1", command.AddMachine{Username: "broken"})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestUserLockLifecycle(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.LockUser(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.LockUser(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.UnlockUser(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.UnlockUser(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
}

func TestRemoveUserReleasesUsername(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)
	_, err = cmds.RemoveUser(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.LockUser(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestTerminateAllUserSessionsEmitsOneEvent(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddHuman(ctx, testInstance, "org-1", testHuman("ada"))
	require.NoError(t, err)

	_, err = cmds.TerminateAllUserSessions(ctx, testInstance, created.ID, "password leaked")
	require.NoError(t, err)

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeUser, created.ID)
	assert.Equal(t, eventstore.EventType("user.sessions.terminated"), types[len(types)-1])
}

func TestCommandsRecordEditor(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := command.WithEditor(context.Background(), "admin-1")

	created, err := cmds.AddOrg(ctx, testInstance, "acme")
	require.NoError(t, err)

	events, err := store.Query(context.Background(),
		eventstore.NewFilter(testInstance).Aggregate(eventstore.AggregateTypeOrg, created.ID))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "admin-1", events[0].EditorUser)
}
