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
)

func TestAddInstanceActionValidatesInput(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		id     string
		action string
		script string
	}{
		{"empty id", "", "log-request", "console.log(ctx)"},
		{"empty name", "action-1", "  ", "console.log(ctx)"},
		{"empty script", "action-1", "log-request", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cmds.AddInstanceActionWithID(ctx, testInstance, tt.id, tt.action, tt.script, time.Second, false)
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidArgument(err))
		})
	}
}

func TestAddInstanceActionWithIDRejectsDuplicate(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddInstanceActionWithID(ctx, testInstance, "action-1", "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)

	_, err = cmds.AddInstanceActionWithID(ctx, testInstance, "action-1", "other name", "other script", time.Second, true)
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "ACTION-004", appErr.Code)
}

func TestInstanceActionStateLifecycle(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddInstanceAction(ctx, testInstance, "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)

	// New actions start active; reactivating one is a precondition failure.
	_, err = cmds.ReactivateInstanceAction(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.DeactivateInstanceAction(ctx, testInstance, created.ID)
	require.NoError(t, err)

	_, err = cmds.DeactivateInstanceAction(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.ReactivateInstanceAction(ctx, testInstance, created.ID)
	require.NoError(t, err)

	types := aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	assert.Equal(t, []eventstore.EventType{
		"instance.action.added",
		"instance.action.deactivated",
		"instance.action.reactivated",
	}, types)

	_, err = cmds.DeactivateInstanceAction(ctx, testInstance, "no-such-action")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestChangeInstanceAction(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddInstanceAction(ctx, testInstance, "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)

	// Setting the current values is a no-op.
	name := "log-request"
	_, err = cmds.ChangeInstanceAction(ctx, testInstance, created.ID, command.ChangeInstanceAction{Name: &name})
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	require.Len(t, types, 1)

	script := "console.warn(ctx)"
	allowedToFail := true
	_, err = cmds.ChangeInstanceAction(ctx, testInstance, created.ID, command.ChangeInstanceAction{
		Script:        &script,
		AllowedToFail: &allowedToFail,
	})
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	assert.Equal(t, eventstore.EventType("instance.action.changed"), types[len(types)-1])

	empty := ""
	_, err = cmds.ChangeInstanceAction(ctx, testInstance, created.ID, command.ChangeInstanceAction{Script: &empty})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
}

func TestSetInstanceExecution(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	first, err := cmds.AddInstanceAction(ctx, testInstance, "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)
	second, err := cmds.AddInstanceAction(ctx, testInstance, "enrich-claims", "api.v1.claims.set()", time.Second, false)
	require.NoError(t, err)

	_, err = cmds.SetInstanceExecution(ctx, testInstance, "", []string{first.ID})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{first.ID, "no-such-action"})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{first.ID, second.ID})
	require.NoError(t, err)

	// Same target list in the same order is a no-op.
	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{first.ID, second.ID})
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	require.Len(t, types, 3)

	// Targets are ordered; a reordered list is a real change.
	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{second.ID, first.ID})
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	require.Len(t, types, 4)
	assert.Equal(t, eventstore.EventType("instance.execution.set"), types[len(types)-1])
}

func TestRemoveInstanceExecution(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddInstanceAction(ctx, testInstance, "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)
	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{created.ID})
	require.NoError(t, err)

	_, err = cmds.RemoveInstanceExecution(ctx, testInstance, "request/response")
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	assert.Equal(t, eventstore.EventType("instance.execution.removed"), types[len(types)-1])

	_, err = cmds.RemoveInstanceExecution(ctx, testInstance, "request/response")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRemoveInstanceActionKeepsExecutions(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddInstanceAction(ctx, testInstance, "log-request", "console.log(ctx)", time.Second, false)
	require.NoError(t, err)
	_, err = cmds.SetInstanceExecution(ctx, testInstance, "request/response", []string{created.ID})
	require.NoError(t, err)

	_, err = cmds.RemoveInstanceAction(ctx, testInstance, created.ID)
	require.NoError(t, err)

	// The execution survives; resolution skips the missing target. Removing
	// it afterwards still works.
	_, err = cmds.RemoveInstanceExecution(ctx, testInstance, "request/response")
	require.NoError(t, err)

	_, err = cmds.RemoveInstanceAction(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
