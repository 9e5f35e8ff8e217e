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

func newProjectWithRoles(t *testing.T, cmds *command.Commands, roles ...string) string {
	t.Helper()
	ctx := context.Background()
	created, err := cmds.AddProject(ctx, testInstance, "org-1", "crm", true, false)
	require.NoError(t, err)
	for _, role := range roles {
		_, err := cmds.AddProjectRole(ctx, testInstance, created.ID, role, role, "")
		require.NoError(t, err)
	}
	return created.ID
}

func TestProjectRoleCatalog(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	projectID := newProjectWithRoles(t, cmds, "reader")

	_, err := cmds.AddProjectRole(ctx, testInstance, projectID, "reader", "Reader", "")
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PROJECT-ROLE-002", appErr.Code)
}

func TestAddProjectGrantRequiresRoleSubset(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	projectID := newProjectWithRoles(t, cmds, "reader", "writer")

	_, err := cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"reader", "admin"})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "PROJECT-GRANT-001", appErr.Code)

	grant, err := cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"reader"})
	require.NoError(t, err)
	require.NotEmpty(t, grant.GrantID)

	// One grant per granted org.
	_, err = cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"writer"})
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))
}

func TestChangeProjectGrantSameRoleSetIsNoOp(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	projectID := newProjectWithRoles(t, cmds, "reader", "writer")
	grant, err := cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"reader", "writer"})
	require.NoError(t, err)

	before := len(aggregateEventTypes(t, store, eventstore.AggregateTypeProject, projectID))

	// Order does not matter for the comparison.
	details, err := cmds.ChangeProjectGrant(ctx, testInstance, projectID, grant.GrantID, []string{"writer", "reader"})
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.Len(t, aggregateEventTypes(t, store, eventstore.AggregateTypeProject, projectID), before)

	_, err = cmds.ChangeProjectGrant(ctx, testInstance, projectID, grant.GrantID, []string{"reader"})
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeProject, projectID)
	require.Len(t, types, before+1)
	assert.Equal(t, eventstore.EventType("project.grant.changed"), types[len(types)-1])
}

func TestProjectGrantMemberRolesMustExist(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	projectID := newProjectWithRoles(t, cmds, "reader")
	grant, err := cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"reader"})
	require.NoError(t, err)

	_, err = cmds.AddProjectGrantMember(ctx, testInstance, projectID, grant.GrantID, "user-1", []string{"PROJECT_GRANT_OWNER"})
	require.NoError(t, err)

	before := len(aggregateEventTypes(t, store, eventstore.AggregateTypeProject, projectID))

	// Same role set again is a no-op.
	_, err = cmds.ChangeProjectGrantMember(ctx, testInstance, projectID, grant.GrantID, "user-1", []string{"PROJECT_GRANT_OWNER"})
	require.NoError(t, err)
	assert.Len(t, aggregateEventTypes(t, store, eventstore.AggregateTypeProject, projectID), before)

	_, err = cmds.RemoveProjectGrantMember(ctx, testInstance, projectID, grant.GrantID, "user-1")
	require.NoError(t, err)
}

func TestRemoveProjectRoleInUseByGrant(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	projectID := newProjectWithRoles(t, cmds, "reader", "writer")
	_, err := cmds.AddProjectGrant(ctx, testInstance, projectID, "org-2", []string{"reader"})
	require.NoError(t, err)

	// Removing an unused role works.
	_, err = cmds.RemoveProjectRole(ctx, testInstance, projectID, "writer")
	require.NoError(t, err)
}

func TestDeactivateProjectGuards(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddProject(ctx, testInstance, "org-1", "crm", false, false)
	require.NoError(t, err)

	_, err = cmds.DeactivateProject(ctx, testInstance, created.ID)
	require.NoError(t, err)
	_, err = cmds.DeactivateProject(ctx, testInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))

	_, err = cmds.ReactivateProject(ctx, testInstance, created.ID)
	require.NoError(t, err)
}
