package command

import (
	"context"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// grantMemberKey identifies a member within one grant.
type grantMemberKey struct {
	GrantID string
	UserID  string
}

// ProjectGrantWriteModel reduces the project's grants and grant members on
// top of the role catalog.
type ProjectGrantWriteModel struct {
	ProjectWriteModel

	GrantStates   map[string]domain.ProjectGrantState
	GrantOrgs     map[string]string
	GrantRoleKeys map[string][]string
	MemberRoles   map[grantMemberKey][]string
}

func NewProjectGrantWriteModel(instanceID, projectID string) *ProjectGrantWriteModel {
	return &ProjectGrantWriteModel{
		ProjectWriteModel: *NewProjectWriteModel(instanceID, projectID),
		GrantStates:       map[string]domain.ProjectGrantState{},
		GrantOrgs:         map[string]string{},
		GrantRoleKeys:     map[string][]string{},
		MemberRoles:       map[grantMemberKey][]string{},
	}
}

func (wm *ProjectGrantWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.ProjectGrantAddedType:
			var payload events.ProjectGrantAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.GrantStates[payload.GrantID] = domain.ProjectGrantStateActive
			wm.GrantOrgs[payload.GrantID] = payload.GrantedOrgID
			wm.GrantRoleKeys[payload.GrantID] = payload.RoleKeys
		case events.ProjectGrantChangedType:
			var payload events.ProjectGrantChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.GrantRoleKeys[payload.GrantID] = payload.RoleKeys
			}
		case events.ProjectGrantDeactivatedType:
			var payload events.ProjectGrantStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.GrantStates[payload.GrantID] = domain.ProjectGrantStateInactive
			}
		case events.ProjectGrantReactivatedType:
			var payload events.ProjectGrantStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.GrantStates[payload.GrantID] = domain.ProjectGrantStateActive
			}
		case events.ProjectGrantRemovedType:
			var payload events.ProjectGrantStateChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			delete(wm.GrantStates, payload.GrantID)
			delete(wm.GrantOrgs, payload.GrantID)
			delete(wm.GrantRoleKeys, payload.GrantID)
			for key := range wm.MemberRoles {
				if key.GrantID == payload.GrantID {
					delete(wm.MemberRoles, key)
				}
			}
		case events.ProjectGrantMemberAddedType:
			var payload events.ProjectGrantMemberAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.MemberRoles[grantMemberKey{payload.GrantID, payload.UserID}] = payload.Roles
			}
		case events.ProjectGrantMemberChangedType:
			var payload events.ProjectGrantMemberChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.MemberRoles[grantMemberKey{payload.GrantID, payload.UserID}] = payload.Roles
			}
		case events.ProjectGrantMemberRemovedType:
			var payload events.ProjectGrantMemberRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.MemberRoles, grantMemberKey{payload.GrantID, payload.UserID})
			}
		}
	}
	// The embedded model folds the project lifecycle, roles and app
	// identities and consumes the queue.
	wm.ProjectWriteModel.Reduce()
}

// grantForOrg returns the grant ID for a granted org, if any.
func (wm *ProjectGrantWriteModel) grantForOrg(orgID string) (string, bool) {
	for grantID, granted := range wm.GrantOrgs {
		if granted == orgID {
			return grantID, true
		}
	}
	return "", false
}

// CreatedProjectGrant is the result of AddProjectGrant.
type CreatedProjectGrant struct {
	GrantID string
	Details *Details
}

// AddProjectGrant shares a subset of the project's roles with another org.
func (c *Commands) AddProjectGrant(ctx context.Context, instanceID, projectID, grantedOrgID string, roleKeys []string) (*CreatedProjectGrant, error) {
	if grantedOrgID == "" {
		return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-003", "granted org id must not be empty")
	}
	grantID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.grant.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if !wm.hasRoles(roleKeys) {
			return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-001", "role keys must be project roles")
		}
		if _, ok := wm.grantForOrg(grantedOrgID); ok {
			return nil, apperror.AlreadyExists(nil, "PROJECT-GRANT-002", "project is already granted to org")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantAddedType,
			Payload:         events.ProjectGrantAdded{GrantID: grantID, GrantedOrgID: grantedOrgID, RoleKeys: roleKeys},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedProjectGrant{GrantID: grantID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeProjectGrant replaces the granted role keys. Same set is a no-op.
func (c *Commands) ChangeProjectGrant(ctx context.Context, instanceID, projectID, grantID string, roleKeys []string) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "project.grant.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.GrantStates[grantID]; !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-004", "project grant not found")
		}
		if !wm.hasRoles(roleKeys) {
			return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-001", "role keys must be project roles")
		}
		if sameStringSet(wm.GrantRoleKeys[grantID], roleKeys) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantChangedType,
			Payload:         events.ProjectGrantChanged{GrantID: grantID, RoleKeys: roleKeys},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// DeactivateProjectGrant suspends an active grant.
func (c *Commands) DeactivateProjectGrant(ctx context.Context, instanceID, projectID, grantID string) (*Details, error) {
	return c.changeProjectGrantState(ctx, "project.grant.deactivate", instanceID, projectID, grantID,
		domain.ProjectGrantStateActive, events.ProjectGrantDeactivatedType, "PROJECT-GRANT-005", "project grant is not active")
}

// ReactivateProjectGrant resumes an inactive grant.
func (c *Commands) ReactivateProjectGrant(ctx context.Context, instanceID, projectID, grantID string) (*Details, error) {
	return c.changeProjectGrantState(ctx, "project.grant.reactivate", instanceID, projectID, grantID,
		domain.ProjectGrantStateInactive, events.ProjectGrantReactivatedType, "PROJECT-GRANT-006", "project grant is not inactive")
}

func (c *Commands) changeProjectGrantState(ctx context.Context, name, instanceID, projectID, grantID string, required domain.ProjectGrantState, eventType eventstore.EventType, code, message string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		state, ok := wm.GrantStates[grantID]
		if !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-004", "project grant not found")
		}
		if state != required {
			return nil, apperror.FailedPrecondition(nil, code, message)
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         events.ProjectGrantStateChanged{GrantID: grantID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveProjectGrant removes a grant and its members.
func (c *Commands) RemoveProjectGrant(ctx context.Context, instanceID, projectID, grantID string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.grant.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.GrantStates[grantID]; !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-004", "project grant not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantRemovedType,
			Payload:         events.ProjectGrantStateChanged{GrantID: grantID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// AddProjectGrantMember grants a user roles within one project grant. The
// roles must be a subset of the grant's role keys.
func (c *Commands) AddProjectGrantMember(ctx context.Context, instanceID, projectID, grantID, userID string, roles []string) (*Details, error) {
	if userID == "" {
		return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-MEMBER-002", "user id must not be empty")
	}
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-MEMBER-003", "at least one role is required")
	}

	pushed, err := c.exec(ctx, "project.grant.member.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.GrantStates[grantID]; !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-004", "project grant not found")
		}
		if !subset(roles, wm.GrantRoleKeys[grantID]) {
			return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-MEMBER-001", "roles must be granted role keys")
		}
		if _, ok := wm.MemberRoles[grantMemberKey{grantID, userID}]; ok {
			return nil, apperror.AlreadyExists(nil, "PROJECT-GRANT-MEMBER-004", "user is already a grant member")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantMemberAddedType,
			Payload:         events.ProjectGrantMemberAdded{GrantID: grantID, UserID: userID, Roles: roles},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeProjectGrantMember replaces a grant member's roles. Same role set is
// a no-op.
func (c *Commands) ChangeProjectGrantMember(ctx context.Context, instanceID, projectID, grantID, userID string, roles []string) (*Details, error) {
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-MEMBER-003", "at least one role is required")
	}

	var details *Details
	_, err := c.exec(ctx, "project.grant.member.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		current, ok := wm.MemberRoles[grantMemberKey{grantID, userID}]
		if !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-MEMBER-005", "grant member not found")
		}
		if !subset(roles, wm.GrantRoleKeys[grantID]) {
			return nil, apperror.InvalidArgument(nil, "PROJECT-GRANT-MEMBER-001", "roles must be granted role keys")
		}
		if sameStringSet(current, roles) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantMemberChangedType,
			Payload:         events.ProjectGrantMemberChanged{GrantID: grantID, UserID: userID, Roles: roles},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
		if err != nil {
			return nil, err
		}
		details = detailsFromEvents(pushed)
		return pushed, nil
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// RemoveProjectGrantMember revokes a grant membership.
func (c *Commands) RemoveProjectGrantMember(ctx context.Context, instanceID, projectID, grantID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.grant.member.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadProjectGrants(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.MemberRoles[grantMemberKey{grantID, userID}]; !ok {
			return nil, apperror.NotFound(nil, "PROJECT-GRANT-MEMBER-005", "grant member not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectGrantMemberRemovedType,
			Payload:         events.ProjectGrantMemberRemoved{GrantID: grantID, UserID: userID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadProjectGrants(ctx context.Context, instanceID, projectID string) (*ProjectGrantWriteModel, error) {
	wm := NewProjectGrantWriteModel(instanceID, projectID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if !wm.State.Exists() {
		return nil, apperror.NotFound(nil, "PROJECT-004", "project not found")
	}
	return wm, nil
}

// subset reports whether every element of sub is in super.
func subset(sub, super []string) bool {
	set := make(map[string]struct{}, len(super))
	for _, s := range super {
		set[s] = struct{}{}
	}
	for _, s := range sub {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
