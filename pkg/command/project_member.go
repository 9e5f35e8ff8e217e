package command

import (
	"context"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// ProjectMemberWriteModel reduces the membership of one user in one project.
type ProjectMemberWriteModel struct {
	eventstore.WriteModel

	ProjectState domain.ProjectState
	UserID       string
	Roles        []string
	IsMember     bool
}

func NewProjectMemberWriteModel(instanceID, projectID, userID string) *ProjectMemberWriteModel {
	return &ProjectMemberWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, projectID),
		UserID:     userID,
	}
}

func (wm *ProjectMemberWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.ProjectAddedType:
			wm.ProjectState = domain.ProjectStateActive
		case events.ProjectDeactivatedType:
			wm.ProjectState = domain.ProjectStateInactive
		case events.ProjectReactivatedType:
			wm.ProjectState = domain.ProjectStateActive
		case events.ProjectRemovedType:
			wm.ProjectState = domain.ProjectStateRemoved
		case events.ProjectMemberAddedType:
			var payload events.ProjectMemberAdded
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.IsMember = true
				wm.Roles = payload.Roles
			}
		case events.ProjectMemberChangedType:
			var payload events.ProjectMemberChanged
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.Roles = payload.Roles
			}
		case events.ProjectMemberRemovedType:
			var payload events.ProjectMemberRemoved
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.IsMember = false
				wm.Roles = nil
			}
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *ProjectMemberWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeProject, ID: wm.AggregateID}
}

// AddProjectMember grants a user project-level roles.
func (c *Commands) AddProjectMember(ctx context.Context, instanceID, projectID, userID string, roles []string) (*Details, error) {
	if userID == "" {
		return nil, apperror.InvalidArgument(nil, "PROJECT-MEMBER-004", "user id must not be empty")
	}
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "PROJECT-MEMBER-005", "at least one role is required")
	}

	pushed, err := c.exec(ctx, "project.member.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectMemberWriteModel(instanceID, projectID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.ProjectState.Exists() {
			return nil, apperror.NotFound(nil, "PROJECT-004", "project not found")
		}
		if wm.IsMember {
			return nil, apperror.AlreadyExists(nil, "PROJECT-MEMBER-001", "user is already a project member")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectMemberAddedType,
			Payload:         events.ProjectMemberAdded{UserID: userID, Roles: roles},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeProjectMember replaces a member's roles. Same role set is a no-op.
func (c *Commands) ChangeProjectMember(ctx context.Context, instanceID, projectID, userID string, roles []string) (*Details, error) {
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "PROJECT-MEMBER-005", "at least one role is required")
	}

	var details *Details
	_, err := c.exec(ctx, "project.member.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectMemberWriteModel(instanceID, projectID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.ProjectState.Exists() || !wm.IsMember {
			return nil, apperror.NotFound(nil, "PROJECT-MEMBER-002", "project member not found")
		}
		if sameStringSet(wm.Roles, roles) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectMemberChangedType,
			Payload:         events.ProjectMemberChanged{UserID: userID, Roles: roles},
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

// RemoveProjectMember revokes a membership.
func (c *Commands) RemoveProjectMember(ctx context.Context, instanceID, projectID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.member.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectMemberWriteModel(instanceID, projectID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.ProjectState.Exists() || !wm.IsMember {
			return nil, apperror.NotFound(nil, "PROJECT-MEMBER-003", "project member not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectMemberRemovedType,
			Payload:         events.ProjectMemberRemoved{UserID: userID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
