package command

import (
	"context"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// OrgMemberWriteModel reduces the membership of one user in one org.
type OrgMemberWriteModel struct {
	eventstore.WriteModel

	OrgState domain.OrgState
	UserID   string
	Roles    []string
	IsMember bool
}

func NewOrgMemberWriteModel(instanceID, orgID, userID string) *OrgMemberWriteModel {
	return &OrgMemberWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, orgID),
		UserID:     userID,
	}
}

func (wm *OrgMemberWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.OrgAddedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgDeactivatedType:
			wm.OrgState = domain.OrgStateInactive
		case events.OrgReactivatedType:
			wm.OrgState = domain.OrgStateActive
		case events.OrgRemovedType:
			wm.OrgState = domain.OrgStateRemoved
		case events.OrgMemberAddedType:
			var payload events.OrgMemberAdded
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.IsMember = true
				wm.Roles = payload.Roles
			}
		case events.OrgMemberChangedType:
			var payload events.OrgMemberChanged
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.Roles = payload.Roles
			}
		case events.OrgMemberRemovedType:
			var payload events.OrgMemberRemoved
			if err := event.UnmarshalPayload(&payload); err == nil && payload.UserID == wm.UserID {
				wm.IsMember = false
				wm.Roles = nil
			}
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *OrgMemberWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

// AddOrgMember grants a user org-level roles.
func (c *Commands) AddOrgMember(ctx context.Context, instanceID, orgID, userID string, roles []string) (*Details, error) {
	if userID == "" {
		return nil, apperror.InvalidArgument(nil, "ORG-MEMBER-004", "user id must not be empty")
	}
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "ORG-MEMBER-005", "at least one role is required")
	}

	pushed, err := c.exec(ctx, "org.member.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgMemberWriteModel(instanceID, orgID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.OrgState.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
		}
		if wm.IsMember {
			return nil, apperror.AlreadyExists(nil, "ORG-MEMBER-001", "user is already an org member")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgMemberAddedType,
			Payload:         events.OrgMemberAdded{UserID: userID, Roles: roles},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeOrgMember replaces a member's roles. Same role set is a no-op.
func (c *Commands) ChangeOrgMember(ctx context.Context, instanceID, orgID, userID string, roles []string) (*Details, error) {
	if len(roles) == 0 {
		return nil, apperror.InvalidArgument(nil, "ORG-MEMBER-005", "at least one role is required")
	}

	var details *Details
	_, err := c.exec(ctx, "org.member.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgMemberWriteModel(instanceID, orgID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.OrgState.Exists() || !wm.IsMember {
			return nil, apperror.NotFound(nil, "ORG-MEMBER-002", "org member not found")
		}
		if sameStringSet(wm.Roles, roles) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgMemberChangedType,
			Payload:         events.OrgMemberChanged{UserID: userID, Roles: roles},
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

// RemoveOrgMember revokes a membership.
func (c *Commands) RemoveOrgMember(ctx context.Context, instanceID, orgID, userID string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.member.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgMemberWriteModel(instanceID, orgID, userID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.OrgState.Exists() || !wm.IsMember {
			return nil, apperror.NotFound(nil, "ORG-MEMBER-003", "org member not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgMemberRemovedType,
			Payload:         events.OrgMemberRemoved{UserID: userID},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
