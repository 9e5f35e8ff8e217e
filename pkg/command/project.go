package command

import (
	"context"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// ProjectRole is the reduced state of one role on a project.
type ProjectRole struct {
	Key         string
	DisplayName string
	Group       string
}

// ProjectWriteModel reduces the project lifecycle and its role catalog.
type ProjectWriteModel struct {
	eventstore.WriteModel

	Name                 string
	ProjectRoleAssertion bool
	ProjectRoleCheck     bool
	State                domain.ProjectState
	Roles                map[string]*ProjectRole

	// App identities tracked so RemoveProject can release their claims.
	AppClientIDs map[string]string
	AppEntityIDs map[string]string
}

func NewProjectWriteModel(instanceID, projectID string) *ProjectWriteModel {
	return &ProjectWriteModel{
		WriteModel:   eventstore.NewWriteModel(instanceID, projectID),
		Roles:        map[string]*ProjectRole{},
		AppClientIDs: map[string]string{},
		AppEntityIDs: map[string]string{},
	}
}

func (wm *ProjectWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeProject, ID: wm.AggregateID}
}

func (wm *ProjectWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.ProjectAddedType:
			var payload events.ProjectAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Name = payload.Name
			wm.ProjectRoleAssertion = payload.ProjectRoleAssertion
			wm.ProjectRoleCheck = payload.ProjectRoleCheck
			wm.State = domain.ProjectStateActive
		case events.ProjectChangedType:
			var payload events.ProjectChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if payload.Name != nil {
				wm.Name = *payload.Name
			}
			if payload.ProjectRoleAssertion != nil {
				wm.ProjectRoleAssertion = *payload.ProjectRoleAssertion
			}
			if payload.ProjectRoleCheck != nil {
				wm.ProjectRoleCheck = *payload.ProjectRoleCheck
			}
		case events.ProjectDeactivatedType:
			wm.State = domain.ProjectStateInactive
		case events.ProjectReactivatedType:
			wm.State = domain.ProjectStateActive
		case events.ProjectRemovedType:
			wm.State = domain.ProjectStateRemoved
		case events.ProjectRoleAddedType:
			var payload events.ProjectRoleAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Roles[payload.Key] = &ProjectRole{Key: payload.Key, DisplayName: payload.DisplayName, Group: payload.Group}
			}
		case events.ProjectRoleChangedType:
			var payload events.ProjectRoleChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			if role, ok := wm.Roles[payload.Key]; ok {
				if payload.DisplayName != nil {
					role.DisplayName = *payload.DisplayName
				}
				if payload.Group != nil {
					role.Group = *payload.Group
				}
			}
		case events.ProjectRoleRemovedType:
			var payload events.ProjectRoleRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.Roles, payload.Key)
			}
		case events.OIDCAppAddedType:
			var payload events.OIDCAppAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.AppClientIDs[payload.AppID] = payload.ClientID
			}
		case events.APIAppAddedType:
			var payload events.APIAppAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.AppClientIDs[payload.AppID] = payload.ClientID
			}
		case events.SAMLAppAddedType:
			var payload events.SAMLAppAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.AppEntityIDs[payload.AppID] = payload.EntityID
			}
		case events.AppRemovedType:
			var payload events.AppRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.AppClientIDs, payload.AppID)
				delete(wm.AppEntityIDs, payload.AppID)
			}
		}
	}
	wm.WriteModel.Reduce()
}

// RoleKeys returns the project's role keys.
func (wm *ProjectWriteModel) RoleKeys() []string {
	keys := make([]string, 0, len(wm.Roles))
	for key := range wm.Roles {
		keys = append(keys, key)
	}
	return keys
}

func (wm *ProjectWriteModel) hasRoles(keys []string) bool {
	for _, key := range keys {
		if _, ok := wm.Roles[key]; !ok {
			return false
		}
	}
	return true
}

// CreatedProject is the result of AddProject.
type CreatedProject struct {
	ID      string
	Details *Details
}

// AddProject creates a project owned by an org.
func (c *Commands) AddProject(ctx context.Context, instanceID, orgID, name string, roleAssertion, roleCheck bool) (*CreatedProject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.InvalidArgument(nil, "PROJECT-001", "project name must not be empty")
	}
	if len(name) > domain.MaxNameLength {
		return nil, apperror.InvalidArgument(nil, "PROJECT-002", "project name must be at most 200 characters")
	}

	projectID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewProjectWriteModel(instanceID, projectID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if wm.State != domain.ProjectStateUnspecified {
			return nil, apperror.AlreadyExists(nil, "PROJECT-003", "project already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.ProjectAddedType,
			Payload: events.ProjectAdded{
				Name:                 name,
				ProjectRoleAssertion: roleAssertion,
				ProjectRoleCheck:     roleCheck,
			},
			ResourceOwner:   orgID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedProject{ID: projectID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeProject is the input of ChangeProject; nil fields keep the current
// value.
type ChangeProject struct {
	Name                 *string
	ProjectRoleAssertion *bool
	ProjectRoleCheck     *bool
}

// ChangeProject updates project settings. All fields equal is a no-op.
func (c *Commands) ChangeProject(ctx context.Context, instanceID, projectID string, change ChangeProject) (*Details, error) {
	if change.Name != nil && strings.TrimSpace(*change.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "PROJECT-001", "project name must not be empty")
	}

	var details *Details
	_, err := c.exec(ctx, "project.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		payload := events.ProjectChanged{}
		if stringChanged(wm.Name, change.Name) {
			payload.Name = change.Name
		}
		if boolChanged(wm.ProjectRoleAssertion, change.ProjectRoleAssertion) {
			payload.ProjectRoleAssertion = change.ProjectRoleAssertion
		}
		if boolChanged(wm.ProjectRoleCheck, change.ProjectRoleCheck) {
			payload.ProjectRoleCheck = change.ProjectRoleCheck
		}
		if payload == (events.ProjectChanged{}) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectChangedType,
			Payload:         payload,
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

// DeactivateProject suspends an active project.
func (c *Commands) DeactivateProject(ctx context.Context, instanceID, projectID string) (*Details, error) {
	return c.changeProjectState(ctx, "project.deactivate", instanceID, projectID, domain.ProjectStateActive,
		events.ProjectDeactivatedType, "PROJECT-005", "project is not active")
}

// ReactivateProject resumes an inactive project.
func (c *Commands) ReactivateProject(ctx context.Context, instanceID, projectID string) (*Details, error) {
	return c.changeProjectState(ctx, "project.reactivate", instanceID, projectID, domain.ProjectStateInactive,
		events.ProjectReactivatedType, "PROJECT-006", "project is not inactive")
}

func (c *Commands) changeProjectState(ctx context.Context, name, instanceID, projectID string, required domain.ProjectState, eventType eventstore.EventType, code, message string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if wm.State != required {
			return nil, apperror.FailedPrecondition(nil, code, message)
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveProject removes a project and releases the identities claimed by
// its applications.
func (c *Commands) RemoveProject(ctx context.Context, instanceID, projectID string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		var constraints []*eventstore.UniqueConstraint
		for _, clientID := range wm.AppClientIDs {
			constraints = append(constraints, eventstore.NewRemoveUniqueConstraint(uniqueTypeClientID, clientID))
		}
		for _, entityID := range wm.AppEntityIDs {
			constraints = append(constraints, eventstore.NewRemoveUniqueConstraint(uniqueTypeEntityID, entityID))
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:         wm.aggregate(),
			Type:              events.ProjectRemovedType,
			ResourceOwner:     wm.ResourceOwner,
			ExpectedVersion:   wm.ExpectedVersion(),
			UniqueConstraints: constraints,
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// AddProjectRole adds a role to the project's catalog. Keys are unique per
// project.
func (c *Commands) AddProjectRole(ctx context.Context, instanceID, projectID, key, displayName, group string) (*Details, error) {
	if err := domain.CheckRoleKey(key); err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "project.role.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.Roles[key]; ok {
			return nil, apperror.AlreadyExists(nil, "PROJECT-ROLE-002", "role key already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectRoleAddedType,
			Payload:         events.ProjectRoleAdded{Key: key, DisplayName: displayName, Group: group},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeProjectRole updates display name or group of a role. All fields
// equal is a no-op.
func (c *Commands) ChangeProjectRole(ctx context.Context, instanceID, projectID, key string, displayName, group *string) (*Details, error) {
	var details *Details
	_, err := c.exec(ctx, "project.role.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		role, ok := wm.Roles[key]
		if !ok {
			return nil, apperror.NotFound(nil, "PROJECT-ROLE-003", "role not found")
		}
		payload := events.ProjectRoleChanged{Key: key}
		if stringChanged(role.DisplayName, displayName) {
			payload.DisplayName = displayName
		}
		if stringChanged(role.Group, group) {
			payload.Group = group
		}
		if payload.DisplayName == nil && payload.Group == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectRoleChangedType,
			Payload:         payload,
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

// RemoveProjectRole removes a role from the catalog.
func (c *Commands) RemoveProjectRole(ctx context.Context, instanceID, projectID, key string) (*Details, error) {
	pushed, err := c.exec(ctx, "project.role.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, err := c.loadExistingProject(ctx, instanceID, projectID)
		if err != nil {
			return nil, err
		}
		if _, ok := wm.Roles[key]; !ok {
			return nil, apperror.NotFound(nil, "PROJECT-ROLE-003", "role not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.ProjectRoleRemovedType,
			Payload:         events.ProjectRoleRemoved{Key: key},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadExistingProject(ctx context.Context, instanceID, projectID string) (*ProjectWriteModel, error) {
	wm := NewProjectWriteModel(instanceID, projectID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, err
	}
	if !wm.State.Exists() {
		return nil, apperror.NotFound(nil, "PROJECT-004", "project not found")
	}
	return wm, nil
}
