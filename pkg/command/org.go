package command

import (
	"context"
	"strings"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// OrgWriteModel reduces the lifecycle of one organization. Duplicate org
// names are allowed; only the state machine is enforced here.
type OrgWriteModel struct {
	eventstore.WriteModel

	Name  string
	State domain.OrgState
}

func NewOrgWriteModel(instanceID, orgID string) *OrgWriteModel {
	return &OrgWriteModel{WriteModel: eventstore.NewWriteModel(instanceID, orgID)}
}

func (wm *OrgWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.OrgAddedType:
			var payload events.OrgAdded
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Name = payload.Name
			}
			wm.State = domain.OrgStateActive
		case events.OrgChangedType:
			var payload events.OrgChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Name = payload.Name
			}
		case events.OrgDeactivatedType:
			wm.State = domain.OrgStateInactive
		case events.OrgReactivatedType:
			wm.State = domain.OrgStateActive
		case events.OrgRemovedType:
			wm.State = domain.OrgStateRemoved
		}
	}
	wm.WriteModel.Reduce()
}

func (wm *OrgWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

// CreatedOrg is the result of AddOrg.
type CreatedOrg struct {
	ID      string
	Details *Details
}

// AddOrg creates an organization. The org itself is the resource owner of
// its events.
func (c *Commands) AddOrg(ctx context.Context, instanceID, name string) (*CreatedOrg, error) {
	name = strings.TrimSpace(name)
	if err := domain.CheckOrgName(name); err != nil {
		return nil, err
	}
	orgID, err := c.nextID()
	if err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, "org.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if wm.State != domain.OrgStateUnspecified {
			return nil, apperror.AlreadyExists(nil, "ORG-006", "org already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgAddedType,
			Payload:         events.OrgAdded{Name: name},
			ResourceOwner:   orgID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &CreatedOrg{ID: orgID, Details: detailsFromEvents(pushed)}, nil
}

// ChangeOrg renames an organization. Renaming to the current name is a
// no-op.
func (c *Commands) ChangeOrg(ctx context.Context, instanceID, orgID, name string) (*Details, error) {
	name = strings.TrimSpace(name)
	if err := domain.CheckOrgName(name); err != nil {
		return nil, err
	}

	var details *Details
	_, err := c.exec(ctx, "org.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.State.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
		}
		if wm.Name == name {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgChangedType,
			Payload:         events.OrgChanged{Name: name},
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

// DeactivateOrg suspends an active organization.
func (c *Commands) DeactivateOrg(ctx context.Context, instanceID, orgID string) (*Details, error) {
	return c.changeOrgState(ctx, "org.deactivate", instanceID, orgID, domain.OrgStateActive,
		events.OrgDeactivatedType, "ORG-004", "org is not active")
}

// ReactivateOrg resumes an inactive organization.
func (c *Commands) ReactivateOrg(ctx context.Context, instanceID, orgID string) (*Details, error) {
	return c.changeOrgState(ctx, "org.reactivate", instanceID, orgID, domain.OrgStateInactive,
		events.OrgReactivatedType, "ORG-005", "org is not inactive")
}

func (c *Commands) changeOrgState(ctx context.Context, name, instanceID, orgID string, required domain.OrgState, eventType eventstore.EventType, code, message string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.State.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
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

// RemoveOrg removes an organization and releases its claimed domains.
func (c *Commands) RemoveOrg(ctx context.Context, instanceID, orgID string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgDomainsWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.OrgState.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
		}
		constraints := make([]*eventstore.UniqueConstraint, 0, len(wm.Domains))
		for _, d := range wm.Domains {
			constraints = append(constraints, eventstore.NewRemoveUniqueConstraint(uniqueTypeOrgDomain, d.Name))
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:         wm.aggregate(),
			Type:              events.OrgRemovedType,
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

// TerminateAllOrgSessions logs out every user of the org. The fan-out over
// individual session rows happens in the sessions projection.
func (c *Commands) TerminateAllOrgSessions(ctx context.Context, instanceID, orgID, reason string) (*Details, error) {
	pushed, err := c.exec(ctx, "org.sessions.terminate", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewOrgWriteModel(instanceID, orgID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if !wm.State.Exists() {
			return nil, apperror.NotFound(nil, "ORG-003", "org not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.OrgSessionsTerminatedType,
			Payload:         events.OrgSessionsTerminated{Reason: reason},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
