package command

import (
	"context"
	"strings"
	"time"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// InstanceAction is the reduced state of one action script.
type InstanceAction struct {
	ID            string
	Name          string
	Script        string
	Timeout       time.Duration
	AllowedToFail bool
	State         domain.ActionState
}

// InstanceActionWriteModel reduces the actions and executions of one
// instance.
type InstanceActionWriteModel struct {
	eventstore.WriteModel

	Actions    map[string]*InstanceAction
	Executions map[string][]string
}

func NewInstanceActionWriteModel(instanceID string) *InstanceActionWriteModel {
	return &InstanceActionWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, instanceID),
		Actions:    map[string]*InstanceAction{},
		Executions: map[string][]string{},
	}
}

func (wm *InstanceActionWriteModel) aggregate() eventstore.Aggregate {
	return eventstore.Aggregate{Type: eventstore.AggregateTypeInstance, ID: wm.AggregateID}
}

func (wm *InstanceActionWriteModel) Reduce() {
	for _, event := range wm.Events() {
		switch event.Type {
		case events.InstanceActionAddedType:
			var payload events.InstanceActionAdded
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			wm.Actions[payload.ID] = &InstanceAction{
				ID:            payload.ID,
				Name:          payload.Name,
				Script:        payload.Script,
				Timeout:       time.Duration(payload.Timeout),
				AllowedToFail: payload.AllowedToFail,
				State:         domain.ActionStateActive,
			}
		case events.InstanceActionChangedType:
			var payload events.InstanceActionChanged
			if err := event.UnmarshalPayload(&payload); err != nil {
				continue
			}
			action, ok := wm.Actions[payload.ID]
			if !ok {
				continue
			}
			if payload.Name != nil {
				action.Name = *payload.Name
			}
			if payload.Script != nil {
				action.Script = *payload.Script
			}
			if payload.Timeout != nil {
				action.Timeout = time.Duration(*payload.Timeout)
			}
			if payload.AllowedToFail != nil {
				action.AllowedToFail = *payload.AllowedToFail
			}
		case events.InstanceActionDeactivatedType:
			var payload events.InstanceActionStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if action, ok := wm.Actions[payload.ID]; ok {
					action.State = domain.ActionStateInactive
				}
			}
		case events.InstanceActionReactivatedType:
			var payload events.InstanceActionStateChanged
			if err := event.UnmarshalPayload(&payload); err == nil {
				if action, ok := wm.Actions[payload.ID]; ok {
					action.State = domain.ActionStateActive
				}
			}
		case events.InstanceActionRemovedType:
			var payload events.InstanceActionRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.Actions, payload.ID)
			}
		case events.InstanceExecutionSetType:
			var payload events.InstanceExecutionSet
			if err := event.UnmarshalPayload(&payload); err == nil {
				wm.Executions[payload.Condition] = payload.Targets
			}
		case events.InstanceExecutionRemovedType:
			var payload events.InstanceExecutionRemoved
			if err := event.UnmarshalPayload(&payload); err == nil {
				delete(wm.Executions, payload.Condition)
			}
		}
	}
	wm.WriteModel.Reduce()
}

// CreatedAction is the result of AddInstanceAction.
type CreatedAction struct {
	ID      string
	Details *Details
}

// AddInstanceAction registers an action script with a generated ID.
func (c *Commands) AddInstanceAction(ctx context.Context, instanceID, name, script string, timeout time.Duration, allowedToFail bool) (*CreatedAction, error) {
	id, err := c.nextID()
	if err != nil {
		return nil, err
	}
	details, err := c.AddInstanceActionWithID(ctx, instanceID, id, name, script, timeout, allowedToFail)
	if err != nil {
		return nil, err
	}
	return &CreatedAction{ID: id, Details: details}, nil
}

// AddInstanceActionWithID registers an action script under a caller-chosen
// ID.
func (c *Commands) AddInstanceActionWithID(ctx context.Context, instanceID, id, name, script string, timeout time.Duration, allowedToFail bool) (*Details, error) {
	if id == "" {
		return nil, apperror.InvalidArgument(nil, "ACTION-001", "action id must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperror.InvalidArgument(nil, "ACTION-002", "action name must not be empty")
	}
	if script == "" {
		return nil, apperror.InvalidArgument(nil, "ACTION-003", "action script must not be empty")
	}

	pushed, err := c.exec(ctx, "instance.action.add", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewInstanceActionWriteModel(instanceID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if _, ok := wm.Actions[id]; ok {
			return nil, apperror.AlreadyExists(nil, "ACTION-004", "instance action already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate: wm.aggregate(),
			Type:      events.InstanceActionAddedType,
			Payload: events.InstanceActionAdded{
				ID:            id,
				Name:          name,
				Script:        script,
				Timeout:       int64(timeout),
				AllowedToFail: allowedToFail,
			},
			ResourceOwner:   instanceID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// ChangeInstanceAction is the input of ChangeInstanceAction; nil fields keep
// the current value.
type ChangeInstanceAction struct {
	Name          *string
	Script        *string
	Timeout       *time.Duration
	AllowedToFail *bool
}

// ChangeInstanceAction updates an action script. All fields equal is a
// no-op.
func (c *Commands) ChangeInstanceAction(ctx context.Context, instanceID, id string, change ChangeInstanceAction) (*Details, error) {
	if change.Name != nil && strings.TrimSpace(*change.Name) == "" {
		return nil, apperror.InvalidArgument(nil, "ACTION-002", "action name must not be empty")
	}
	if change.Script != nil && *change.Script == "" {
		return nil, apperror.InvalidArgument(nil, "ACTION-003", "action script must not be empty")
	}

	var details *Details
	_, err := c.exec(ctx, "instance.action.change", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, action, err := c.loadExistingAction(ctx, instanceID, id)
		if err != nil {
			return nil, err
		}
		payload := events.InstanceActionChanged{ID: id}
		if stringChanged(action.Name, change.Name) {
			payload.Name = change.Name
		}
		if stringChanged(action.Script, change.Script) {
			payload.Script = change.Script
		}
		if change.Timeout != nil && *change.Timeout != action.Timeout {
			nanos := int64(*change.Timeout)
			payload.Timeout = &nanos
		}
		if boolChanged(action.AllowedToFail, change.AllowedToFail) {
			payload.AllowedToFail = change.AllowedToFail
		}
		if payload.Name == nil && payload.Script == nil && payload.Timeout == nil && payload.AllowedToFail == nil {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.InstanceActionChangedType,
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

// DeactivateInstanceAction suspends an active action.
func (c *Commands) DeactivateInstanceAction(ctx context.Context, instanceID, id string) (*Details, error) {
	return c.changeInstanceActionState(ctx, "instance.action.deactivate", instanceID, id,
		domain.ActionStateActive, events.InstanceActionDeactivatedType, "ACTION-006", "instance action is not active")
}

// ReactivateInstanceAction resumes an inactive action.
func (c *Commands) ReactivateInstanceAction(ctx context.Context, instanceID, id string) (*Details, error) {
	return c.changeInstanceActionState(ctx, "instance.action.reactivate", instanceID, id,
		domain.ActionStateInactive, events.InstanceActionReactivatedType, "ACTION-007", "instance action is not inactive")
}

func (c *Commands) changeInstanceActionState(ctx context.Context, name, instanceID, id string, required domain.ActionState, eventType eventstore.EventType, code, message string) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm, action, err := c.loadExistingAction(ctx, instanceID, id)
		if err != nil {
			return nil, err
		}
		if action.State != required {
			return nil, apperror.FailedPrecondition(nil, code, message)
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            eventType,
			Payload:         events.InstanceActionStateChanged{ID: id},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// RemoveInstanceAction removes an action. Executions referencing it keep
// their target list; resolution skips missing targets.
func (c *Commands) RemoveInstanceAction(ctx context.Context, instanceID, id string) (*Details, error) {
	pushed, err := c.exec(ctx, "instance.action.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm, action, err := c.loadExistingAction(ctx, instanceID, id)
		if err != nil {
			return nil, err
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.InstanceActionRemovedType,
			Payload:         events.InstanceActionRemoved{ID: id, Name: action.Name},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

// SetInstanceExecution binds a trigger condition to an ordered list of
// action targets. Every target must name an existing action. Setting the
// identical target list is a no-op.
func (c *Commands) SetInstanceExecution(ctx context.Context, instanceID, condition string, targets []string) (*Details, error) {
	if condition == "" {
		return nil, apperror.InvalidArgument(nil, "EXECUTION-001", "execution condition must not be empty")
	}
	if len(targets) == 0 {
		return nil, apperror.InvalidArgument(nil, "EXECUTION-002", "at least one target is required")
	}

	var details *Details
	_, err := c.exec(ctx, "instance.execution.set", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewInstanceActionWriteModel(instanceID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		for _, target := range targets {
			if _, ok := wm.Actions[target]; !ok {
				return nil, apperror.InvalidArgument(nil, "EXECUTION-003", "execution target is not an existing action")
			}
		}
		if current, ok := wm.Executions[condition]; ok && sameStringSlice(current, targets) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.InstanceExecutionSetType,
			Payload:         events.InstanceExecutionSet{Condition: condition, Targets: targets},
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

// RemoveInstanceExecution unbinds a trigger condition.
func (c *Commands) RemoveInstanceExecution(ctx context.Context, instanceID, condition string) (*Details, error) {
	pushed, err := c.exec(ctx, "instance.execution.remove", func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewInstanceActionWriteModel(instanceID)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if _, ok := wm.Executions[condition]; !ok {
			return nil, apperror.NotFound(nil, "EXECUTION-004", "execution not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.InstanceExecutionRemovedType,
			Payload:         events.InstanceExecutionRemoved{Condition: condition},
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) loadExistingAction(ctx context.Context, instanceID, id string) (*InstanceActionWriteModel, *InstanceAction, error) {
	wm := NewInstanceActionWriteModel(instanceID)
	if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
		return nil, nil, err
	}
	action, ok := wm.Actions[id]
	if !ok {
		return nil, nil, apperror.NotFound(nil, "ACTION-005", "instance action not found")
	}
	return wm, action, nil
}

// sameStringSlice compares order-sensitively; execution targets are an
// ordered list.
func sameStringSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
