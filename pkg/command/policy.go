package command

import (
	"context"
	"reflect"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

// PolicyWriteModel reduces the policies of one scope aggregate (an org or
// the instance itself).
type PolicyWriteModel struct {
	eventstore.WriteModel

	scope    events.PolicyScope
	Policies map[domain.PolicyType]events.PolicyPayload
}

func NewPolicyWriteModel(instanceID, aggregateID string, scope events.PolicyScope) *PolicyWriteModel {
	return &PolicyWriteModel{
		WriteModel: eventstore.NewWriteModel(instanceID, aggregateID),
		scope:      scope,
		Policies:   map[domain.PolicyType]events.PolicyPayload{},
	}
}

func (wm *PolicyWriteModel) aggregate() eventstore.Aggregate {
	if wm.scope == events.PolicyScopeInstance {
		return eventstore.Aggregate{Type: eventstore.AggregateTypeInstance, ID: wm.AggregateID}
	}
	return eventstore.Aggregate{Type: eventstore.AggregateTypeOrg, ID: wm.AggregateID}
}

var allPolicyTypes = []domain.PolicyType{
	domain.PolicyTypePasswordComplexity,
	domain.PolicyTypePasswordAge,
	domain.PolicyTypePasswordLockout,
	domain.PolicyTypeLogin,
	domain.PolicyTypeLabel,
	domain.PolicyTypePrivacy,
	domain.PolicyTypeNotification,
	domain.PolicyTypeDomain,
	domain.PolicyTypeMFA,
}

func (wm *PolicyWriteModel) Reduce() {
	for _, event := range wm.Events() {
		for _, policyType := range allPolicyTypes {
			switch event.Type {
			case events.PolicyAddedType(wm.scope, policyType), events.PolicyChangedType(wm.scope, policyType):
				var payload events.PolicyPayload
				if err := event.UnmarshalPayload(&payload); err == nil {
					wm.Policies[policyType] = payload
				}
			case events.PolicyRemovedType(wm.scope, policyType):
				delete(wm.Policies, policyType)
			}
		}
	}
	wm.WriteModel.Reduce()
}

// checkPolicyPayload validates that exactly the field matching the policy
// type is set and that its values are well formed.
func checkPolicyPayload(policyType domain.PolicyType, payload events.PolicyPayload) error {
	var set domain.PolicyType
	count := 0
	mark := func(t domain.PolicyType) {
		set = t
		count++
	}
	if payload.PasswordComplexity != nil {
		mark(domain.PolicyTypePasswordComplexity)
	}
	if payload.PasswordAge != nil {
		mark(domain.PolicyTypePasswordAge)
	}
	if payload.PasswordLockout != nil {
		mark(domain.PolicyTypePasswordLockout)
	}
	if payload.Login != nil {
		mark(domain.PolicyTypeLogin)
	}
	if payload.Label != nil {
		mark(domain.PolicyTypeLabel)
	}
	if payload.Privacy != nil {
		mark(domain.PolicyTypePrivacy)
	}
	if payload.Notification != nil {
		mark(domain.PolicyTypeNotification)
	}
	if payload.Domain != nil {
		mark(domain.PolicyTypeDomain)
	}
	if payload.MFA != nil {
		mark(domain.PolicyTypeMFA)
	}
	if count != 1 || set != policyType {
		return apperror.InvalidArgument(nil, "POLICY-001", "payload does not match policy type")
	}

	switch policyType {
	case domain.PolicyTypeLabel:
		for _, color := range []string{
			payload.Label.PrimaryColor,
			payload.Label.BackgroundColor,
			payload.Label.WarnColor,
			payload.Label.FontColor,
		} {
			if color == "" {
				continue
			}
			if err := domain.CheckHexColor(color); err != nil {
				return err
			}
		}
	case domain.PolicyTypeLogin:
		if payload.Login.DefaultLanguage != "" {
			if err := domain.CheckLanguage(payload.Login.DefaultLanguage); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddOrgPolicy creates an org-scoped policy override.
func (c *Commands) AddOrgPolicy(ctx context.Context, instanceID, orgID string, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	return c.addPolicy(ctx, "org.policy.add", instanceID, orgID, events.PolicyScopeOrg, policyType, payload)
}

// ChangeOrgPolicy replaces an org-scoped policy. Equal values are a no-op.
func (c *Commands) ChangeOrgPolicy(ctx context.Context, instanceID, orgID string, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	return c.changePolicy(ctx, "org.policy.change", instanceID, orgID, events.PolicyScopeOrg, policyType, payload)
}

// RemoveOrgPolicy removes an org-scoped policy, falling back to the instance
// default.
func (c *Commands) RemoveOrgPolicy(ctx context.Context, instanceID, orgID string, policyType domain.PolicyType) (*Details, error) {
	return c.removePolicy(ctx, "org.policy.remove", instanceID, orgID, events.PolicyScopeOrg, policyType)
}

// AddInstancePolicy creates the instance default for a policy type.
func (c *Commands) AddInstancePolicy(ctx context.Context, instanceID string, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	return c.addPolicy(ctx, "instance.policy.add", instanceID, instanceID, events.PolicyScopeInstance, policyType, payload)
}

// ChangeInstancePolicy replaces the instance default. Equal values are a
// no-op.
func (c *Commands) ChangeInstancePolicy(ctx context.Context, instanceID string, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	return c.changePolicy(ctx, "instance.policy.change", instanceID, instanceID, events.PolicyScopeInstance, policyType, payload)
}

// RemoveInstancePolicy removes the instance default.
func (c *Commands) RemoveInstancePolicy(ctx context.Context, instanceID string, policyType domain.PolicyType) (*Details, error) {
	return c.removePolicy(ctx, "instance.policy.remove", instanceID, instanceID, events.PolicyScopeInstance, policyType)
}

func (c *Commands) addPolicy(ctx context.Context, name, instanceID, aggregateID string, scope events.PolicyScope, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	if err := checkPolicyPayload(policyType, payload); err != nil {
		return nil, err
	}

	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, aggregateID, scope)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if _, ok := wm.Policies[policyType]; ok {
			return nil, apperror.AlreadyExists(nil, "POLICY-002", "policy already exists")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.PolicyAddedType(scope, policyType),
			Payload:         payload,
			ResourceOwner:   aggregateID,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}

func (c *Commands) changePolicy(ctx context.Context, name, instanceID, aggregateID string, scope events.PolicyScope, policyType domain.PolicyType, payload events.PolicyPayload) (*Details, error) {
	if err := checkPolicyPayload(policyType, payload); err != nil {
		return nil, err
	}

	var details *Details
	_, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, aggregateID, scope)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		current, ok := wm.Policies[policyType]
		if !ok {
			return nil, apperror.NotFound(nil, "POLICY-003", "policy not found")
		}
		if reflect.DeepEqual(current, payload) {
			details = detailsFromWriteModel(&wm.WriteModel)
			return nil, nil
		}
		pushed, err := c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.PolicyChangedType(scope, policyType),
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

func (c *Commands) removePolicy(ctx context.Context, name, instanceID, aggregateID string, scope events.PolicyScope, policyType domain.PolicyType) (*Details, error) {
	pushed, err := c.exec(ctx, name, func(ctx context.Context) ([]eventstore.Event, error) {
		wm := NewPolicyWriteModel(instanceID, aggregateID, scope)
		if err := c.load(ctx, instanceID, wm.aggregate(), wm); err != nil {
			return nil, err
		}
		if _, ok := wm.Policies[policyType]; !ok {
			return nil, apperror.NotFound(nil, "POLICY-003", "policy not found")
		}
		return c.push(ctx, instanceID, eventstore.Command{
			Aggregate:       wm.aggregate(),
			Type:            events.PolicyRemovedType(scope, policyType),
			ResourceOwner:   wm.ResourceOwner,
			ExpectedVersion: wm.ExpectedVersion(),
		})
	})
	if err != nil {
		return nil, err
	}
	return detailsFromEvents(pushed), nil
}
