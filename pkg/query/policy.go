package query

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
)

// ResolvedPolicy is a policy lookup result. IsDefault reports that the
// instance default answered because the org has no override.
type ResolvedPolicy struct {
	Type      domain.PolicyType
	Payload   events.PolicyPayload
	IsDefault bool
}

// PolicyByOrg resolves one policy for an org, falling back to the instance
// default when the org has no override.
func (q *Queries) PolicyByOrg(ctx context.Context, instanceID, orgID string, policyType domain.PolicyType) (*ResolvedPolicy, error) {
	policy, err := q.policy(ctx, instanceID, "org", orgID, policyType)
	if err == nil {
		return policy, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}
	return q.PolicyDefault(ctx, instanceID, policyType)
}

// PolicyDefault returns the instance default of one policy.
func (q *Queries) PolicyDefault(ctx context.Context, instanceID string, policyType domain.PolicyType) (*ResolvedPolicy, error) {
	policy, err := q.policy(ctx, instanceID, "instance", instanceID, policyType)
	if err != nil {
		return nil, err
	}
	policy.IsDefault = true
	return policy, nil
}

func (q *Queries) policy(ctx context.Context, instanceID, scope, resourceOwner string, policyType domain.PolicyType) (*ResolvedPolicy, error) {
	var raw string
	err := q.db.QueryRowContext(ctx, `
		SELECT payload FROM policies_projection
		WHERE instance_id = ? AND scope = ? AND resource_owner = ? AND policy_type = ?`,
		instanceID, scope, resourceOwner, string(policyType),
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, apperror.NotFound(nil, "QUERY-POLICY-001", "policy not found")
	}
	if err != nil {
		return nil, err
	}

	policy := &ResolvedPolicy{Type: policyType}
	if err := json.Unmarshal([]byte(raw), &policy.Payload); err != nil {
		return nil, apperror.Internal(err, "QUERY-POLICY-002", "unable to decode policy payload")
	}
	return policy, nil
}
