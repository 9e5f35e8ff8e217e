package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/domain"
	"github.com/auriga-id/auriga/pkg/events"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func TestAddPolicyRejectsMismatchedPayload(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		policyType domain.PolicyType
		payload    events.PolicyPayload
	}{
		{"empty payload", domain.PolicyTypePasswordComplexity, events.PolicyPayload{}},
		{"wrong field set", domain.PolicyTypePasswordComplexity, events.PolicyPayload{
			Label: &domain.LabelPolicy{PrimaryColor: "#ff0000"},
		}},
		{"two fields set", domain.PolicyTypeLabel, events.PolicyPayload{
			Label:   &domain.LabelPolicy{PrimaryColor: "#ff0000"},
			Privacy: &domain.PrivacyPolicy{TOSLink: "https://example.com/tos"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cmds.AddInstancePolicy(ctx, testInstance, tt.policyType, tt.payload)
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidArgument(err))
			var appErr *apperror.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "POLICY-001", appErr.Code)
		})
	}
}

func TestLabelPolicyValidatesHexColors(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypeLabel,
		events.PolicyPayload{Label: &domain.LabelPolicy{PrimaryColor: "red"}})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypeLabel,
		events.PolicyPayload{Label: &domain.LabelPolicy{PrimaryColor: "#ff0000", WarnColor: "#CC4400"}})
	require.NoError(t, err)
}

func TestLoginPolicyValidatesLanguage(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypeLogin,
		events.PolicyPayload{Login: &domain.LoginPolicy{DefaultLanguage: "no such tag"}})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypeLogin,
		events.PolicyPayload{Login: &domain.LoginPolicy{AllowUsernamePassword: true, DefaultLanguage: "de-CH"}})
	require.NoError(t, err)
}

func TestOrgPolicyLifecycle(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	payload := events.PolicyPayload{PasswordComplexity: &domain.PasswordComplexityPolicy{MinLength: 12}}

	_, err := cmds.AddOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity, payload)
	require.NoError(t, err)

	_, err = cmds.AddOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity, payload)
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))

	// Replacing with the identical value is a no-op.
	_, err = cmds.ChangeOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity, payload)
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, "org-1")
	require.Len(t, types, 1)
	assert.Equal(t, eventstore.EventType("org.policy.password.complexity.added"), types[0])

	changed := events.PolicyPayload{PasswordComplexity: &domain.PasswordComplexityPolicy{MinLength: 16, HasNumber: true}}
	_, err = cmds.ChangeOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity, changed)
	require.NoError(t, err)

	_, err = cmds.RemoveOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity)
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, "org-1")
	assert.Equal(t, []eventstore.EventType{
		"org.policy.password.complexity.added",
		"org.policy.password.complexity.changed",
		"org.policy.password.complexity.removed",
	}, types)

	_, err = cmds.ChangeOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity, changed)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = cmds.RemoveOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordComplexity)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestOrgAndInstancePoliciesAreIndependent(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	payload := events.PolicyPayload{PasswordLockout: &domain.PasswordLockoutPolicy{MaxPasswordAttempts: 5}}

	_, err := cmds.AddInstancePolicy(ctx, testInstance, domain.PolicyTypePasswordLockout, payload)
	require.NoError(t, err)

	// The instance default does not block the org override, and removing the
	// override leaves the default in place.
	_, err = cmds.AddOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordLockout, payload)
	require.NoError(t, err)
	_, err = cmds.RemoveOrgPolicy(ctx, testInstance, "org-1", domain.PolicyTypePasswordLockout)
	require.NoError(t, err)

	_, err = cmds.RemoveInstancePolicy(ctx, testInstance, domain.PolicyTypePasswordLockout)
	require.NoError(t, err)
}
