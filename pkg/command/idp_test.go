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

func testOIDCIDP() command.AddOIDCIDP {
	return command.AddOIDCIDP{
		Name:         "corporate sso",
		Issuer:       "https://accounts.example.com",
		ClientID:     "client-1",
		ClientSecret: "secret",
		Scopes:       []string{"openid", "profile"},
	}
}

func TestAddOIDCIDPValidatesInput(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		code string
		idp  command.AddOIDCIDP
	}{
		{"empty name", "IDP-001", command.AddOIDCIDP{Issuer: "https://accounts.example.com", ClientID: "client-1"}},
		{"malformed issuer", "IDP-002", command.AddOIDCIDP{Name: "sso", Issuer: "not a url", ClientID: "client-1"}},
		{"empty client id", "IDP-003", command.AddOIDCIDP{Name: "sso", Issuer: "https://accounts.example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := cmds.AddOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, tt.idp)
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidArgument(err))
			var appErr *apperror.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestOIDCIDPLifecycle(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, testOIDCIDP())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	// Same values are a no-op; a reordered scope list is the same set.
	_, err = cmds.ChangeOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeOIDCIDP{
		Scopes: []string{"profile", "openid"},
	})
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, "org-1")
	require.Len(t, types, 1)

	name := "renamed sso"
	_, err = cmds.ChangeOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeOIDCIDP{Name: &name})
	require.NoError(t, err)

	_, err = cmds.RemoveIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID)
	require.NoError(t, err)
	types = aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, "org-1")
	assert.Equal(t, []eventstore.EventType{
		"org.idp.oidc.added",
		"org.idp.oidc.changed",
		"org.idp.removed",
	}, types)

	_, err = cmds.ChangeOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeOIDCIDP{Name: &name})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestChangeIDPChecksProtocol(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, testOIDCIDP())
	require.NoError(t, err)

	endpoint := "https://login.example.com/token"
	_, err = cmds.ChangeJWTIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeJWTIDP{
		JWTEndpoint: &endpoint,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "IDP-009", appErr.Code)
}

func TestAddJWTIDPValidatesEndpoints(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddJWTIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, command.AddJWTIDP{
		Name:         "legacy jwt",
		Issuer:       "https://issuer.example.com",
		JWTEndpoint:  "not a url",
		KeysEndpoint: "https://issuer.example.com/keys",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))

	_, err = cmds.AddJWTIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, command.AddJWTIDP{
		Name:         "legacy jwt",
		Issuer:       "https://issuer.example.com",
		JWTEndpoint:  "https://issuer.example.com/token",
		KeysEndpoint: "https://issuer.example.com/keys",
		HeaderName:   "x-auth-token",
	})
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeOrg, "org-1")
	assert.Equal(t, []eventstore.EventType{"org.idp.jwt.added"}, types)
}

func TestAddSAMLIDPRequiresMetadata(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	_, err := cmds.AddSAMLIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, command.AddSAMLIDP{Name: "partner"})
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidArgument(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "IDP-010", appErr.Code)

	_, err = cmds.AddSAMLIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, command.AddSAMLIDP{
		Name:        "partner",
		MetadataURL: "not a url",
	})
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "IDP-011", appErr.Code)

	created, err := cmds.AddSAMLIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, command.AddSAMLIDP{
		Name:     "partner",
		Metadata: `<EntityDescriptor entityID="https://partner.example.com/saml"/>`,
		Binding:  "post",
	})
	require.NoError(t, err)

	// A change must not clear both metadata and metadata URL.
	empty := ""
	_, err = cmds.ChangeSAMLIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeSAMLIDP{
		Metadata: &empty,
	})
	require.Error(t, err)
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "IDP-010", appErr.Code)

	url := "https://partner.example.com/metadata"
	_, err = cmds.ChangeSAMLIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, created.ID, command.ChangeSAMLIDP{
		Metadata:    &empty,
		MetadataURL: &url,
	})
	require.NoError(t, err)
}

func TestIDPScopesAreSeparate(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.AddOIDCIDP(ctx, testInstance, "org-1", command.IDPScopeOrg, testOIDCIDP())
	require.NoError(t, err)

	// The org provider is invisible at instance scope.
	_, err = cmds.RemoveIDP(ctx, testInstance, "", command.IDPScopeInstance, created.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	instanceCreated, err := cmds.AddOIDCIDP(ctx, testInstance, "", command.IDPScopeInstance, testOIDCIDP())
	require.NoError(t, err)
	types := aggregateEventTypes(t, store, eventstore.AggregateTypeInstance, testInstance)
	assert.Equal(t, []eventstore.EventType{"instance.idp.oidc.added"}, types)

	_, err = cmds.RemoveIDP(ctx, testInstance, "", command.IDPScopeInstance, instanceCreated.ID)
	require.NoError(t, err)
}
