package command_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/eventstore"
)

func TestGenerateWebKey(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	require.NotEmpty(t, created.KeyID)

	var jwk map[string]string
	require.NoError(t, json.Unmarshal([]byte(created.PublicKey), &jwk))
	assert.Equal(t, "EC", jwk["kty"])
	assert.Equal(t, "P-256", jwk["crv"])
	assert.Equal(t, "ES256", jwk["alg"])
	assert.Equal(t, created.KeyID, jwk["kid"])
	assert.NotEmpty(t, jwk["x"])
	assert.NotEmpty(t, jwk["y"])

	assert.Equal(t, []eventstore.EventType{"web_key.generated"},
		aggregateEventTypes(t, store, eventstore.AggregateTypeWebKey, created.KeyID))
}

func TestWebKeyRotation(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	created, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)

	_, err = cmds.ActivateWebKey(ctx, testInstance, created.KeyID)
	require.NoError(t, err)

	_, err = cmds.ActivateWebKey(ctx, testInstance, created.KeyID)
	require.Error(t, err)
	assert.True(t, apperror.IsFailedPrecondition(err))
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "WEBKEY-004", appErr.Code)

	_, err = cmds.DeactivateWebKey(ctx, testInstance, created.KeyID)
	require.NoError(t, err)
	_, err = cmds.RemoveWebKey(ctx, testInstance, created.KeyID)
	require.NoError(t, err)

	assert.Equal(t, []eventstore.EventType{
		"web_key.generated",
		"web_key.activated",
		"web_key.deactivated",
		"web_key.removed",
	}, aggregateEventTypes(t, store, eventstore.AggregateTypeWebKey, created.KeyID))
}

func TestRemoveActiveWebKeyRejected(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = cmds.ActivateWebKey(ctx, testInstance, created.KeyID)
	require.NoError(t, err)

	_, err = cmds.RemoveWebKey(ctx, testInstance, created.KeyID)
	require.Error(t, err)
	var appErr *apperror.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "WEBKEY-006", appErr.Code)
}

func TestRemovedWebKeyIsGone(t *testing.T) {
	cmds, _ := newEngine(t)
	ctx := context.Background()

	created, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = cmds.RemoveWebKey(ctx, testInstance, created.KeyID)
	require.NoError(t, err)

	_, err = cmds.ActivateWebKey(ctx, testInstance, created.KeyID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestActivateWebKeyDeactivatesPreviousKey(t *testing.T) {
	cmds, store := newEngine(t)
	ctx := context.Background()

	first, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = cmds.ActivateWebKey(ctx, testInstance, first.KeyID)
	require.NoError(t, err)

	second, err := cmds.GenerateWebKey(ctx, testInstance)
	require.NoError(t, err)
	_, err = cmds.ActivateWebKey(ctx, testInstance, second.KeyID)
	require.NoError(t, err)

	assert.Equal(t, []eventstore.EventType{
		"web_key.generated",
		"web_key.activated",
		"web_key.deactivated",
	}, aggregateEventTypes(t, store, eventstore.AggregateTypeWebKey, first.KeyID))
	assert.Equal(t, []eventstore.EventType{
		"web_key.generated",
		"web_key.activated",
	}, aggregateEventTypes(t, store, eventstore.AggregateTypeWebKey, second.KeyID))

	// The old key is inactive again and may be removed.
	_, err = cmds.RemoveWebKey(ctx, testInstance, first.KeyID)
	require.NoError(t, err)
}
