package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindPredicates(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{InvalidArgument(nil, "X-001", "bad input"), IsInvalidArgument},
		{NotFound(nil, "X-002", "missing"), IsNotFound},
		{AlreadyExists(nil, "X-003", "duplicate"), IsAlreadyExists},
		{FailedPrecondition(nil, "X-004", "wrong state"), IsFailedPrecondition},
		{Unauthenticated(nil, "X-005", "no credentials"), IsUnauthenticated},
		{PermissionDenied(nil, "X-006", "forbidden"), IsPermissionDenied},
		{Aborted(nil, "X-007", "conflict"), IsAborted},
		{Unavailable(nil, "X-008", "down"), IsUnavailable},
		{Internal(nil, "X-009", "broken"), IsInternal},
	}
	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), tt.err.Error())
		assert.False(t, tt.check(errors.New("plain")), "plain errors have no kind")
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("load org: %w", NotFound(nil, "ORG-003", "org not found"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalidArgument(err))
}

func TestErrorIsMatchesKindAndCode(t *testing.T) {
	err := NotFound(nil, "ORG-003", "org not found")

	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "ORG-003"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindNotFound, Code: "ORG-999"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindInternal}))
}

func TestUnwrap(t *testing.T) {
	parent := errors.New("row not found")
	err := NotFound(parent, "ORG-003", "org not found")

	require.ErrorIs(t, err, parent)
	assert.Contains(t, err.Error(), "ORG-003")
	assert.Contains(t, err.Error(), "row not found")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "NotFound", KindNotFound.String())
	assert.Equal(t, "Aborted", KindAborted.String())
	assert.Equal(t, "Unknown", KindUnknown.String())
}
