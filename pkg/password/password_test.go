package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hasher := NewHasher(WithCost(MinCost))

	encoded, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$2"))

	assert.NoError(t, hasher.Verify(encoded, "correct horse battery staple"))
	assert.Error(t, hasher.Verify(encoded, "wrong"))
}

func TestHashRejectsBadInput(t *testing.T) {
	hasher := NewHasher(WithCost(MinCost))

	_, err := hasher.Hash("")
	assert.Error(t, err)

	_, err = hasher.Hash(strings.Repeat("x", MaxPasswordLength+1))
	assert.Error(t, err)
}

func TestVerifyRejectsEmpty(t *testing.T) {
	hasher := NewHasher(WithCost(MinCost))
	assert.Error(t, hasher.Verify("", "secret"))
	assert.Error(t, hasher.Verify("$2a$04$something", ""))
}

func TestWithCostIgnoresOutOfRange(t *testing.T) {
	hasher := NewHasher(WithCost(MaxCost + 1))
	assert.Equal(t, DefaultCost, hasher.cost)
}

func TestValidateStrength(t *testing.T) {
	assert.NoError(t, ValidateStrength("correct horse battery staple"))
	assert.Error(t, ValidateStrength("password"))
	assert.Error(t, ValidateStrength("aaaaaaaaaaaaaaaaaaaaaaaa"), "long but trivial")
}
