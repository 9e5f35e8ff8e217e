package crypto

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/secrets/localsecrets"

	"github.com/auriga-id/auriga/pkg/apperror"
	"github.com/auriga-id/auriga/pkg/eventstore/sqlite"
)

func testKeeperURL(t *testing.T) string {
	t.Helper()
	key, err := localsecrets.NewRandomKey()
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key[:])
}

func TestOTP6(t *testing.T) {
	codes := NewCodes()
	for i := 0; i < 50; i++ {
		code, err := codes.OTP6()
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
	}
}

func TestToken32(t *testing.T) {
	codes := NewCodes()
	token, err := codes.Token32()
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Za-z0-9]{32}$`, token)

	other, err := codes.Token32()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestHashAndVerifyCode(t *testing.T) {
	hash := HashCode("123456")
	assert.Len(t, hash, 64)
	assert.True(t, VerifyCode(hash, "123456"))
	assert.False(t, VerifyCode(hash, "654321"))
	assert.False(t, VerifyCode("", "123456"))
}

func TestKeeperSealerRoundTrip(t *testing.T) {
	ctx := context.Background()
	sealer, err := NewKeeperSealer(ctx, testKeeperURL(t))
	require.NoError(t, err)
	defer sealer.Close()

	sealed, err := sealer.Seal(ctx, "hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", sealed)

	opened, err := sealer.Open(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", opened)

	_, err = sealer.Open(ctx, "not base64 %%")
	assert.Error(t, err)
}

func TestPlaintextSealer(t *testing.T) {
	ctx := context.Background()
	var sealer PlaintextSealer

	sealed, err := sealer.Seal(ctx, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", sealed)

	opened, err := sealer.Open(ctx, sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", opened)
}

func TestKeyStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.New(sqlite.WithMemoryDatabase())
	require.NoError(t, err)
	defer store.Close()

	keys, err := NewKeyStore(ctx, store.DB(), testKeeperURL(t))
	require.NoError(t, err)
	defer keys.Close()

	material := []byte("0123456789abcdef0123456789abcdef")
	require.NoError(t, keys.Add(ctx, &EncryptionKey{
		ID:         "key-1",
		Identifier: "user-secrets",
		Algorithm:  "AES256",
		Material:   material,
	}))

	// Identifiers are unique.
	err = keys.Add(ctx, &EncryptionKey{ID: "key-2", Identifier: "user-secrets", Algorithm: "AES256", Material: material})
	require.Error(t, err)
	assert.True(t, apperror.IsAlreadyExists(err))

	loaded, err := keys.Get(ctx, "user-secrets")
	require.NoError(t, err)
	assert.Equal(t, material, loaded.Material)
	assert.Equal(t, "AES256", loaded.Algorithm)
	assert.False(t, loaded.CreatedAt.IsZero())

	listed, err := keys.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, keys.Remove(ctx, "user-secrets"))
	_, err = keys.Get(ctx, "user-secrets")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
