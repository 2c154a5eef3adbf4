package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/secrets"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
)

// generateLocalSecretsURI generates a base64key:// URI for testing.
func generateLocalSecretsURI(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return "base64key://" + base64.URLEncoding.EncodeToString(key)
}

func TestKMSService_OpenKeeper(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()

	t.Run("local secrets keeper", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, generateLocalSecretsURI(t))
		require.NoError(t, err)
		require.NotNil(t, keeper)

		_, ok := keeper.(*secrets.Keeper)
		assert.True(t, ok, "keeper should be *secrets.Keeper")
		assert.NoError(t, keeper.Close())
	})

	t.Run("invalid URI", func(t *testing.T) {
		keeper, err := kmsService.OpenKeeper(ctx, "invalid://uri")
		assert.Error(t, err)
		assert.Nil(t, keeper)
	})
}

func TestEnvRootKeyProvider(t *testing.T) {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	t.Setenv("ROOT_SEALING_KEY", base64.StdEncoding.EncodeToString(key))

	rootKey, err := NewEnvRootKeyProvider().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, key, rootKey.Key)
}

func TestKMSRootKeyProvider(t *testing.T) {
	ctx := context.Background()
	kmsService := NewKMSService()
	keyURI := generateLocalSecretsURI(t)

	wrap := func(t *testing.T, plaintext []byte) string {
		t.Helper()
		keeper, err := kmsService.OpenKeeper(ctx, keyURI)
		require.NoError(t, err)
		defer func() { assert.NoError(t, keeper.Close()) }()
		ciphertext, err := keeper.Encrypt(ctx, plaintext)
		require.NoError(t, err)
		return base64.StdEncoding.EncodeToString(ciphertext)
	}

	t.Run("unwraps a 32-byte root key", func(t *testing.T) {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)

		provider := NewKMSRootKeyProvider(kmsService, keyURI, wrap(t, key))
		rootKey, err := provider.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, key, rootKey.Key)
		assert.Equal(t, keyURI, rootKey.ID)
	})

	t.Run("rejects wrong key size", func(t *testing.T) {
		provider := NewKMSRootKeyProvider(kmsService, keyURI, wrap(t, make([]byte, 16)))
		_, err := provider.Load(ctx)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})

	t.Run("rejects invalid base64", func(t *testing.T) {
		provider := NewKMSRootKeyProvider(kmsService, keyURI, "not-base64!!!")
		_, err := provider.Load(ctx)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidRootKeyBase64)
	})

	t.Run("rejects tampered ciphertext", func(t *testing.T) {
		key := make([]byte, 32)
		_, err := rand.Read(key)
		require.NoError(t, err)

		wrapped, err := base64.StdEncoding.DecodeString(wrap(t, key))
		require.NoError(t, err)
		wrapped[len(wrapped)-1] ^= 0x01

		provider := NewKMSRootKeyProvider(
			kmsService, keyURI, base64.StdEncoding.EncodeToString(wrapped),
		)
		_, err = provider.Load(ctx)
		assert.Error(t, err)
	})
}
