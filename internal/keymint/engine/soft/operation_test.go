package soft

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	"github.com/allisson/keymint/internal/keymint/domain"
)

func TestAESGCMOperations(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	key, err := eng.GenerateKey(ctx, aesKeyParams(), nil)
	require.NoError(t, err)

	beginParams := domain.AuthorizationSet{
		domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
		domain.NewUint(domain.TagMacLength, 128),
	}

	t.Run("encrypt decrypt round trip with AAD", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)
		assert.NotZero(t, begun.Challenge)

		nonce, ok := begun.Params.GetBlob(domain.TagNonce)
		require.True(t, ok, "generated nonce must surface in output params")

		require.NoError(t, begun.Operation.UpdateAad(ctx, []byte("header")))
		out, err := begun.Operation.Update(ctx, []byte("hello "))
		require.NoError(t, err)
		assert.Empty(t, out)

		ciphertext, err := begun.Operation.Finish(ctx, []byte("world"), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, ciphertext)

		decryptParams := append(beginParams.Clone(), domain.NewBlob(domain.TagNonce, nonce))
		begun, err = eng.Begin(ctx, domain.PurposeDecrypt, key.KeyBlob, decryptParams)
		require.NoError(t, err)

		require.NoError(t, begun.Operation.UpdateAad(ctx, []byte("header")))
		plaintext, err := begun.Operation.Finish(ctx, ciphertext, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello world"), plaintext)
	})

	t.Run("wrong AAD fails decryption", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)
		nonce, _ := begun.Params.GetBlob(domain.TagNonce)
		require.NoError(t, begun.Operation.UpdateAad(ctx, []byte("header")))
		ciphertext, err := begun.Operation.Finish(ctx, []byte("secret"), nil)
		require.NoError(t, err)

		decryptParams := append(beginParams.Clone(), domain.NewBlob(domain.TagNonce, nonce))
		begun, err = eng.Begin(ctx, domain.PurposeDecrypt, key.KeyBlob, decryptParams)
		require.NoError(t, err)
		require.NoError(t, begun.Operation.UpdateAad(ctx, []byte("other")))
		_, err = begun.Operation.Finish(ctx, ciphertext, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("AAD after data is rejected", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)
		_, err = begun.Operation.Update(ctx, []byte("data"))
		require.NoError(t, err)
		assert.ErrorIs(t, begun.Operation.UpdateAad(ctx, []byte("late")), domain.ErrInvalidArgument)
	})

	t.Run("decryption requires a nonce", func(t *testing.T) {
		_, err := eng.Begin(ctx, domain.PurposeDecrypt, key.KeyBlob, beginParams)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("caller nonce requires authorization", func(t *testing.T) {
		params := append(beginParams.Clone(), domain.NewBlob(domain.TagNonce, make([]byte, 12)))
		_, err := eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, params)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("operation is dead after finish", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)
		_, err = begun.Operation.Finish(ctx, []byte("data"), nil)
		require.NoError(t, err)

		_, err = begun.Operation.Update(ctx, []byte("more"))
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
		_, err = begun.Operation.Finish(ctx, nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
		assert.ErrorIs(t, begun.Operation.Abort(ctx), domain.ErrInvalidOperationHandle)
	})

	t.Run("unauthorized purpose", func(t *testing.T) {
		_, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, beginParams)
		assert.ErrorIs(t, err, domain.ErrUnsupportedPurpose)
	})
}

func TestHMACOperations(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	key, err := eng.GenerateKey(ctx, domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmHMAC)),
		domain.NewUint(domain.TagKeySize, 256),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeSign)),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeVerify)),
		domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		domain.NewUint(domain.TagMinMacLength, 128),
		domain.NewBool(domain.TagNoAuthRequired),
	}, nil)
	require.NoError(t, err)

	signParams := domain.AuthorizationSet{
		domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		domain.NewUint(domain.TagMacLength, 256),
	}

	t.Run("sign then verify", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, signParams)
		require.NoError(t, err)
		mac, err := begun.Operation.Finish(ctx, []byte("message"), nil)
		require.NoError(t, err)
		assert.Len(t, mac, 32)

		begun, err = eng.Begin(ctx, domain.PurposeVerify, key.KeyBlob, domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		})
		require.NoError(t, err)
		_, err = begun.Operation.Finish(ctx, []byte("message"), mac)
		assert.NoError(t, err)
	})

	t.Run("bad signature fails verification", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeVerify, key.KeyBlob, domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		})
		require.NoError(t, err)
		_, err = begun.Operation.Finish(ctx, []byte("message"), make([]byte, 32))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("truncated MAC", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
			domain.NewUint(domain.TagMacLength, 128),
		}
		begun, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, params)
		require.NoError(t, err)
		mac, err := begun.Operation.Finish(ctx, []byte("message"), nil)
		require.NoError(t, err)
		assert.Len(t, mac, 16)
	})

	t.Run("MAC_LENGTH below key minimum", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
			domain.NewUint(domain.TagMacLength, 64),
		}
		_, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, params)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("unauthorized digest", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA512)),
		}
		_, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, params)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestECDSAOperations(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	key, err := eng.GenerateKey(ctx, domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmEC)),
		domain.NewEnum(domain.TagEcCurve, uint64(domain.CurveP256)),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeSign)),
		domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		domain.NewBool(domain.TagNoAuthRequired),
	}, nil)
	require.NoError(t, err)

	t.Run("signature verifies against the certificate key", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		})
		require.NoError(t, err)

		message := []byte("signed payload")
		signature, err := begun.Operation.Finish(ctx, message, nil)
		require.NoError(t, err)

		cert, err := x509.ParseCertificate(key.CertificateChain[0])
		require.NoError(t, err)
		pub := cert.PublicKey.(*ecdsa.PublicKey)

		digest := sha256.Sum256(message)
		assert.True(t, ecdsa.VerifyASN1(pub, digest[:], signature))
	})

	t.Run("abort kills the operation", func(t *testing.T) {
		begun, err := eng.Begin(ctx, domain.PurposeSign, key.KeyBlob, domain.AuthorizationSet{
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		})
		require.NoError(t, err)
		require.NoError(t, begun.Operation.Abort(ctx))
		_, err = begun.Operation.Finish(ctx, nil, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidOperationHandle)
	})
}

func TestDeviceStateEnforcement(t *testing.T) {
	ctx := context.Background()

	lockedKeyParams := append(aesKeyParams(), domain.NewBool(domain.TagUnlockedDeviceRequired))
	earlyBootParams := append(aesKeyParams(), domain.NewBool(domain.TagEarlyBootOnly))
	beginParams := domain.AuthorizationSet{
		domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
	}

	t.Run("locked device blocks UNLOCKED_DEVICE_REQUIRED keys", func(t *testing.T) {
		eng := newTestEngine(t, testConfig())
		key, err := eng.GenerateKey(ctx, lockedKeyParams, nil)
		require.NoError(t, err)

		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)

		require.NoError(t, eng.DeviceLocked(ctx, false))
		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		assert.ErrorIs(t, err, domain.ErrDeviceLocked)
	})

	t.Run("early boot end blocks EARLY_BOOT_ONLY keys", func(t *testing.T) {
		eng := newTestEngine(t, testConfig())
		key, err := eng.GenerateKey(ctx, earlyBootParams, nil)
		require.NoError(t, err)

		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		require.NoError(t, err)

		require.NoError(t, eng.EarlyBootEnded(ctx))
		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		assert.ErrorIs(t, err, domain.ErrEarlyBootEnded)
	})

	t.Run("auth-bound key requires an auth token", func(t *testing.T) {
		eng := newTestEngine(t, testConfig())
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
			domain.NewUint(domain.TagKeySize, 256),
			domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeEncrypt)),
			domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
			domain.NewUint(domain.TagUserSecureID, 42),
		}
		key, err := eng.GenerateKey(ctx, params, nil)
		require.NoError(t, err)

		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, beginParams)
		assert.ErrorIs(t, err, domain.ErrUserNotAuthenticated)

		token := domain.HardwareAuthToken{Challenge: 1, UserID: 42}
		withToken := append(beginParams.Clone(),
			domain.NewBlob(domain.TagAuthToken, token.Serialize()),
		)
		_, err = eng.Begin(ctx, domain.PurposeEncrypt, key.KeyBlob, withToken)
		assert.NoError(t, err)
	})
}
