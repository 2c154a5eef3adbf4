package soft

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	cryptoService "github.com/allisson/keymint/internal/crypto/service"
	"github.com/allisson/keymint/internal/keymint/domain"
)

func testConfig() Config {
	return Config{
		OsVersion:        150000,
		OsPatchlevel:     202508,
		VendorPatchlevel: 20250805,
		BlobAlgorithm:    cryptoDomain.AESGCM,
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()

	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	return newTestEngineWithKey(t, cfg, key)
}

func newTestEngineWithKey(t *testing.T, cfg Config, key []byte) *Engine {
	t.Helper()

	eng, err := NewEngine(
		cfg,
		&cryptoDomain.RootKey{ID: "test", Key: key},
		cryptoService.NewAEADManager(),
		slog.Default(),
	)
	require.NoError(t, err)
	return eng
}

func aesKeyParams() domain.AuthorizationSet {
	return domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
		domain.NewUint(domain.TagKeySize, 256),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeEncrypt)),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeDecrypt)),
		domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
		domain.NewUint(domain.TagMinMacLength, 128),
		domain.NewBool(domain.TagNoAuthRequired),
	}
}

func TestGenerateKey(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	t.Run("AES key", func(t *testing.T) {
		result, err := eng.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)
		assert.NotEmpty(t, result.KeyBlob)
		assert.Empty(t, result.HwEnforced)
		assert.Nil(t, result.CertificateChain)

		origin, ok := result.SwEnforced.GetUint(domain.TagOrigin)
		require.True(t, ok)
		assert.Equal(t, uint64(domain.OriginGenerated), origin)
		assert.True(t, result.SwEnforced.Contains(domain.TagCreationDatetime))
		assert.True(t, result.SwEnforced.Contains(domain.TagOsVersion))
		assert.True(t, result.SwEnforced.Contains(domain.TagBootPatchlevel))

		bootPatch, _ := result.SwEnforced.GetUint(domain.TagBootPatchlevel)
		assert.Equal(t, uint64(testConfig().OsPatchlevel*100+1), bootPatch)
	})

	t.Run("EC key has self-signed certificate", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmEC)),
			domain.NewEnum(domain.TagEcCurve, uint64(domain.CurveP256)),
			domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeSign)),
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
			domain.NewBool(domain.TagNoAuthRequired),
		}

		result, err := eng.GenerateKey(ctx, params, nil)
		require.NoError(t, err)
		require.Len(t, result.CertificateChain, 1)

		cert, err := x509.ParseCertificate(result.CertificateChain[0])
		require.NoError(t, err)
		assert.Equal(t, "Android Keystore Key", cert.Subject.CommonName)
		assert.Equal(t, cert.Subject.String(), cert.Issuer.String())
		_, ok := cert.PublicKey.(*ecdsa.PublicKey)
		assert.True(t, ok)
	})

	t.Run("missing algorithm", func(t *testing.T) {
		_, err := eng.GenerateKey(ctx, domain.AuthorizationSet{
			domain.NewUint(domain.TagKeySize, 256),
		}, nil)
		assert.ErrorIs(t, err, domain.ErrUnsupportedAlgorithm)
	})

	t.Run("invalid AES key size", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
			domain.NewUint(domain.TagKeySize, 137),
		}
		_, err := eng.GenerateKey(ctx, params, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("HMAC requires MIN_MAC_LENGTH", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmHMAC)),
			domain.NewUint(domain.TagKeySize, 256),
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		}
		_, err := eng.GenerateKey(ctx, params, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})
}

func TestGetKeyCharacteristics(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	t.Run("round trip", func(t *testing.T) {
		result, err := eng.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)

		sw, hw, err := eng.GetKeyCharacteristics(ctx, result.KeyBlob, nil)
		require.NoError(t, err)
		assert.True(t, sw.Equal(result.SwEnforced))
		assert.Empty(t, hw)
	})

	t.Run("application data binding", func(t *testing.T) {
		appBinding := domain.AuthorizationSet{
			domain.NewBlob(domain.TagApplicationID, []byte("app")),
			domain.NewBlob(domain.TagApplicationData, []byte("data")),
		}
		result, err := eng.GenerateKey(ctx, append(aesKeyParams(), appBinding...), nil)
		require.NoError(t, err)

		_, _, err = eng.GetKeyCharacteristics(ctx, result.KeyBlob, appBinding)
		require.NoError(t, err)

		// Missing or wrong binding is indistinguishable from a corrupt blob.
		_, _, err = eng.GetKeyCharacteristics(ctx, result.KeyBlob, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidKeyBlob)

		_, _, err = eng.GetKeyCharacteristics(ctx, result.KeyBlob, domain.AuthorizationSet{
			domain.NewBlob(domain.TagApplicationID, []byte("other")),
			domain.NewBlob(domain.TagApplicationData, []byte("data")),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidKeyBlob)
	})

	t.Run("stored set never contains app binding", func(t *testing.T) {
		appBinding := domain.AuthorizationSet{
			domain.NewBlob(domain.TagApplicationID, []byte("app")),
		}
		result, err := eng.GenerateKey(ctx, append(aesKeyParams(), appBinding...), nil)
		require.NoError(t, err)

		sw, _, err := eng.GetKeyCharacteristics(ctx, result.KeyBlob, appBinding)
		require.NoError(t, err)
		assert.False(t, sw.Contains(domain.TagApplicationID))
	})

	t.Run("tampered blob", func(t *testing.T) {
		result, err := eng.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)

		tampered := append([]byte(nil), result.KeyBlob...)
		tampered[len(tampered)-1] ^= 0x01
		_, _, err = eng.GetKeyCharacteristics(ctx, tampered, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidKeyBlob)
	})

	t.Run("truncated blob", func(t *testing.T) {
		_, _, err := eng.GetKeyCharacteristics(ctx, []byte{1, 2, 3}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidKeyBlob)
	})

	t.Run("foreign blob", func(t *testing.T) {
		other := newTestEngine(t, testConfig())
		result, err := other.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)

		_, _, err = eng.GetKeyCharacteristics(ctx, result.KeyBlob, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidKeyBlob)
	})
}

func TestUpgradeKey(t *testing.T) {
	ctx := context.Background()

	rootKey := make([]byte, 32)
	_, err := rand.Read(rootKey)
	require.NoError(t, err)

	oldCfg := testConfig()
	newCfg := testConfig()
	newCfg.OsPatchlevel = oldCfg.OsPatchlevel + 1

	oldEngine := newTestEngineWithKey(t, oldCfg, rootKey)
	newEngine := newTestEngineWithKey(t, newCfg, rootKey)

	result, err := oldEngine.GenerateKey(ctx, aesKeyParams(), nil)
	require.NoError(t, err)

	t.Run("stale blob requires upgrade", func(t *testing.T) {
		_, _, err := newEngine.GetKeyCharacteristics(ctx, result.KeyBlob, nil)
		assert.ErrorIs(t, err, domain.ErrKeyRequiresUpgrade)
	})

	t.Run("upgrade re-seals under current state", func(t *testing.T) {
		upgraded, err := newEngine.UpgradeKey(ctx, result.KeyBlob, nil)
		require.NoError(t, err)
		require.NotEmpty(t, upgraded)

		sw, _, err := newEngine.GetKeyCharacteristics(ctx, upgraded, nil)
		require.NoError(t, err)

		patchlevel, ok := sw.GetUint(domain.TagOsPatchlevel)
		require.True(t, ok)
		assert.Equal(t, uint64(newCfg.OsPatchlevel), patchlevel)
		bootPatch, _ := sw.GetUint(domain.TagBootPatchlevel)
		assert.Equal(t, uint64(newCfg.BootPatchlevel()), bootPatch)
	})

	t.Run("current blob upgrades to empty", func(t *testing.T) {
		current, err := newEngine.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)

		upgraded, err := newEngine.UpgradeKey(ctx, current.KeyBlob, nil)
		require.NoError(t, err)
		assert.Empty(t, upgraded)
	})

	t.Run("blob from the future is rejected", func(t *testing.T) {
		fresh, err := newEngine.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)

		_, err = oldEngine.UpgradeKey(ctx, fresh.KeyBlob, nil)
		assert.ErrorIs(t, err, domain.ErrKeyBlobTooNew)

		_, _, err = oldEngine.GetKeyCharacteristics(ctx, fresh.KeyBlob, nil)
		assert.ErrorIs(t, err, domain.ErrKeyBlobTooNew)
	})
}

func TestImportKey(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	t.Run("raw AES material", func(t *testing.T) {
		material := make([]byte, 32)
		_, err := rand.Read(material)
		require.NoError(t, err)

		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
			domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeEncrypt)),
			domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeDecrypt)),
			domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
			domain.NewBool(domain.TagNoAuthRequired),
		}

		result, err := eng.ImportKey(ctx, params, domain.FormatRaw, material)
		require.NoError(t, err)

		origin, _ := result.SwEnforced.GetUint(domain.TagOrigin)
		assert.Equal(t, uint64(domain.OriginImported), origin)

		// KEY_SIZE derived from the material.
		keySize, ok := result.SwEnforced.GetUint(domain.TagKeySize)
		require.True(t, ok)
		assert.Equal(t, uint64(256), keySize)
	})

	t.Run("declared KEY_SIZE must match material", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
			domain.NewUint(domain.TagKeySize, 256),
		}
		_, err := eng.ImportKey(ctx, params, domain.FormatRaw, make([]byte, 16))
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("symmetric import rejects PKCS8 format", func(t *testing.T) {
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
		}
		_, err := eng.ImportKey(ctx, params, domain.FormatPKCS8, make([]byte, 32))
		assert.ErrorIs(t, err, domain.ErrUnsupportedKeyFormat)
	})

	t.Run("PKCS8 EC material derives curve", func(t *testing.T) {
		material := mustECMaterial(t)
		params := domain.AuthorizationSet{
			domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmEC)),
			domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeSign)),
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		}

		result, err := eng.ImportKey(ctx, params, domain.FormatPKCS8, material)
		require.NoError(t, err)

		curve, ok := result.SwEnforced.GetUint(domain.TagEcCurve)
		require.True(t, ok)
		assert.Equal(t, uint64(domain.CurveP256), curve)
		require.Len(t, result.CertificateChain, 1)
	})
}

func TestEngineState(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	assert.Equal(t, domain.SecurityLevelSoftware, eng.SecurityLevel())

	t.Run("entropy", func(t *testing.T) {
		assert.NoError(t, eng.AddRngEntropy(ctx, make([]byte, 2048)))
		assert.ErrorIs(t, eng.AddRngEntropy(ctx, make([]byte, 2049)), domain.ErrRejectedEntropy)
	})

	t.Run("delete is a no-op", func(t *testing.T) {
		result, err := eng.GenerateKey(ctx, aesKeyParams(), nil)
		require.NoError(t, err)
		assert.NoError(t, eng.DeleteKey(ctx, result.KeyBlob))
		assert.NoError(t, eng.DeleteAllKeys(ctx))

		// The blob still opens; there is no rollback-resistant storage.
		_, _, err = eng.GetKeyCharacteristics(ctx, result.KeyBlob, nil)
		assert.NoError(t, err)
	})
}

func mustECMaterial(t *testing.T) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	material, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return material
}
