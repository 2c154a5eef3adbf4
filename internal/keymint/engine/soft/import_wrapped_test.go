package soft

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	"github.com/allisson/keymint/internal/keymint/domain"
)

func wrappingKeyParams() domain.AuthorizationSet {
	return domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmRSA)),
		domain.NewUint(domain.TagKeySize, 2048),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeWrapKey)),
		domain.NewEnum(domain.TagPadding, uint64(domain.PaddingRSAOAEP)),
		domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
		domain.NewBool(domain.TagNoAuthRequired),
	}
}

// wrapKeyMaterial builds the transport envelope the way a remote sender
// would: ephemeral transport key OAEP-encrypted to the wrapping certificate,
// masked, then used to seal the material with the authorization description
// as AAD.
func wrapKeyMaterial(
	t *testing.T,
	wrappingCert []byte,
	maskingKey []byte,
	material []byte,
	format domain.KeyFormat,
	auths domain.AuthorizationSet,
) []byte {
	t.Helper()

	cert, err := x509.ParseCertificate(wrappingCert)
	require.NoError(t, err)
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	require.True(t, ok)

	transportKey := make([]byte, 32)
	_, err = rand.Read(transportKey)
	require.NoError(t, err)

	masked := append([]byte(nil), transportKey...)
	for i := range masked {
		masked[i] ^= maskingKey[i]
	}
	encryptedTransportKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, masked, nil)
	require.NoError(t, err)

	aad, err := json.Marshal(auths)
	require.NoError(t, err)

	block, err := aes.NewCipher(transportKey)
	require.NoError(t, err)
	aead, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := make([]byte, aead.NonceSize())
	_, err = rand.Read(nonce)
	require.NoError(t, err)

	envelope, err := json.Marshal(wrappedKeyEnvelope{
		Version:               wrappedKeyVersion,
		EncryptedTransportKey: encryptedTransportKey,
		Nonce:                 nonce,
		KeyFormat:             format,
		Authorizations:        auths,
		EncryptedKey:          aead.Seal(nil, nonce, material, aad),
	})
	require.NoError(t, err)
	return envelope
}

func TestImportWrappedKey(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, testConfig())

	wrappingKey, err := eng.GenerateKey(ctx, wrappingKeyParams(), nil)
	require.NoError(t, err)
	require.Len(t, wrappingKey.CertificateChain, 1)

	maskingKey := make([]byte, 32)
	_, err = rand.Read(maskingKey)
	require.NoError(t, err)

	material := make([]byte, 32)
	_, err = rand.Read(material)
	require.NoError(t, err)

	wrappedAuths := domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(domain.AlgorithmAES)),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeEncrypt)),
		domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeDecrypt)),
		domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
		domain.NewBool(domain.TagNoAuthRequired),
	}

	t.Run("unwraps and imports", func(t *testing.T) {
		wrapped := wrapKeyMaterial(
			t, wrappingKey.CertificateChain[0], maskingKey, material, domain.FormatRaw, wrappedAuths,
		)

		result, err := eng.ImportWrappedKey(ctx, wrapped, wrappingKey.KeyBlob, maskingKey, nil)
		require.NoError(t, err)

		origin, ok := result.SwEnforced.GetUint(domain.TagOrigin)
		require.True(t, ok)
		assert.Equal(t, uint64(domain.OriginWrapped), origin)

		// The imported key is usable.
		begun, err := eng.Begin(ctx, domain.PurposeEncrypt, result.KeyBlob, domain.AuthorizationSet{
			domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)),
		})
		require.NoError(t, err)
		_, err = begun.Operation.Finish(ctx, []byte("data"), nil)
		assert.NoError(t, err)
	})

	t.Run("wrong masking key fails", func(t *testing.T) {
		wrapped := wrapKeyMaterial(
			t, wrappingKey.CertificateChain[0], maskingKey, material, domain.FormatRaw, wrappedAuths,
		)

		wrongMask := make([]byte, 32)
		_, err := eng.ImportWrappedKey(ctx, wrapped, wrappingKey.KeyBlob, wrongMask, nil)
		assert.Error(t, err)
	})

	t.Run("wrapping key without WRAP_KEY purpose is rejected", func(t *testing.T) {
		params := wrappingKeyParams()
		noWrap := make(domain.AuthorizationSet, 0, len(params))
		for _, p := range params {
			if p.Tag == domain.TagPurpose {
				continue
			}
			noWrap = append(noWrap, p)
		}
		noWrap = append(noWrap, domain.NewEnum(domain.TagPurpose, uint64(domain.PurposeSign)))

		signingKey, err := eng.GenerateKey(ctx, noWrap, nil)
		require.NoError(t, err)

		wrapped := wrapKeyMaterial(
			t, signingKey.CertificateChain[0], maskingKey, material, domain.FormatRaw, wrappedAuths,
		)
		_, err = eng.ImportWrappedKey(ctx, wrapped, signingKey.KeyBlob, maskingKey, nil)
		assert.ErrorIs(t, err, domain.ErrUnsupportedPurpose)
	})

	t.Run("malformed wrapped data", func(t *testing.T) {
		_, err := eng.ImportWrappedKey(ctx, []byte("{not json"), wrappingKey.KeyBlob, maskingKey, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("tampered authorization description fails authentication", func(t *testing.T) {
		wrapped := wrapKeyMaterial(
			t, wrappingKey.CertificateChain[0], maskingKey, material, domain.FormatRaw, wrappedAuths,
		)

		var envelope wrappedKeyEnvelope
		require.NoError(t, json.Unmarshal(wrapped, &envelope))
		envelope.Authorizations = append(envelope.Authorizations,
			domain.NewBool(domain.TagExportable),
		)
		tampered, err := json.Marshal(envelope)
		require.NoError(t, err)

		_, err = eng.ImportWrappedKey(ctx, tampered, wrappingKey.KeyBlob, maskingKey, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})
}
