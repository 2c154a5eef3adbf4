package soft

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/json"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// wrappedKeyEnvelope is the transport format for securely imported keys.
//
// The sender generates an ephemeral 32-byte transport key, encrypts it to the
// receiver's RSA wrapping key with OAEP-SHA256, XORs it with a masking key
// shared out of band, and seals the key material with AES-256-GCM under the
// unmasked transport key. The serialized authorization description is bound
// as AEAD associated data, so the authorizations cannot be swapped without
// breaking authentication.
type wrappedKeyEnvelope struct {
	Version               int                     `json:"version"`
	EncryptedTransportKey []byte                  `json:"encrypted_transport_key"`
	Nonce                 []byte                  `json:"nonce"`
	KeyFormat             domain.KeyFormat        `json:"key_format"`
	Authorizations        domain.AuthorizationSet `json:"authorizations"`
	EncryptedKey          []byte                  `json:"encrypted_key"`
}

const wrappedKeyVersion = 0

// ImportWrappedKey unwraps key material transported under one of this
// engine's RSA wrapping keys and imports it with origin SECURELY_IMPORTED.
func (e *Engine) ImportWrappedKey(
	ctx context.Context,
	wrappedData []byte,
	wrappingKeyBlob []byte,
	maskingKey []byte,
	unwrappingParams domain.AuthorizationSet,
) (*engine.KeyResult, error) {
	var envelope wrappedKeyEnvelope
	if err := json.Unmarshal(wrappedData, &envelope); err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "malformed wrapped key data")
	}
	if envelope.Version != wrappedKeyVersion {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "unsupported wrapped key version")
	}

	wrappingKey, err := e.openWrappingKey(wrappingKeyBlob, unwrappingParams)
	if err != nil {
		return nil, err
	}

	transportKey, err := rsa.DecryptOAEP(
		sha256.New(), nil, wrappingKey, envelope.EncryptedTransportKey, nil,
	)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrDecryptionFailed, "failed to unwrap transport key")
	}
	defer cryptoDomain.Zero(transportKey)

	if len(maskingKey) > 0 {
		if len(maskingKey) != len(transportKey) {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, "masking key size mismatch")
		}
		for i := range transportKey {
			transportKey[i] ^= maskingKey[i]
		}
	}
	if len(transportKey) != 32 {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidKeySize, "transport key must be 32 bytes")
	}

	aad, err := json.Marshal(envelope.Authorizations)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "malformed key description")
	}

	block, err := aes.NewCipher(transportKey)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidKeySize, "invalid transport key")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrDecryptionFailed, "failed to initialize transport cipher")
	}

	material, err := aead.Open(nil, envelope.Nonce, envelope.EncryptedKey, aad)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrDecryptionFailed, "failed to decrypt wrapped key material")
	}
	defer cryptoDomain.Zero(material)

	return e.importKeyMaterial(ctx, envelope.Authorizations, envelope.KeyFormat, material, domain.OriginWrapped)
}

// openWrappingKey unseals the wrapping key blob and verifies it is an RSA key
// authorized for key wrapping with OAEP padding.
func (e *Engine) openWrappingKey(
	wrappingKeyBlob []byte,
	unwrappingParams domain.AuthorizationSet,
) (*rsa.PrivateKey, error) {
	payload, header, err := e.openBlob(wrappingKeyBlob, unwrappingParams)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(payload.KeyMaterial)

	if err := e.checkBlobVersion(header); err != nil {
		return nil, err
	}
	if payload.Algorithm != domain.AlgorithmRSA {
		return nil, apperrors.Wrap(domain.ErrUnsupportedPurpose, "wrapping key must be RSA")
	}
	if !payload.SwEnforced.ContainsEnum(domain.TagPurpose, uint64(domain.PurposeWrapKey)) {
		return nil, apperrors.Wrap(domain.ErrUnsupportedPurpose, "key is not authorized for wrapping")
	}
	if !payload.SwEnforced.ContainsEnum(domain.TagPadding, uint64(domain.PaddingRSAOAEP)) {
		return nil, apperrors.Wrap(domain.ErrUnsupportedPurpose, "wrapping key requires OAEP padding")
	}

	signer, err := parsePrivateKey(payload.KeyMaterial)
	if err != nil {
		return nil, err
	}
	key, ok := signer.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidKeyBlob, "wrapping key material is not RSA")
	}
	return key, nil
}
