package service

import (
	"context"
	"encoding/base64"
	"fmt"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
)

// EnvRootKeyProvider loads the root sealing key directly from the
// environment. Suitable for development and tests.
type EnvRootKeyProvider struct{}

// NewEnvRootKeyProvider creates an EnvRootKeyProvider.
func NewEnvRootKeyProvider() *EnvRootKeyProvider {
	return &EnvRootKeyProvider{}
}

// Load reads ROOT_SEALING_KEY from the environment.
func (p *EnvRootKeyProvider) Load(_ context.Context) (*cryptoDomain.RootKey, error) {
	return cryptoDomain.LoadRootKeyFromEnv()
}

// KMSRootKeyProvider unwraps a keeper-wrapped root sealing key. The wrapped
// key is stored as base64 ciphertext produced by the keeper's Encrypt; only
// the KMS ever sees the plaintext outside process memory.
type KMSRootKeyProvider struct {
	kms        KMSService
	keyURI     string
	wrappedKey string
}

// NewKMSRootKeyProvider creates a KMSRootKeyProvider for the given provider
// key URI and base64-encoded wrapped root key.
func NewKMSRootKeyProvider(kms KMSService, keyURI, wrappedKey string) *KMSRootKeyProvider {
	return &KMSRootKeyProvider{kms: kms, keyURI: keyURI, wrappedKey: wrappedKey}
}

// Load opens the keeper, decrypts the wrapped root key and validates its size.
func (p *KMSRootKeyProvider) Load(ctx context.Context) (*cryptoDomain.RootKey, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(p.wrappedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidRootKeyBase64, err)
	}

	keeper, err := p.kms.OpenKeeper(ctx, p.keyURI)
	if err != nil {
		return nil, err
	}
	defer func() { _ = keeper.Close() }()

	key, err := keeper.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap root key: %w", err)
	}
	if len(key) != 32 {
		cryptoDomain.Zero(key)
		return nil, fmt.Errorf(
			"%w: root key must be 32 bytes, got %d",
			cryptoDomain.ErrInvalidKeySize,
			len(key),
		)
	}

	return &cryptoDomain.RootKey{ID: p.keyURI, Key: key}, nil
}
