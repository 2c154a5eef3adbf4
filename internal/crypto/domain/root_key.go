package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
)

// Keeper abstracts a KMS-backed key wrapper. *secrets.Keeper from
// gocloud.dev/secrets implements it, so the root sealing key can live in any
// supported provider (Vault, cloud KMS, or a local base64 key for tests).
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// RootKey is the root of the key blob sealing hierarchy. Every key blob the
// device hands out is sealed under a key derived from it, so losing the root
// key invalidates all previously issued blobs.
type RootKey struct {
	ID  string
	Key []byte
}

// Close zeros the key material.
func (r *RootKey) Close() {
	Zero(r.Key)
	r.Key = nil
}

// LoadRootKeyFromEnv loads the root sealing key from the ROOT_SEALING_KEY
// environment variable: a standard-base64 encoding of exactly 32 bytes.
//
// Intended for development and tests. Production deployments should store a
// wrapped root key in a KMS and unwrap it through a Keeper instead.
func LoadRootKeyFromEnv() (*RootKey, error) {
	raw := os.Getenv("ROOT_SEALING_KEY")
	if raw == "" {
		return nil, ErrRootKeyNotSet
	}

	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRootKeyBase64, err)
	}
	if len(key) != 32 {
		Zero(key)
		return nil, fmt.Errorf("%w: root key must be 32 bytes, got %d", ErrInvalidKeySize, len(key))
	}

	return &RootKey{ID: "env", Key: key}, nil
}
