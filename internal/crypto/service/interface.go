// Package service provides the cryptographic services backing key blob
// sealing: AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305) and KMS integration
// for the root sealing key.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// RootKeyProvider loads the root sealing key from wherever it is stored.
type RootKeyProvider interface {
	// Load returns the root sealing key. Callers own the returned key and must
	// zero it when done.
	Load(ctx context.Context) (*cryptoDomain.RootKey, error)
}
