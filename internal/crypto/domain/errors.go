package domain

import (
	"github.com/allisson/keymint/internal/errors"
)

// Cryptographic operation error definitions.
//
// These wrap standard errors from internal/errors so callers can branch on
// intent while the transport layer maps them to status codes.
var (
	// ErrUnsupportedAlgorithm indicates the requested sealing algorithm is not
	// one of AESGCM or ChaCha20.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a sealing key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an unseal operation failed: wrong key,
	// tampered ciphertext, or a bad nonce. The specific cause is deliberately
	// not disclosed.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrRootKeyNotSet indicates no root sealing key was configured.
	ErrRootKeyNotSet = errors.Wrap(errors.ErrInvalidInput, "ROOT_SEALING_KEY environment variable is not set")

	// ErrInvalidRootKeyBase64 indicates the configured root key is not valid
	// standard base64.
	ErrInvalidRootKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid base64 encoding for root key")
)
