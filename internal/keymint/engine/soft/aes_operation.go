package soft

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// aesOperation is an AES-GCM encrypt or decrypt operation. Input is buffered
// until finish because GCM needs the whole message to seal or verify.
type aesOperation struct {
	purpose domain.KeyPurpose
	aead    cipher.AEAD
	nonce   []byte
	aad     bytes.Buffer
	data    bytes.Buffer
	sealed  bool
	done    bool
}

// newAESOperation validates the begin params against the key authorizations
// and builds the operation. For encryption without a caller nonce, the
// generated nonce is returned in the output params.
func newAESOperation(
	purpose domain.KeyPurpose,
	payload *blobPayload,
	params domain.AuthorizationSet,
) (engine.Operation, domain.AuthorizationSet, error) {
	if purpose != domain.PurposeEncrypt && purpose != domain.PurposeDecrypt {
		return nil, nil, domain.ErrUnsupportedPurpose
	}

	auths := payload.SwEnforced

	mode, ok := params.GetUint(domain.TagBlockMode)
	if !ok {
		return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "BLOCK_MODE tag is required")
	}
	if auths.Contains(domain.TagBlockMode) && !auths.ContainsEnum(domain.TagBlockMode, mode) {
		return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "block mode not authorized for key")
	}
	if domain.BlockMode(mode) != domain.BlockModeGCM {
		return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported block mode %d", mode))
	}

	tagBits := uint64(128)
	if declared, ok := params.GetUint(domain.TagMacLength); ok {
		tagBits = declared
	}
	if minMac, ok := auths.GetUint(domain.TagMinMacLength); ok && tagBits < minMac {
		return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "MAC_LENGTH below key minimum")
	}
	if tagBits < 96 || tagBits > 128 || tagBits%8 != 0 {
		return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported MAC_LENGTH %d", tagBits))
	}

	block, err := aes.NewCipher(payload.KeyMaterial)
	if err != nil {
		return nil, nil, domain.ErrInvalidKeyBlob
	}
	aead, err := cipher.NewGCMWithTagSize(block, int(tagBits/8))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GCM: %w", err)
	}

	op := &aesOperation{purpose: purpose, aead: aead}

	var outParams domain.AuthorizationSet
	callerNonce, hasCallerNonce := params.GetBlob(domain.TagNonce)
	switch purpose {
	case domain.PurposeEncrypt:
		if hasCallerNonce {
			if !auths.Contains(domain.TagCallerNonce) {
				return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "caller nonce not authorized for key")
			}
			if len(callerNonce) != aead.NonceSize() {
				return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "invalid nonce size")
			}
			op.nonce = append([]byte(nil), callerNonce...)
		} else {
			op.nonce = make([]byte, aead.NonceSize())
			if _, err := rand.Read(op.nonce); err != nil {
				return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
			}
			outParams = domain.AuthorizationSet{domain.NewBlob(domain.TagNonce, op.nonce)}
		}
	case domain.PurposeDecrypt:
		if !hasCallerNonce || len(callerNonce) != aead.NonceSize() {
			return nil, nil, apperrors.Wrap(domain.ErrInvalidArgument, "NONCE tag is required for decryption")
		}
		op.nonce = append([]byte(nil), callerNonce...)
	}

	return op, outParams, nil
}

// UpdateAad feeds associated data. Rejected once message data has arrived,
// since GCM processes all AAD first.
func (o *aesOperation) UpdateAad(_ context.Context, aad []byte) error {
	if o.done {
		return domain.ErrInvalidOperationHandle
	}
	if o.sealed {
		return apperrors.Wrap(domain.ErrInvalidArgument, "AAD must precede message data")
	}
	o.aad.Write(aad)
	return nil
}

// Update buffers message data. Output is produced only at finish.
func (o *aesOperation) Update(_ context.Context, input []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	o.sealed = true
	o.data.Write(input)
	return nil, nil
}

// Finish seals or opens the buffered message. The operation is dead
// afterwards regardless of the outcome.
func (o *aesOperation) Finish(_ context.Context, input, _ []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	o.done = true
	o.data.Write(input)

	if o.purpose == domain.PurposeEncrypt {
		return o.aead.Seal(nil, o.nonce, o.data.Bytes(), o.aad.Bytes()), nil
	}

	plaintext, err := o.aead.Open(nil, o.nonce, o.data.Bytes(), o.aad.Bytes())
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Abort discards the operation state.
func (o *aesOperation) Abort(_ context.Context) error {
	if o.done {
		return domain.ErrInvalidOperationHandle
	}
	o.done = true
	o.data.Reset()
	o.aad.Reset()
	return nil
}
