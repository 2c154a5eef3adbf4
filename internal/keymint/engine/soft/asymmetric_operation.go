package soft

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"
	"hash"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// asymmetricOperation is an EC or RSA private key operation: signing for
// both, decryption for RSA. Public key operations (verify, encrypt) belong
// to the caller, which holds the certificate.
type asymmetricOperation struct {
	purpose domain.KeyPurpose
	signer  crypto.Signer
	hash    crypto.Hash // 0 when signing raw input (DIGEST_NONE)
	hasher  hash.Hash   // nil when hash is 0
	padding domain.PaddingMode
	buf     bytes.Buffer // raw input for DIGEST_NONE signing and RSA decryption
	done    bool
}

// newAsymmetricOperation validates purpose, digest and padding against the
// key authorizations and builds the operation.
func newAsymmetricOperation(
	purpose domain.KeyPurpose,
	payload *blobPayload,
	params domain.AuthorizationSet,
) (engine.Operation, error) {
	signer, err := parsePrivateKey(payload.KeyMaterial)
	if err != nil {
		return nil, err
	}

	auths := payload.SwEnforced
	op := &asymmetricOperation{purpose: purpose, signer: signer}

	switch purpose {
	case domain.PurposeSign:
		digest, err := opDigest(auths, params)
		if err != nil {
			return nil, err
		}
		if digest != domain.DigestNone {
			h, err := digestHash(digest)
			if err != nil {
				return nil, err
			}
			op.hash = h
			op.hasher = h.New()
		}

		if payload.Algorithm == domain.AlgorithmRSA {
			padding, err := opPadding(auths, params)
			if err != nil {
				return nil, err
			}
			if padding != domain.PaddingRSAPKCS1Sign && padding != domain.PaddingRSAPSS {
				return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported signing padding %d", padding))
			}
			if op.hash == 0 {
				return nil, apperrors.Wrap(domain.ErrInvalidArgument, "RSA signing requires a digest")
			}
			op.padding = padding
		}

	case domain.PurposeDecrypt:
		if payload.Algorithm != domain.AlgorithmRSA {
			return nil, domain.ErrUnsupportedPurpose
		}
		padding, err := opPadding(auths, params)
		if err != nil {
			return nil, err
		}
		if padding != domain.PaddingRSAOAEP && padding != domain.PaddingRSAPKCS1Crypt {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported decryption padding %d", padding))
		}
		op.padding = padding

	default:
		return nil, domain.ErrUnsupportedPurpose
	}

	return op, nil
}

// opPadding resolves the padding mode for an operation, requiring it to be
// one the key authorizes when the key constrains paddings.
func opPadding(auths, params domain.AuthorizationSet) (domain.PaddingMode, error) {
	padding, ok := params.GetUint(domain.TagPadding)
	if !ok {
		return 0, apperrors.Wrap(domain.ErrInvalidArgument, "PADDING tag is required")
	}
	if auths.Contains(domain.TagPadding) && !auths.ContainsEnum(domain.TagPadding, padding) {
		return 0, apperrors.Wrap(domain.ErrInvalidArgument, "padding not authorized for key")
	}
	return domain.PaddingMode(padding), nil
}

// UpdateAad is not meaningful for asymmetric operations.
func (o *asymmetricOperation) UpdateAad(_ context.Context, _ []byte) error {
	return apperrors.Wrap(domain.ErrInvalidArgument, "AAD not supported for asymmetric operations")
}

// Update streams input into the digest, or buffers it for raw signing and
// decryption.
func (o *asymmetricOperation) Update(_ context.Context, input []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	if o.hasher != nil {
		o.hasher.Write(input)
	} else {
		o.buf.Write(input)
	}
	return nil, nil
}

// Finish produces the signature or the decrypted plaintext.
func (o *asymmetricOperation) Finish(_ context.Context, input, _ []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	o.done = true
	defer zeroSigner(o.signer)
	if o.hasher != nil {
		o.hasher.Write(input)
	} else {
		o.buf.Write(input)
	}

	if o.purpose == domain.PurposeDecrypt {
		return o.decrypt()
	}
	return o.sign()
}

func (o *asymmetricOperation) sign() ([]byte, error) {
	var digest []byte
	if o.hasher != nil {
		digest = o.hasher.Sum(nil)
	} else {
		digest = o.buf.Bytes()
	}

	var opts crypto.SignerOpts = o.hash
	if o.padding == domain.PaddingRSAPSS {
		opts = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: o.hash}
	}

	signature, err := o.signer.Sign(rand.Reader, digest, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signature, nil
}

func (o *asymmetricOperation) decrypt() ([]byte, error) {
	key, ok := o.signer.(*rsa.PrivateKey)
	if !ok {
		return nil, domain.ErrUnsupportedPurpose
	}

	var (
		plaintext []byte
		err       error
	)
	if o.padding == domain.PaddingRSAOAEP {
		plaintext, err = rsa.DecryptOAEP(sha256.New(), nil, key, o.buf.Bytes(), nil)
	} else {
		plaintext, err = rsa.DecryptPKCS1v15(nil, key, o.buf.Bytes())
	}
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// Abort discards the operation state.
func (o *asymmetricOperation) Abort(_ context.Context) error {
	if o.done {
		return domain.ErrInvalidOperationHandle
	}
	o.done = true
	o.buf.Reset()
	zeroSigner(o.signer)
	return nil
}

// zeroSigner clears EC private scalar material. RSA keys hold big.Ints that
// cannot be reliably zeroed; they are left to the garbage collector.
func zeroSigner(signer crypto.Signer) {
	if key, ok := signer.(*ecdsa.PrivateKey); ok && key.D != nil {
		key.D.SetInt64(0)
	}
}
