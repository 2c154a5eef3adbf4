package soft

import (
	"context"
	"crypto/hmac"
	"fmt"
	"hash"

	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// hmacOperation is an HMAC sign or verify operation. Input streams directly
// into the MAC; only the comparison is deferred to finish.
type hmacOperation struct {
	purpose   domain.KeyPurpose
	mac       hash.Hash
	macLength int // output bytes for signing
	minMac    int // minimum acceptable signature bytes for verification
	done      bool
}

// newHMACOperation validates digest and MAC length against the key
// authorizations and builds the operation.
func newHMACOperation(
	purpose domain.KeyPurpose,
	payload *blobPayload,
	params domain.AuthorizationSet,
) (engine.Operation, error) {
	if purpose != domain.PurposeSign && purpose != domain.PurposeVerify {
		return nil, domain.ErrUnsupportedPurpose
	}

	auths := payload.SwEnforced

	digest, err := opDigest(auths, params)
	if err != nil {
		return nil, err
	}
	h, err := digestHash(digest)
	if err != nil {
		return nil, err
	}

	minMac, ok := auths.GetUint(domain.TagMinMacLength)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidKeyBlob, "HMAC key lacks MIN_MAC_LENGTH")
	}

	op := &hmacOperation{
		purpose: purpose,
		mac:     hmac.New(h.New, payload.KeyMaterial),
		minMac:  int(minMac / 8),
	}

	if purpose == domain.PurposeSign {
		macBits := uint64(h.Size()) * 8
		if declared, ok := params.GetUint(domain.TagMacLength); ok {
			macBits = declared
		}
		if macBits%8 != 0 || macBits > uint64(h.Size())*8 {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported MAC_LENGTH %d", macBits))
		}
		if macBits < minMac {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, "MAC_LENGTH below key minimum")
		}
		op.macLength = int(macBits / 8)
	}

	return op, nil
}

// UpdateAad is not meaningful for MAC operations.
func (o *hmacOperation) UpdateAad(_ context.Context, _ []byte) error {
	return apperrors.Wrap(domain.ErrInvalidArgument, "AAD not supported for HMAC operations")
}

// Update streams input into the MAC.
func (o *hmacOperation) Update(_ context.Context, input []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	o.mac.Write(input)
	return nil, nil
}

// Finish produces the (possibly truncated) MAC for signing, or verifies the
// provided signature in constant time for verification.
func (o *hmacOperation) Finish(_ context.Context, input, signature []byte) ([]byte, error) {
	if o.done {
		return nil, domain.ErrInvalidOperationHandle
	}
	o.done = true
	o.mac.Write(input)
	full := o.mac.Sum(nil)

	if o.purpose == domain.PurposeSign {
		return full[:o.macLength], nil
	}

	if len(signature) < o.minMac || len(signature) > len(full) {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "signature length out of range")
	}
	if !hmac.Equal(signature, full[:len(signature)]) {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "MAC verification failed")
	}
	return nil, nil
}

// Abort discards the operation state.
func (o *hmacOperation) Abort(_ context.Context) error {
	if o.done {
		return domain.ErrInvalidOperationHandle
	}
	o.done = true
	return nil
}
