package soft

import (
	"context"
	"crypto"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"hash"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// Begin opens the key blob, enforces the key's usage authorizations and
// starts a crypto operation. The hidden app binding comes from the begin
// params, like every other blob access.
func (e *Engine) Begin(
	_ context.Context,
	purpose domain.KeyPurpose,
	keyBlob []byte,
	params domain.AuthorizationSet,
) (*engine.BeginOp, error) {
	payload, header, err := e.openBlob(keyBlob, params)
	if err != nil {
		return nil, err
	}

	if err := e.checkBlobVersion(header); err != nil {
		cryptoDomain.Zero(payload.KeyMaterial)
		return nil, err
	}
	if err := e.checkBeginAuthorizations(purpose, payload.SwEnforced, params); err != nil {
		cryptoDomain.Zero(payload.KeyMaterial)
		return nil, err
	}

	var (
		op        engine.Operation
		outParams domain.AuthorizationSet
	)
	switch payload.Algorithm {
	case domain.AlgorithmAES:
		op, outParams, err = newAESOperation(purpose, payload, params)
	case domain.AlgorithmHMAC:
		op, err = newHMACOperation(purpose, payload, params)
	case domain.AlgorithmEC, domain.AlgorithmRSA:
		op, err = newAsymmetricOperation(purpose, payload, params)
	default:
		err = apperrors.Wrap(domain.ErrUnsupportedAlgorithm, fmt.Sprintf("algorithm %d", payload.Algorithm))
	}
	cryptoDomain.Zero(payload.KeyMaterial)
	if err != nil {
		return nil, err
	}

	challenge, err := randomChallenge()
	if err != nil {
		return nil, err
	}

	return &engine.BeginOp{Operation: op, Params: outParams, Challenge: challenge}, nil
}

// checkBeginAuthorizations enforces the key authorizations that gate
// operation start: purpose membership, device lock state, the early boot
// window and user authentication.
func (e *Engine) checkBeginAuthorizations(
	purpose domain.KeyPurpose,
	auths domain.AuthorizationSet,
	params domain.AuthorizationSet,
) error {
	if !auths.ContainsEnum(domain.TagPurpose, uint64(purpose)) {
		return domain.ErrUnsupportedPurpose
	}
	if auths.Contains(domain.TagUnlockedDeviceRequired) && e.locked() {
		return domain.ErrDeviceLocked
	}
	if auths.Contains(domain.TagEarlyBootOnly) && e.bootWindowClosed() {
		return domain.ErrEarlyBootEnded
	}
	if auths.Contains(domain.TagUserSecureID) && !auths.Contains(domain.TagNoAuthRequired) {
		if !params.Contains(domain.TagAuthToken) {
			return domain.ErrUserNotAuthenticated
		}
	}
	return nil
}

// randomChallenge draws the challenge echoed into auth and timestamp tokens.
func randomChallenge() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("failed to generate challenge: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

// opDigest resolves the digest for an operation, requiring it to be one the
// key authorizes when the key constrains digests.
func opDigest(auths, params domain.AuthorizationSet) (domain.Digest, error) {
	digest, ok := params.GetUint(domain.TagDigest)
	if !ok {
		return 0, apperrors.Wrap(domain.ErrInvalidArgument, "DIGEST tag is required")
	}
	if auths.Contains(domain.TagDigest) && !auths.ContainsEnum(domain.TagDigest, digest) {
		return 0, apperrors.Wrap(domain.ErrInvalidArgument, "digest not authorized for key")
	}
	return domain.Digest(digest), nil
}

// digestHash maps a digest to its stdlib hash. MD5 and SHA-1 are not offered
// for new keys.
func digestHash(digest domain.Digest) (crypto.Hash, error) {
	switch digest {
	case domain.DigestSHA224:
		return crypto.SHA224, nil
	case domain.DigestSHA256:
		return crypto.SHA256, nil
	case domain.DigestSHA384:
		return crypto.SHA384, nil
	case domain.DigestSHA512:
		return crypto.SHA512, nil
	default:
		return 0, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported digest %d", digest))
	}
}

// hmacHash resolves the digest in an authorization set to a hash constructor.
// Used both at key creation (to validate the key's digest) and at begin.
func hmacHash(set domain.AuthorizationSet) (func() hash.Hash, error) {
	digest, ok := set.GetUint(domain.TagDigest)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "DIGEST tag is required")
	}
	h, err := digestHash(domain.Digest(digest))
	if err != nil {
		return nil, err
	}
	return h.New, nil
}
