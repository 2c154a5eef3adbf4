package domain

import (
	"github.com/allisson/keymint/internal/errors"
)

// Key management error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so
// callers can branch on intent (invalid input, exhaustion, internal fault)
// while the HTTP layer maps them to status codes. Engine errors propagate
// verbatim; nothing here retries or rewrites them.
var (
	// ErrInvalidKeyBlob indicates the key blob failed authentication or parsing.
	// Returned for truncated, tampered or foreign blobs, and for blobs bound to
	// application id/data that was not supplied.
	ErrInvalidKeyBlob = errors.Wrap(errors.ErrInvalidInput, "invalid key blob")

	// ErrUnsupportedKeyFormat indicates an import was requested with a key
	// material format the algorithm does not accept.
	ErrUnsupportedKeyFormat = errors.Wrap(errors.ErrInvalidInput, "unsupported key format")

	// ErrUnsupportedAlgorithm indicates the requested key algorithm is not
	// provided by this implementation.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrUnsupportedPurpose indicates the begin purpose is not permitted for
	// the key or not implemented for its algorithm.
	ErrUnsupportedPurpose = errors.Wrap(errors.ErrInvalidInput, "unsupported purpose for key")

	// ErrInvalidArgument indicates a malformed or out-of-range request param.
	ErrInvalidArgument = errors.Wrap(errors.ErrInvalidInput, "invalid argument")

	// ErrTooManyOperations indicates the bounded operation table is full. The
	// caller must finish or abort an existing operation before beginning a new
	// one; nothing is evicted implicitly.
	ErrTooManyOperations = errors.Wrap(errors.ErrResourceExhausted, "too many concurrent operations")

	// ErrInvalidOperationHandle indicates the handle does not reference a live
	// operation: never issued, already finished, or aborted.
	ErrInvalidOperationHandle = errors.Wrap(errors.ErrNotFound, "invalid operation handle")

	// ErrKeyRequiresUpgrade indicates the blob was sealed under older system
	// parameters and must pass through upgradeKey before use.
	ErrKeyRequiresUpgrade = errors.Wrap(errors.ErrInvalidInput, "key blob requires upgrade")

	// ErrKeyBlobTooNew indicates the blob was sealed under newer system
	// parameters than the current ones; it cannot be used or upgraded here.
	ErrKeyBlobTooNew = errors.Wrap(errors.ErrInvalidInput, "key blob sealed under newer system state")

	// ErrDeviceLocked indicates an UNLOCKED_DEVICE_REQUIRED key was used while
	// the device is locked.
	ErrDeviceLocked = errors.Wrap(errors.ErrUnauthorized, "device is locked")

	// ErrEarlyBootEnded indicates an EARLY_BOOT_ONLY key was used after the
	// early boot window closed.
	ErrEarlyBootEnded = errors.Wrap(errors.ErrUnauthorized, "early boot has ended")

	// ErrUserNotAuthenticated indicates a key requiring user authentication
	// was used without a valid auth token.
	ErrUserNotAuthenticated = errors.Wrap(errors.ErrUnauthorized, "key user not authenticated")

	// ErrRejectedEntropy indicates the engine refused the supplied entropy.
	ErrRejectedEntropy = errors.Wrap(errors.ErrInvalidInput, "entropy rejected")

	// ErrClassifierContract indicates the engine response violated the
	// classifier contract: hardware-enforced tags present for a pure software
	// security level. This is a programming error, not a recoverable condition;
	// the call aborts and no characteristics are produced.
	ErrClassifierContract = errors.Wrap(errors.ErrInternalFault, "hardware-enforced tags present for software security level")

	// ErrUnknownTag indicates a tag outside the closed vocabulary reached the
	// classifier. The registry is total over the vocabulary, so this can only
	// happen when the engine and the registry disagree about the vocabulary.
	ErrUnknownTag = errors.Wrap(errors.ErrInternalFault, "tag not present in authorization registry")

	// ErrForbiddenTag indicates a tag that must never appear in a
	// software-enforced response (the registry's Invalid bucket) did appear.
	ErrForbiddenTag = errors.Wrap(errors.ErrInternalFault, "forbidden tag in software-enforced set")
)
