// Package engine defines the contract between the device orchestration layer
// and a key management engine implementation. An engine owns key material and
// the crypto work; it never decides how authorizations are partitioned for
// callers, which is the policy layer's job.
package engine

import (
	"context"

	"github.com/allisson/keymint/internal/keymint/domain"
)

// KeyResult is the raw output of a key creation call, before the policy layer
// partitions the enforced sets into caller-visible characteristics.
type KeyResult struct {
	// KeyBlob is the sealed, opaque key handle returned to the caller.
	KeyBlob []byte

	// SwEnforced and HwEnforced are the authorization sets as the engine
	// enforces them. A pure software engine leaves HwEnforced empty.
	SwEnforced domain.AuthorizationSet
	HwEnforced domain.AuthorizationSet

	// CertificateChain is the leaf-first DER chain for asymmetric keys; nil
	// for symmetric keys.
	CertificateChain [][]byte
}

// BeginOp is the raw output of a successful begin call: the live operation
// plus the params the engine emitted (for example a generated nonce).
type BeginOp struct {
	Operation Operation
	Params    domain.AuthorizationSet
	Challenge int64
}

// Operation is a begun crypto operation. Implementations are not safe for
// concurrent use; the operation table serializes access per handle.
type Operation interface {
	// UpdateAad feeds associated data to an AEAD operation. Must be called
	// before any Update with input data.
	UpdateAad(ctx context.Context, aad []byte) error

	// Update feeds input data and returns any output produced so far.
	Update(ctx context.Context, input []byte) ([]byte, error)

	// Finish consumes the final input, verifies the signature when the
	// operation is a verification, and returns the final output. The
	// operation is dead afterwards regardless of the outcome.
	Finish(ctx context.Context, input, signature []byte) ([]byte, error)

	// Abort discards the operation and its state.
	Abort(ctx context.Context) error
}

// Engine is the key management engine contract. All key blobs passed in and
// out are opaque sealed handles; only the engine can open them.
type Engine interface {
	// SecurityLevel reports the trust tier keys of this engine are bound to.
	SecurityLevel() domain.SecurityLevel

	// AddRngEntropy mixes caller-provided entropy into the engine's RNG.
	AddRngEntropy(ctx context.Context, data []byte) error

	// GenerateKey creates a key from the request params. When attestKey is
	// non-nil the leaf certificate is signed by it instead of self-signed.
	GenerateKey(
		ctx context.Context,
		params domain.AuthorizationSet,
		attestKey *domain.AttestationKey,
	) (*KeyResult, error)

	// ImportKey creates a key from caller-provided material in the given
	// format.
	ImportKey(
		ctx context.Context,
		params domain.AuthorizationSet,
		format domain.KeyFormat,
		material []byte,
	) (*KeyResult, error)

	// ImportWrappedKey unwraps key material transported under a wrapping key
	// held by this engine and imports it.
	ImportWrappedKey(
		ctx context.Context,
		wrappedData []byte,
		wrappingKeyBlob []byte,
		maskingKey []byte,
		unwrappingParams domain.AuthorizationSet,
	) (*KeyResult, error)

	// UpgradeKey re-seals a blob under the current system state. Returns an
	// empty blob when the existing blob is already current.
	UpgradeKey(
		ctx context.Context,
		keyBlob []byte,
		upgradeParams domain.AuthorizationSet,
	) ([]byte, error)

	// DeleteKey invalidates a key blob. A no-op for engines without
	// rollback-resistant storage.
	DeleteKey(ctx context.Context, keyBlob []byte) error

	// DeleteAllKeys invalidates every key this engine ever issued.
	DeleteAllKeys(ctx context.Context) error

	// GetKeyCharacteristics opens a blob and returns its enforced sets.
	// Additional params carry the application id/data binding.
	GetKeyCharacteristics(
		ctx context.Context,
		keyBlob []byte,
		additionalParams domain.AuthorizationSet,
	) (swEnforced, hwEnforced domain.AuthorizationSet, err error)

	// Begin starts a crypto operation with the key.
	Begin(
		ctx context.Context,
		purpose domain.KeyPurpose,
		keyBlob []byte,
		params domain.AuthorizationSet,
	) (*BeginOp, error)

	// DeviceLocked records that the device is locked; keys with an
	// unlocked-device requirement refuse to begin until unlocked.
	DeviceLocked(ctx context.Context, passwordOnly bool) error

	// EarlyBootEnded closes the early boot window; early-boot-only keys
	// refuse to begin afterwards.
	EarlyBootEnded(ctx context.Context) error
}
