// Package usecase orchestrates the key management device: it routes requests
// to the engine, partitions engine responses through the policy layer and
// owns the bounded operation table.
package usecase

import (
	"context"

	"github.com/allisson/keymint/internal/keymint/domain"
)

// DeviceUseCase is the complete device surface exposed to transport
// adapters. All engine errors propagate verbatim; outputs are populated only
// on success.
type DeviceUseCase interface {
	// GetHardwareInfo describes the device implementation.
	GetHardwareInfo(ctx context.Context) (*domain.HardwareInfo, error)

	// AddRngEntropy mixes caller entropy into the engine RNG. An empty
	// contribution succeeds without reaching the engine.
	AddRngEntropy(ctx context.Context, data []byte) error

	// GenerateKey creates a key and returns its blob, partitioned
	// characteristics and certificate chain.
	GenerateKey(
		ctx context.Context,
		params domain.AuthorizationSet,
		attestKey *domain.AttestationKey,
	) (*domain.KeyCreationResult, error)

	// ImportKey creates a key from caller-provided material.
	ImportKey(
		ctx context.Context,
		params domain.AuthorizationSet,
		format domain.KeyFormat,
		material []byte,
	) (*domain.KeyCreationResult, error)

	// ImportWrappedKey imports key material transported under a wrapping key.
	ImportWrappedKey(
		ctx context.Context,
		wrappedData []byte,
		wrappingKeyBlob []byte,
		maskingKey []byte,
		unwrappingParams domain.AuthorizationSet,
	) (*domain.KeyCreationResult, error)

	// UpgradeKey re-seals a blob under current system state.
	UpgradeKey(
		ctx context.Context,
		keyBlob []byte,
		upgradeParams domain.AuthorizationSet,
	) ([]byte, error)

	// DeleteKey invalidates a key blob.
	DeleteKey(ctx context.Context, keyBlob []byte) error

	// DeleteAllKeys invalidates every key the device issued.
	DeleteAllKeys(ctx context.Context) error

	// DestroyAttestationIds is not supported by this implementation.
	DestroyAttestationIds(ctx context.Context) error

	// GetKeyCharacteristics recomputes a blob's characteristics. The
	// keystore-enforced entry is omitted: those tags are not knowable from
	// the blob alone.
	GetKeyCharacteristics(
		ctx context.Context,
		keyBlob []byte,
		appID []byte,
		appData []byte,
	) ([]domain.KeyCharacteristics, error)

	// Begin starts a crypto operation and registers it in the operation
	// table. The auth token, when present, travels to the engine as an
	// ordinary AUTH_TOKEN param.
	Begin(
		ctx context.Context,
		purpose domain.KeyPurpose,
		keyBlob []byte,
		params domain.AuthorizationSet,
		authToken *domain.HardwareAuthToken,
	) (*domain.BeginResult, error)

	// UpdateAad feeds associated data to a live AEAD operation.
	UpdateAad(ctx context.Context, handle domain.OperationHandle, aad []byte) error

	// Update feeds input to a live operation. A failing update kills the
	// operation.
	Update(ctx context.Context, handle domain.OperationHandle, input []byte) ([]byte, error)

	// Finish completes a live operation. The handle is retired regardless of
	// the outcome.
	Finish(
		ctx context.Context,
		handle domain.OperationHandle,
		input []byte,
		signature []byte,
	) ([]byte, error)

	// Abort discards a live operation and retires its handle.
	Abort(ctx context.Context, handle domain.OperationHandle) error

	// DeviceLocked records that the device is locked.
	DeviceLocked(
		ctx context.Context,
		passwordOnly bool,
		timestampToken *domain.TimestampToken,
	) error

	// EarlyBootEnded closes the early boot window.
	EarlyBootEnded(ctx context.Context) error

	// ConvertStorageKeyToEphemeral is not supported by this implementation.
	ConvertStorageKeyToEphemeral(ctx context.Context, storageKeyBlob []byte) ([]byte, error)

	// GetRootOfTrustChallenge, GetRootOfTrust and SendRootOfTrust implement
	// root-of-trust transfer between StrongBox and TEE devices; a software
	// device has no root of trust to transfer.
	GetRootOfTrustChallenge(ctx context.Context) ([16]byte, error)
	GetRootOfTrust(ctx context.Context, challenge [16]byte) ([]byte, error)
	SendRootOfTrust(ctx context.Context, rootOfTrust []byte) error
}
