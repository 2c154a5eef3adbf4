package usecase

import (
	"context"
	"log/slog"

	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
	"github.com/allisson/keymint/internal/keymint/policy"
)

// Hardware info constants reported by GetHardwareInfo.
const (
	deviceVersionNumber = 3
	deviceName          = "SoftKeyMintDevice"
	deviceAuthorName    = "Google"
)

// deviceUseCase implements DeviceUseCase on top of an engine, the policy
// classifier and the bounded operation table.
type deviceUseCase struct {
	engine engine.Engine
	table  *OperationTable
	logger *slog.Logger
}

// NewDeviceUseCase creates the device orchestrator.
func NewDeviceUseCase(eng engine.Engine, table *OperationTable, logger *slog.Logger) DeviceUseCase {
	return &deviceUseCase{engine: eng, table: table, logger: logger}
}

// GetHardwareInfo describes the device implementation.
func (d *deviceUseCase) GetHardwareInfo(_ context.Context) (*domain.HardwareInfo, error) {
	return &domain.HardwareInfo{
		VersionNumber:          deviceVersionNumber,
		SecurityLevel:          d.engine.SecurityLevel(),
		KeyMintName:            deviceName,
		KeyMintAuthorName:      deviceAuthorName,
		TimestampTokenRequired: false,
	}, nil
}

// AddRngEntropy forwards caller entropy to the engine. An empty contribution
// is a successful no-op that never reaches the engine.
func (d *deviceUseCase) AddRngEntropy(ctx context.Context, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return d.engine.AddRngEntropy(ctx, data)
}

// GenerateKey creates a key and partitions its enforced sets into
// caller-visible characteristics.
func (d *deviceUseCase) GenerateKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	attestKey *domain.AttestationKey,
) (*domain.KeyCreationResult, error) {
	result, err := d.engine.GenerateKey(ctx, params, attestKey)
	if err != nil {
		return nil, err
	}
	return d.creationResult(ctx, params, result)
}

// ImportKey creates a key from caller material and partitions its enforced
// sets.
func (d *deviceUseCase) ImportKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
) (*domain.KeyCreationResult, error) {
	result, err := d.engine.ImportKey(ctx, params, format, material)
	if err != nil {
		return nil, err
	}
	return d.creationResult(ctx, params, result)
}

// ImportWrappedKey unwraps and imports transported key material. The
// authorizations travel inside the wrapped data, so the request params for
// classification purposes are the unwrapping params.
func (d *deviceUseCase) ImportWrappedKey(
	ctx context.Context,
	wrappedData []byte,
	wrappingKeyBlob []byte,
	maskingKey []byte,
	unwrappingParams domain.AuthorizationSet,
) (*domain.KeyCreationResult, error) {
	result, err := d.engine.ImportWrappedKey(ctx, wrappedData, wrappingKeyBlob, maskingKey, unwrappingParams)
	if err != nil {
		return nil, err
	}
	return d.creationResult(ctx, unwrappingParams, result)
}

// creationResult runs the classifier over an engine key result. A classifier
// failure here is an internal fault: the engine produced a response the
// policy layer cannot account for.
func (d *deviceUseCase) creationResult(
	ctx context.Context,
	requested domain.AuthorizationSet,
	result *engine.KeyResult,
) (*domain.KeyCreationResult, error) {
	characteristics, err := policy.ClassifyCharacteristics(
		d.engine.SecurityLevel(), requested, result.SwEnforced, result.HwEnforced, true,
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "key characteristics classification failed", slog.Any("error", err))
		return nil, err
	}

	return &domain.KeyCreationResult{
		KeyBlob:            result.KeyBlob,
		KeyCharacteristics: characteristics,
		CertificateChain:   result.CertificateChain,
	}, nil
}

// UpgradeKey re-seals a blob under the current system state.
func (d *deviceUseCase) UpgradeKey(
	ctx context.Context,
	keyBlob []byte,
	upgradeParams domain.AuthorizationSet,
) ([]byte, error) {
	return d.engine.UpgradeKey(ctx, keyBlob, upgradeParams)
}

// DeleteKey invalidates a key blob.
func (d *deviceUseCase) DeleteKey(ctx context.Context, keyBlob []byte) error {
	return d.engine.DeleteKey(ctx, keyBlob)
}

// DeleteAllKeys invalidates every key the device issued.
func (d *deviceUseCase) DeleteAllKeys(ctx context.Context) error {
	return d.engine.DeleteAllKeys(ctx)
}

// DestroyAttestationIds is not supported: a software device carries no
// provisioned attestation identifiers.
func (d *deviceUseCase) DestroyAttestationIds(_ context.Context) error {
	return apperrors.Wrap(apperrors.ErrUnimplemented, "destroy attestation ids is not supported")
}

// GetKeyCharacteristics recomputes a blob's characteristics with the app
// binding folded into the engine params. The keystore-enforced entry is
// omitted.
func (d *deviceUseCase) GetKeyCharacteristics(
	ctx context.Context,
	keyBlob []byte,
	appID []byte,
	appData []byte,
) ([]domain.KeyCharacteristics, error) {
	var additional domain.AuthorizationSet
	if len(appID) > 0 {
		additional = append(additional, domain.NewBlob(domain.TagApplicationID, appID))
	}
	if len(appData) > 0 {
		additional = append(additional, domain.NewBlob(domain.TagApplicationData, appData))
	}

	swEnforced, hwEnforced, err := d.engine.GetKeyCharacteristics(ctx, keyBlob, additional)
	if err != nil {
		return nil, err
	}

	characteristics, err := policy.ClassifyCharacteristics(
		d.engine.SecurityLevel(), nil, swEnforced, hwEnforced, false,
	)
	if err != nil {
		d.logger.ErrorContext(ctx, "key characteristics classification failed", slog.Any("error", err))
		return nil, err
	}
	return characteristics, nil
}

// Begin starts a crypto operation and registers it in the table. The auth
// token is serialized into an AUTH_TOKEN param so every authorization
// reaches the engine through one channel.
func (d *deviceUseCase) Begin(
	ctx context.Context,
	purpose domain.KeyPurpose,
	keyBlob []byte,
	params domain.AuthorizationSet,
	authToken *domain.HardwareAuthToken,
) (*domain.BeginResult, error) {
	engineParams := params.Clone()
	if authToken != nil {
		engineParams = append(engineParams, domain.NewBlob(domain.TagAuthToken, authToken.Serialize()))
	}

	begun, err := d.engine.Begin(ctx, purpose, keyBlob, engineParams)
	if err != nil {
		return nil, err
	}

	handle, err := d.table.Insert(begun.Operation)
	if err != nil {
		// The engine operation exists but cannot be tracked; discard it so
		// its resources are not stranded.
		if abortErr := begun.Operation.Abort(ctx); abortErr != nil {
			d.logger.WarnContext(ctx, "failed to abort untracked operation", slog.Any("error", abortErr))
		}
		return nil, err
	}

	return &domain.BeginResult{
		Params:    begun.Params,
		Challenge: begun.Challenge,
		Handle:    handle,
	}, nil
}

// UpdateAad feeds associated data to a live operation.
func (d *deviceUseCase) UpdateAad(ctx context.Context, handle domain.OperationHandle, aad []byte) error {
	op, err := d.table.Get(handle)
	if err != nil {
		return err
	}
	if err := op.UpdateAad(ctx, aad); err != nil {
		d.killOperation(ctx, handle)
		return err
	}
	return nil
}

// Update feeds input to a live operation. A failing update kills the
// operation and retires its handle.
func (d *deviceUseCase) Update(
	ctx context.Context,
	handle domain.OperationHandle,
	input []byte,
) ([]byte, error) {
	op, err := d.table.Get(handle)
	if err != nil {
		return nil, err
	}
	output, err := op.Update(ctx, input)
	if err != nil {
		d.killOperation(ctx, handle)
		return nil, err
	}
	return output, nil
}

// Finish completes a live operation. The handle is retired whether the
// operation succeeds or fails.
func (d *deviceUseCase) Finish(
	ctx context.Context,
	handle domain.OperationHandle,
	input []byte,
	signature []byte,
) ([]byte, error) {
	op, err := d.table.Remove(handle)
	if err != nil {
		return nil, err
	}
	return op.Finish(ctx, input, signature)
}

// Abort discards a live operation and retires its handle.
func (d *deviceUseCase) Abort(ctx context.Context, handle domain.OperationHandle) error {
	op, err := d.table.Remove(handle)
	if err != nil {
		return err
	}
	return op.Abort(ctx)
}

// killOperation retires a handle after a mid-operation failure, aborting the
// engine side when it is still alive.
func (d *deviceUseCase) killOperation(ctx context.Context, handle domain.OperationHandle) {
	op, err := d.table.Remove(handle)
	if err != nil {
		return
	}
	if err := op.Abort(ctx); err != nil {
		d.logger.DebugContext(ctx, "operation already dead on abort", slog.Any("error", err))
	}
}

// DeviceLocked records that the device is locked. The timestamp token is
// accepted for interface fidelity; a software engine has no secure clock to
// verify it against.
func (d *deviceUseCase) DeviceLocked(
	ctx context.Context,
	passwordOnly bool,
	_ *domain.TimestampToken,
) error {
	return d.engine.DeviceLocked(ctx, passwordOnly)
}

// EarlyBootEnded closes the early boot window.
func (d *deviceUseCase) EarlyBootEnded(ctx context.Context) error {
	return d.engine.EarlyBootEnded(ctx)
}

// ConvertStorageKeyToEphemeral is not supported: storage keys are an
// inline-encryption-hardware feature.
func (d *deviceUseCase) ConvertStorageKeyToEphemeral(_ context.Context, _ []byte) ([]byte, error) {
	return nil, apperrors.Wrap(apperrors.ErrUnimplemented, "storage key conversion is not supported")
}

// GetRootOfTrustChallenge is not supported by a software device.
func (d *deviceUseCase) GetRootOfTrustChallenge(_ context.Context) ([16]byte, error) {
	return [16]byte{}, apperrors.Wrap(apperrors.ErrUnimplemented, "root of trust transfer is not supported")
}

// GetRootOfTrust is not supported by a software device.
func (d *deviceUseCase) GetRootOfTrust(_ context.Context, _ [16]byte) ([]byte, error) {
	return nil, apperrors.Wrap(apperrors.ErrUnimplemented, "root of trust transfer is not supported")
}

// SendRootOfTrust is not supported by a software device.
func (d *deviceUseCase) SendRootOfTrust(_ context.Context, _ []byte) error {
	return apperrors.Wrap(apperrors.ErrUnimplemented, "root of trust transfer is not supported")
}
