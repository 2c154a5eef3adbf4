package usecase

import (
	"context"
	"time"

	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/metrics"
)

// deviceUseCaseWithMetrics decorates DeviceUseCase with metrics
// instrumentation.
type deviceUseCaseWithMetrics struct {
	next    DeviceUseCase
	metrics metrics.BusinessMetrics
}

// NewDeviceUseCaseWithMetrics wraps a DeviceUseCase with metrics recording.
func NewDeviceUseCaseWithMetrics(useCase DeviceUseCase, m metrics.BusinessMetrics) DeviceUseCase {
	return &deviceUseCaseWithMetrics{next: useCase, metrics: m}
}

// record emits the operation counter and duration histogram for one call.
func (d *deviceUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	d.metrics.RecordOperation(ctx, "keymint", operation, status)
	d.metrics.RecordDuration(ctx, "keymint", operation, time.Since(start), status)
}

func (d *deviceUseCaseWithMetrics) GetHardwareInfo(ctx context.Context) (*domain.HardwareInfo, error) {
	start := time.Now()
	info, err := d.next.GetHardwareInfo(ctx)
	d.record(ctx, "get_hardware_info", start, err)
	return info, err
}

func (d *deviceUseCaseWithMetrics) AddRngEntropy(ctx context.Context, data []byte) error {
	start := time.Now()
	err := d.next.AddRngEntropy(ctx, data)
	d.record(ctx, "add_rng_entropy", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) GenerateKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	attestKey *domain.AttestationKey,
) (*domain.KeyCreationResult, error) {
	start := time.Now()
	result, err := d.next.GenerateKey(ctx, params, attestKey)
	d.record(ctx, "generate_key", start, err)
	return result, err
}

func (d *deviceUseCaseWithMetrics) ImportKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
) (*domain.KeyCreationResult, error) {
	start := time.Now()
	result, err := d.next.ImportKey(ctx, params, format, material)
	d.record(ctx, "import_key", start, err)
	return result, err
}

func (d *deviceUseCaseWithMetrics) ImportWrappedKey(
	ctx context.Context,
	wrappedData []byte,
	wrappingKeyBlob []byte,
	maskingKey []byte,
	unwrappingParams domain.AuthorizationSet,
) (*domain.KeyCreationResult, error) {
	start := time.Now()
	result, err := d.next.ImportWrappedKey(ctx, wrappedData, wrappingKeyBlob, maskingKey, unwrappingParams)
	d.record(ctx, "import_wrapped_key", start, err)
	return result, err
}

func (d *deviceUseCaseWithMetrics) UpgradeKey(
	ctx context.Context,
	keyBlob []byte,
	upgradeParams domain.AuthorizationSet,
) ([]byte, error) {
	start := time.Now()
	blob, err := d.next.UpgradeKey(ctx, keyBlob, upgradeParams)
	d.record(ctx, "upgrade_key", start, err)
	return blob, err
}

func (d *deviceUseCaseWithMetrics) DeleteKey(ctx context.Context, keyBlob []byte) error {
	start := time.Now()
	err := d.next.DeleteKey(ctx, keyBlob)
	d.record(ctx, "delete_key", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) DeleteAllKeys(ctx context.Context) error {
	start := time.Now()
	err := d.next.DeleteAllKeys(ctx)
	d.record(ctx, "delete_all_keys", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) DestroyAttestationIds(ctx context.Context) error {
	start := time.Now()
	err := d.next.DestroyAttestationIds(ctx)
	d.record(ctx, "destroy_attestation_ids", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) GetKeyCharacteristics(
	ctx context.Context,
	keyBlob []byte,
	appID []byte,
	appData []byte,
) ([]domain.KeyCharacteristics, error) {
	start := time.Now()
	characteristics, err := d.next.GetKeyCharacteristics(ctx, keyBlob, appID, appData)
	d.record(ctx, "get_key_characteristics", start, err)
	return characteristics, err
}

func (d *deviceUseCaseWithMetrics) Begin(
	ctx context.Context,
	purpose domain.KeyPurpose,
	keyBlob []byte,
	params domain.AuthorizationSet,
	authToken *domain.HardwareAuthToken,
) (*domain.BeginResult, error) {
	start := time.Now()
	result, err := d.next.Begin(ctx, purpose, keyBlob, params, authToken)
	d.record(ctx, "begin", start, err)
	return result, err
}

func (d *deviceUseCaseWithMetrics) UpdateAad(
	ctx context.Context,
	handle domain.OperationHandle,
	aad []byte,
) error {
	start := time.Now()
	err := d.next.UpdateAad(ctx, handle, aad)
	d.record(ctx, "update_aad", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) Update(
	ctx context.Context,
	handle domain.OperationHandle,
	input []byte,
) ([]byte, error) {
	start := time.Now()
	output, err := d.next.Update(ctx, handle, input)
	d.record(ctx, "update", start, err)
	return output, err
}

func (d *deviceUseCaseWithMetrics) Finish(
	ctx context.Context,
	handle domain.OperationHandle,
	input []byte,
	signature []byte,
) ([]byte, error) {
	start := time.Now()
	output, err := d.next.Finish(ctx, handle, input, signature)
	d.record(ctx, "finish", start, err)
	return output, err
}

func (d *deviceUseCaseWithMetrics) Abort(ctx context.Context, handle domain.OperationHandle) error {
	start := time.Now()
	err := d.next.Abort(ctx, handle)
	d.record(ctx, "abort", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) DeviceLocked(
	ctx context.Context,
	passwordOnly bool,
	timestampToken *domain.TimestampToken,
) error {
	start := time.Now()
	err := d.next.DeviceLocked(ctx, passwordOnly, timestampToken)
	d.record(ctx, "device_locked", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) EarlyBootEnded(ctx context.Context) error {
	start := time.Now()
	err := d.next.EarlyBootEnded(ctx)
	d.record(ctx, "early_boot_ended", start, err)
	return err
}

func (d *deviceUseCaseWithMetrics) ConvertStorageKeyToEphemeral(
	ctx context.Context,
	storageKeyBlob []byte,
) ([]byte, error) {
	start := time.Now()
	blob, err := d.next.ConvertStorageKeyToEphemeral(ctx, storageKeyBlob)
	d.record(ctx, "convert_storage_key", start, err)
	return blob, err
}

func (d *deviceUseCaseWithMetrics) GetRootOfTrustChallenge(ctx context.Context) ([16]byte, error) {
	start := time.Now()
	challenge, err := d.next.GetRootOfTrustChallenge(ctx)
	d.record(ctx, "get_root_of_trust_challenge", start, err)
	return challenge, err
}

func (d *deviceUseCaseWithMetrics) GetRootOfTrust(
	ctx context.Context,
	challenge [16]byte,
) ([]byte, error) {
	start := time.Now()
	rootOfTrust, err := d.next.GetRootOfTrust(ctx, challenge)
	d.record(ctx, "get_root_of_trust", start, err)
	return rootOfTrust, err
}

func (d *deviceUseCaseWithMetrics) SendRootOfTrust(ctx context.Context, rootOfTrust []byte) error {
	start := time.Now()
	err := d.next.SendRootOfTrust(ctx, rootOfTrust)
	d.record(ctx, "send_root_of_trust", start, err)
	return err
}
