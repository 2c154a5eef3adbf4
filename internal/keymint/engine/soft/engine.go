// Package soft implements the key management engine in pure software. Keys
// live only inside sealed blobs handed back to the caller; the engine itself
// is stateless apart from the device lock and early boot flags.
package soft

import (
	"context"
	"log/slog"
	"sync"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	cryptoService "github.com/allisson/keymint/internal/crypto/service"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// maxEntropySize bounds a single addRngEntropy contribution.
const maxEntropySize = 2048

// Config carries the engine's fixed system state. Boot patchlevel is derived
// from the OS patchlevel (a software device boots with the OS image).
type Config struct {
	OsVersion        uint32
	OsPatchlevel     uint32
	VendorPatchlevel uint32
	BlobAlgorithm    cryptoDomain.Algorithm
}

// BootPatchlevel returns the boot patchlevel in YYYYMMDD form derived from
// the YYYYMM OS patchlevel.
func (c Config) BootPatchlevel() uint32 {
	return c.OsPatchlevel*100 + 1
}

// Engine is the pure software engine implementation.
type Engine struct {
	cipher           cryptoService.AEAD
	logger           *slog.Logger
	osVersion        uint32
	osPatchlevel     uint32
	vendorPatchlevel uint32
	bootPatchlevel   uint32

	mu             sync.Mutex
	deviceLocked   bool
	earlyBootEnded bool
}

// NewEngine creates a software engine sealing key blobs under the root key
// with the configured AEAD algorithm.
func NewEngine(
	cfg Config,
	rootKey *cryptoDomain.RootKey,
	aeadManager cryptoService.AEADManager,
	logger *slog.Logger,
) (*Engine, error) {
	cipher, err := aeadManager.CreateCipher(rootKey.Key, cfg.BlobAlgorithm)
	if err != nil {
		return nil, err
	}

	return &Engine{
		cipher:           cipher,
		logger:           logger,
		osVersion:        cfg.OsVersion,
		osPatchlevel:     cfg.OsPatchlevel,
		vendorPatchlevel: cfg.VendorPatchlevel,
		bootPatchlevel:   cfg.BootPatchlevel(),
	}, nil
}

// SecurityLevel reports the software trust tier.
func (e *Engine) SecurityLevel() domain.SecurityLevel {
	return domain.SecurityLevelSoftware
}

// AddRngEntropy accepts caller entropy. The process RNG (crypto/rand) cannot
// be reseeded from user space, so the contribution is validated and
// discarded; oversized contributions are rejected.
func (e *Engine) AddRngEntropy(_ context.Context, data []byte) error {
	if len(data) > maxEntropySize {
		return domain.ErrRejectedEntropy
	}
	return nil
}

// DeleteKey is a no-op: without rollback-resistant storage a blob cannot be
// made unusable while copies of it exist.
func (e *Engine) DeleteKey(_ context.Context, _ []byte) error {
	return nil
}

// DeleteAllKeys is a no-op for the same reason as DeleteKey.
func (e *Engine) DeleteAllKeys(ctx context.Context) error {
	e.logger.WarnContext(ctx, "delete all keys requested; software engine has no rollback-resistant storage")
	return nil
}

// DeviceLocked records the device lock state.
func (e *Engine) DeviceLocked(_ context.Context, _ bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deviceLocked = true
	return nil
}

// EarlyBootEnded closes the early boot window.
func (e *Engine) EarlyBootEnded(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.earlyBootEnded = true
	return nil
}

// GetKeyCharacteristics opens a blob and returns its enforced sets. The
// additional params must carry the same APPLICATION_ID/APPLICATION_DATA the
// key was created with, or authentication fails.
func (e *Engine) GetKeyCharacteristics(
	_ context.Context,
	keyBlob []byte,
	additionalParams domain.AuthorizationSet,
) (domain.AuthorizationSet, domain.AuthorizationSet, error) {
	payload, header, err := e.openBlob(keyBlob, additionalParams)
	if err != nil {
		return nil, nil, err
	}
	defer cryptoDomain.Zero(payload.KeyMaterial)

	if err := e.checkBlobVersion(header); err != nil {
		return nil, nil, err
	}

	return payload.SwEnforced, payload.HwEnforced, nil
}

// UpgradeKey re-seals a blob under the current system state. Returns an empty
// blob when the existing blob is already current, and refuses blobs sealed
// under newer system state than the engine's.
func (e *Engine) UpgradeKey(
	_ context.Context,
	keyBlob []byte,
	upgradeParams domain.AuthorizationSet,
) ([]byte, error) {
	payload, header, err := e.openBlob(keyBlob, upgradeParams)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(payload.KeyMaterial)

	switch err := e.checkBlobVersion(header); {
	case err == nil:
		// Already current; nothing to upgrade.
		return []byte{}, nil
	case apperrors.Is(err, domain.ErrKeyRequiresUpgrade):
		// Expected: fall through and re-seal.
	default:
		return nil, err
	}

	payload.SwEnforced = e.refreshSystemParams(payload.SwEnforced)
	return e.sealBlob(payload, upgradeParams)
}

// refreshSystemParams rewrites the system state params in an authorization
// set to the engine's current values.
func (e *Engine) refreshSystemParams(set domain.AuthorizationSet) domain.AuthorizationSet {
	out := make(domain.AuthorizationSet, 0, len(set))
	for _, p := range set {
		switch p.Tag {
		case domain.TagOsVersion, domain.TagOsPatchlevel,
			domain.TagVendorPatchlevel, domain.TagBootPatchlevel:
			// Replaced below.
		default:
			out = append(out, p)
		}
	}
	return append(out,
		domain.NewUint(domain.TagOsVersion, uint64(e.osVersion)),
		domain.NewUint(domain.TagOsPatchlevel, uint64(e.osPatchlevel)),
		domain.NewUint(domain.TagVendorPatchlevel, uint64(e.vendorPatchlevel)),
		domain.NewUint(domain.TagBootPatchlevel, uint64(e.bootPatchlevel)),
	)
}

// locked reports the current device lock state.
func (e *Engine) locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deviceLocked
}

// bootWindowClosed reports whether early boot has ended.
func (e *Engine) bootWindowClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.earlyBootEnded
}

var _ engine.Engine = (*Engine)(nil)
