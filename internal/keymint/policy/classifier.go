package policy

import (
	"github.com/allisson/keymint/internal/keymint/domain"
)

// ClassifyCharacteristics partitions an engine response into the
// caller-visible key characteristics, split by enforcement domain.
//
// For a device pretending to be TRUSTED_ENVIRONMENT or STRONGBOX, the engine's
// hardware-enforced set passes through verbatim into the device-level entry and
// everything software-side becomes keystore-enforced, with no per-tag lookup.
// For a pure SOFTWARE device all tags arrive software-enforced and each one is
// routed through the registry.
//
// includeKeystoreEnforced=false suppresses the keystore entry entirely; used
// when characteristics are recomputed from a raw blob lookup, where that
// domain's tags are not knowable.
//
// The function is pure: identical inputs yield identical output and no state
// is touched. The hardware-analog entry (when non-empty) always precedes the
// keystore entry; empty entries are omitted rather than returned empty.
func ClassifyCharacteristics(
	level domain.SecurityLevel,
	requested domain.AuthorizationSet,
	swEnforced domain.AuthorizationSet,
	hwEnforced domain.AuthorizationSet,
	includeKeystoreEnforced bool,
) ([]domain.KeyCharacteristics, error) {
	deviceEnforced := domain.KeyCharacteristics{SecurityLevel: level}

	if level != domain.SecurityLevelSoftware {
		// A real (or emulated) hardware level backs the key: the engine's
		// split is authoritative and passes through unfiltered.
		deviceEnforced.Authorizations = hwEnforced.Clone()
		if includeKeystoreEnforced && !swEnforced.IsEmpty() {
			keystoreEnforced := domain.KeyCharacteristics{
				SecurityLevel:  domain.SecurityLevelKeystore,
				Authorizations: swEnforced.Clone(),
			}
			return []domain.KeyCharacteristics{deviceEnforced, keystoreEnforced}, nil
		}
		return []domain.KeyCharacteristics{deviceEnforced}, nil
	}

	// Pure software implementation: every tag arrives software-enforced and
	// a non-empty hardware set means the engine broke the contract. This is
	// not recoverable; classifying anyway could mislabel an enforcement
	// domain.
	if !hwEnforced.IsEmpty() {
		return nil, domain.ErrClassifierContract
	}

	keystoreEnforced := domain.KeyCharacteristics{SecurityLevel: domain.SecurityLevelKeystore}

	for _, param := range swEnforced {
		class, err := Classify(param.Tag)
		if err != nil {
			return nil, err
		}

		switch class {
		case ClassInvalid:
			return nil, domain.ErrForbiddenTag

		case ClassUnimplemented, ClassExcluded, ClassNotCharacteristic:
			// Dropped from output.

		case ClassConditionalKeystore:
			// Echoed back only when the creation request asked for it.
			if requested.Contains(param.Tag) {
				keystoreEnforced.Authorizations = append(keystoreEnforced.Authorizations, param.Clone())
			}

		case ClassHardwareEnforced:
			deviceEnforced.Authorizations = append(deviceEnforced.Authorizations, param.Clone())

		case ClassKeystoreEnforced:
			keystoreEnforced.Authorizations = append(keystoreEnforced.Authorizations, param.Clone())
		}
	}

	result := make([]domain.KeyCharacteristics, 0, 2)
	if !deviceEnforced.Authorizations.IsEmpty() {
		result = append(result, deviceEnforced)
	}
	if includeKeystoreEnforced && !keystoreEnforced.Authorizations.IsEmpty() {
		result = append(result, keystoreEnforced)
	}

	return result, nil
}
