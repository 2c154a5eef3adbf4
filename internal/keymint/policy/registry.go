// Package policy implements the authorization-tag classification engine: the
// registry assigning every tag in the vocabulary to exactly one enforcement
// bucket, and the classifier that partitions engine responses into the
// caller-visible key characteristics.
//
// Correctness here is a security property. A tag routed to the wrong bucket
// silently breaks an access-control guarantee enforced by the higher-level key
// store, with no functional symptom. The registry is therefore total over the
// vocabulary and checked for completeness at startup and in tests.
package policy

import (
	"fmt"

	"github.com/allisson/keymint/internal/keymint/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
)

// Classification is the enforcement bucket a tag belongs to when it arrives in
// a software-enforced engine response.
type Classification int

// Classification buckets. Every tag in the vocabulary maps to exactly one.
const (
	// ClassInvalid tags must never appear in a software-enforced response;
	// their presence is an internal consistency fault.
	ClassInvalid Classification = iota

	// ClassUnimplemented tags describe features this implementation does not
	// support; they are silently dropped.
	ClassUnimplemented

	// ClassConditionalKeystore tags are keystore-enforced only when the
	// original request contained the tag explicitly; otherwise dropped. Used
	// for tags the engine may add without being asked, like CREATION_DATETIME.
	ClassConditionalKeystore

	// ClassExcluded tags are never surfaced in characteristics output even
	// though they may be present internally (application secrets, attestation
	// challenge).
	ClassExcluded

	// ClassNotCharacteristic tags are informational and not part of key
	// characteristics at all; dropped unconditionally.
	ClassNotCharacteristic

	// ClassHardwareEnforced tags land in the hardware (or software-as-hardware)
	// domain.
	ClassHardwareEnforced

	// ClassKeystoreEnforced tags land in the keystore domain.
	ClassKeystoreEnforced
)

// String returns a human-readable bucket name for logs and test failures.
func (c Classification) String() string {
	switch c {
	case ClassInvalid:
		return "invalid"
	case ClassUnimplemented:
		return "unimplemented"
	case ClassConditionalKeystore:
		return "conditional-keystore"
	case ClassExcluded:
		return "excluded"
	case ClassNotCharacteristic:
		return "not-characteristic"
	case ClassHardwareEnforced:
		return "hardware-enforced"
	case ClassKeystoreEnforced:
		return "keystore-enforced"
	default:
		return "unknown"
	}
}

// classifications assigns every tag in the vocabulary to its bucket. The
// assignments mirror the device policy exactly; changing a row changes which
// component of the system enforces that authorization.
var classifications = map[domain.Tag]Classification{
	// Invalid and unused.
	domain.TagEciesSingleHashMode: ClassInvalid,
	domain.TagInvalid:             ClassInvalid,
	domain.TagKdf:                 ClassInvalid,
	domain.TagRollbackResistance:  ClassInvalid,

	// Unimplemented.
	domain.TagAllowWhileOnBody:  ClassUnimplemented,
	domain.TagBootloaderOnly:    ClassUnimplemented,
	domain.TagRollbackResistant: ClassUnimplemented,
	domain.TagStorageKey:        ClassUnimplemented,

	// Keystore-enforced only when the caller asked for it. The engine adds
	// CREATION_DATETIME to generated and imported keys on its own; it is only
	// echoed back when the creation request included it.
	domain.TagCreationDatetime: ClassConditionalKeystore,

	// Disallowed in key characteristics.
	domain.TagApplicationData:          ClassExcluded,
	domain.TagAttestationApplicationID: ClassExcluded,

	// Not key characteristics.
	domain.TagAssociatedData:            ClassNotCharacteristic,
	domain.TagAttestationChallenge:      ClassNotCharacteristic,
	domain.TagAttestationIDBrand:        ClassNotCharacteristic,
	domain.TagAttestationIDDevice:       ClassNotCharacteristic,
	domain.TagAttestationIDImei:         ClassNotCharacteristic,
	domain.TagAttestationIDSecondImei:   ClassNotCharacteristic,
	domain.TagAttestationIDManufacturer: ClassNotCharacteristic,
	domain.TagAttestationIDMeid:         ClassNotCharacteristic,
	domain.TagAttestationIDModel:       ClassNotCharacteristic,
	domain.TagAttestationIDProduct:     ClassNotCharacteristic,
	domain.TagAttestationIDSerial:      ClassNotCharacteristic,
	domain.TagAuthToken:                ClassNotCharacteristic,
	domain.TagCertificateSerial:        ClassNotCharacteristic,
	domain.TagCertificateSubject:       ClassNotCharacteristic,
	domain.TagCertificateNotAfter:      ClassNotCharacteristic,
	domain.TagCertificateNotBefore:     ClassNotCharacteristic,
	domain.TagConfirmationToken:        ClassNotCharacteristic,
	domain.TagDeviceUniqueAttestation:  ClassNotCharacteristic,
	domain.TagIdentityCredentialKey:    ClassNotCharacteristic,
	domain.TagIncludeUniqueID:          ClassNotCharacteristic,
	domain.TagMacLength:                ClassNotCharacteristic,
	domain.TagNonce:                    ClassNotCharacteristic,
	domain.TagResetSinceIDRotation:     ClassNotCharacteristic,
	domain.TagRootOfTrust:              ClassNotCharacteristic,
	domain.TagUniqueID:                 ClassNotCharacteristic,

	// Enforced by the engine.
	domain.TagAlgorithm:                    ClassHardwareEnforced,
	domain.TagPurpose:                      ClassHardwareEnforced,
	domain.TagApplicationID:                ClassHardwareEnforced,
	domain.TagAuthTimeout:                  ClassHardwareEnforced,
	domain.TagBlobUsageRequirements:        ClassHardwareEnforced,
	domain.TagBlockMode:                    ClassHardwareEnforced,
	domain.TagBootPatchlevel:               ClassHardwareEnforced,
	domain.TagCallerNonce:                  ClassHardwareEnforced,
	domain.TagDigest:                       ClassHardwareEnforced,
	domain.TagEarlyBootOnly:                ClassHardwareEnforced,
	domain.TagEcCurve:                      ClassHardwareEnforced,
	domain.TagExportable:                   ClassHardwareEnforced,
	domain.TagKeySize:                      ClassHardwareEnforced,
	domain.TagMaxUsesPerBoot:               ClassHardwareEnforced,
	domain.TagMinMacLength:                 ClassHardwareEnforced,
	domain.TagMinSecondsBetweenOps:         ClassHardwareEnforced,
	domain.TagNoAuthRequired:               ClassHardwareEnforced,
	domain.TagOrigin:                       ClassHardwareEnforced,
	domain.TagOsPatchlevel:                 ClassHardwareEnforced,
	domain.TagOsVersion:                    ClassHardwareEnforced,
	domain.TagPadding:                      ClassHardwareEnforced,
	domain.TagRsaOaepMgfDigest:             ClassHardwareEnforced,
	domain.TagRsaPublicExponent:            ClassHardwareEnforced,
	domain.TagTrustedConfirmationRequired:  ClassHardwareEnforced,
	domain.TagTrustedUserPresenceRequired:  ClassHardwareEnforced,
	domain.TagUnlockedDeviceRequired:       ClassHardwareEnforced,
	domain.TagUserAuthType:                 ClassHardwareEnforced,
	domain.TagUserSecureID:                 ClassHardwareEnforced,
	domain.TagVendorPatchlevel:             ClassHardwareEnforced,

	// Enforced by the key store.
	domain.TagActiveDatetime:            ClassKeystoreEnforced,
	domain.TagAllApplications:           ClassKeystoreEnforced,
	domain.TagAllUsers:                  ClassKeystoreEnforced,
	domain.TagMaxBootLevel:              ClassKeystoreEnforced,
	domain.TagOriginationExpireDatetime: ClassKeystoreEnforced,
	domain.TagUsageExpireDatetime:       ClassKeystoreEnforced,
	domain.TagUserID:                    ClassKeystoreEnforced,
	domain.TagUsageCountLimit:           ClassKeystoreEnforced,
}

// Classify returns the enforcement bucket for a tag. Tags outside the
// vocabulary return domain.ErrUnknownTag; the registry itself is total over
// the vocabulary (see CheckComplete).
func Classify(tag domain.Tag) (Classification, error) {
	class, ok := classifications[tag]
	if !ok {
		return 0, apperrors.Wrap(domain.ErrUnknownTag, tag.String())
	}
	return class, nil
}

// CheckComplete verifies the registry is total: every tag in the vocabulary
// has a classification and every classified tag is in the vocabulary. Run at
// startup so a vocabulary addition without a policy decision fails loudly
// instead of opening a silent policy gap.
func CheckComplete() error {
	known := make(map[domain.Tag]bool, len(classifications))
	for tag := range classifications {
		known[tag] = true
	}

	for _, tag := range domain.AllTags() {
		if _, ok := classifications[tag]; !ok {
			return apperrors.Wrap(
				apperrors.ErrInternalFault,
				fmt.Sprintf("tag %s has no classification", tag),
			)
		}
		delete(known, tag)
	}

	// Anything left classifies a tag the vocabulary no longer declares.
	for tag := range known {
		return apperrors.Wrap(
			apperrors.ErrInternalFault,
			fmt.Sprintf("classification for unknown tag %#x", uint32(tag)),
		)
	}

	return nil
}
