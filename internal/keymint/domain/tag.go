// Package domain defines the core key-management domain models: authorization
// tags and their typed values, authorization sets, security levels, and the
// caller-visible key characteristics produced by the tag classifier.
//
// The tag vocabulary is closed and stable: identifiers and value encodings must
// not change across releases because higher-level key-store consumers depend on
// them for access-control decisions.
package domain

// TagType describes the value type carried by an authorization tag. It occupies
// the top four bits of the tag identifier, so a tag's type can always be
// recovered from the identifier alone.
type TagType uint32

// Tag value types.
const (
	TypeInvalid  TagType = 0 << 28
	TypeEnum     TagType = 1 << 28
	TypeEnumRep  TagType = 2 << 28 // repeatable enum (e.g. purpose, digest, padding)
	TypeUint     TagType = 3 << 28
	TypeUintRep  TagType = 4 << 28
	TypeUlong    TagType = 5 << 28
	TypeDate     TagType = 6 << 28 // milliseconds since the epoch
	TypeBool     TagType = 7 << 28
	TypeBignum   TagType = 8 << 28
	TypeBytes    TagType = 9 << 28
	TypeUlongRep TagType = 10 << 28
)

// Tag identifies an authorization attribute attached to a key. The identifier
// encodes the value type in its top four bits and a unique tag number in the
// remainder.
type Tag uint32

// The closed authorization tag vocabulary.
const (
	TagInvalid Tag = Tag(TypeInvalid) | 0

	TagPurpose      Tag = Tag(TypeEnumRep) | 1
	TagAlgorithm    Tag = Tag(TypeEnum) | 2
	TagKeySize      Tag = Tag(TypeUint) | 3
	TagBlockMode    Tag = Tag(TypeEnumRep) | 4
	TagDigest       Tag = Tag(TypeEnumRep) | 5
	TagPadding      Tag = Tag(TypeEnumRep) | 6
	TagCallerNonce  Tag = Tag(TypeBool) | 7
	TagMinMacLength Tag = Tag(TypeUint) | 8
	TagKdf          Tag = Tag(TypeEnumRep) | 9
	TagEcCurve      Tag = Tag(TypeEnum) | 10

	TagRsaPublicExponent   Tag = Tag(TypeUlong) | 200
	TagEciesSingleHashMode Tag = Tag(TypeBool) | 201
	TagIncludeUniqueID     Tag = Tag(TypeBool) | 202
	TagRsaOaepMgfDigest    Tag = Tag(TypeEnumRep) | 203

	TagBlobUsageRequirements Tag = Tag(TypeEnum) | 301
	TagBootloaderOnly        Tag = Tag(TypeBool) | 302
	TagRollbackResistance    Tag = Tag(TypeBool) | 303
	TagEarlyBootOnly         Tag = Tag(TypeBool) | 305

	TagActiveDatetime            Tag = Tag(TypeDate) | 400
	TagOriginationExpireDatetime Tag = Tag(TypeDate) | 401
	TagUsageExpireDatetime       Tag = Tag(TypeDate) | 402
	TagMinSecondsBetweenOps      Tag = Tag(TypeUint) | 403
	TagMaxUsesPerBoot            Tag = Tag(TypeUint) | 404
	TagUsageCountLimit           Tag = Tag(TypeUint) | 405
	TagMaxBootLevel              Tag = Tag(TypeUint) | 406

	TagAllUsers                     Tag = Tag(TypeBool) | 500
	TagUserID                       Tag = Tag(TypeUint) | 501
	TagUserSecureID                 Tag = Tag(TypeUlongRep) | 502
	TagNoAuthRequired               Tag = Tag(TypeBool) | 503
	TagUserAuthType                 Tag = Tag(TypeEnum) | 504
	TagAuthTimeout                  Tag = Tag(TypeUint) | 505
	TagAllowWhileOnBody             Tag = Tag(TypeBool) | 506
	TagTrustedUserPresenceRequired  Tag = Tag(TypeBool) | 507
	TagTrustedConfirmationRequired  Tag = Tag(TypeBool) | 508
	TagUnlockedDeviceRequired       Tag = Tag(TypeBool) | 509

	TagAllApplications Tag = Tag(TypeBool) | 600
	TagApplicationID   Tag = Tag(TypeBytes) | 601
	TagExportable      Tag = Tag(TypeBool) | 602

	TagApplicationData          Tag = Tag(TypeBytes) | 700
	TagCreationDatetime         Tag = Tag(TypeDate) | 701
	TagOrigin                   Tag = Tag(TypeEnum) | 702
	TagRollbackResistant        Tag = Tag(TypeBool) | 703
	TagRootOfTrust              Tag = Tag(TypeBytes) | 704
	TagOsVersion                Tag = Tag(TypeUint) | 705
	TagOsPatchlevel             Tag = Tag(TypeUint) | 706
	TagUniqueID                 Tag = Tag(TypeBytes) | 707
	TagAttestationChallenge     Tag = Tag(TypeBytes) | 708
	TagAttestationApplicationID Tag = Tag(TypeBytes) | 709
	TagAttestationIDBrand       Tag = Tag(TypeBytes) | 710
	TagAttestationIDDevice      Tag = Tag(TypeBytes) | 711
	TagAttestationIDProduct     Tag = Tag(TypeBytes) | 712
	TagAttestationIDSerial      Tag = Tag(TypeBytes) | 713
	TagAttestationIDImei        Tag = Tag(TypeBytes) | 714
	TagAttestationIDMeid        Tag = Tag(TypeBytes) | 715
	TagAttestationIDManufacturer Tag = Tag(TypeBytes) | 716
	TagAttestationIDModel       Tag = Tag(TypeBytes) | 717
	TagVendorPatchlevel         Tag = Tag(TypeUint) | 718
	TagBootPatchlevel           Tag = Tag(TypeUint) | 719
	TagDeviceUniqueAttestation  Tag = Tag(TypeBool) | 720
	TagIdentityCredentialKey    Tag = Tag(TypeBool) | 721
	TagStorageKey               Tag = Tag(TypeBool) | 722
	TagAttestationIDSecondImei  Tag = Tag(TypeBytes) | 723

	TagAssociatedData       Tag = Tag(TypeBytes) | 1000
	TagNonce                Tag = Tag(TypeBytes) | 1001
	TagAuthToken            Tag = Tag(TypeBytes) | 1002
	TagMacLength            Tag = Tag(TypeUint) | 1003
	TagResetSinceIDRotation Tag = Tag(TypeBool) | 1004
	TagConfirmationToken    Tag = Tag(TypeBytes) | 1005
	TagCertificateSerial    Tag = Tag(TypeBignum) | 1006
	TagCertificateSubject   Tag = Tag(TypeBytes) | 1007
	TagCertificateNotBefore Tag = Tag(TypeDate) | 1008
	TagCertificateNotAfter  Tag = Tag(TypeDate) | 1009
)

// Type returns the value type encoded in the tag identifier.
func (t Tag) Type() TagType {
	return TagType(t) & (0xF << 28)
}

// Repeatable reports whether multiple instances of the tag may appear in a
// single authorization set (purpose, digest, padding lists and the like).
func (t Tag) Repeatable() bool {
	switch t.Type() {
	case TypeEnumRep, TypeUintRep, TypeUlongRep:
		return true
	default:
		return false
	}
}

// tagNames maps every tag in the vocabulary to its stable wire name.
var tagNames = map[Tag]string{
	TagInvalid: "INVALID",

	TagPurpose:      "PURPOSE",
	TagAlgorithm:    "ALGORITHM",
	TagKeySize:      "KEY_SIZE",
	TagBlockMode:    "BLOCK_MODE",
	TagDigest:       "DIGEST",
	TagPadding:      "PADDING",
	TagCallerNonce:  "CALLER_NONCE",
	TagMinMacLength: "MIN_MAC_LENGTH",
	TagKdf:          "KDF",
	TagEcCurve:      "EC_CURVE",

	TagRsaPublicExponent:   "RSA_PUBLIC_EXPONENT",
	TagEciesSingleHashMode: "ECIES_SINGLE_HASH_MODE",
	TagIncludeUniqueID:     "INCLUDE_UNIQUE_ID",
	TagRsaOaepMgfDigest:    "RSA_OAEP_MGF_DIGEST",

	TagBlobUsageRequirements: "BLOB_USAGE_REQUIREMENTS",
	TagBootloaderOnly:        "BOOTLOADER_ONLY",
	TagRollbackResistance:    "ROLLBACK_RESISTANCE",
	TagEarlyBootOnly:         "EARLY_BOOT_ONLY",

	TagActiveDatetime:            "ACTIVE_DATETIME",
	TagOriginationExpireDatetime: "ORIGINATION_EXPIRE_DATETIME",
	TagUsageExpireDatetime:       "USAGE_EXPIRE_DATETIME",
	TagMinSecondsBetweenOps:      "MIN_SECONDS_BETWEEN_OPS",
	TagMaxUsesPerBoot:            "MAX_USES_PER_BOOT",
	TagUsageCountLimit:           "USAGE_COUNT_LIMIT",
	TagMaxBootLevel:              "MAX_BOOT_LEVEL",

	TagAllUsers:                    "ALL_USERS",
	TagUserID:                      "USER_ID",
	TagUserSecureID:                "USER_SECURE_ID",
	TagNoAuthRequired:              "NO_AUTH_REQUIRED",
	TagUserAuthType:                "USER_AUTH_TYPE",
	TagAuthTimeout:                 "AUTH_TIMEOUT",
	TagAllowWhileOnBody:            "ALLOW_WHILE_ON_BODY",
	TagTrustedUserPresenceRequired: "TRUSTED_USER_PRESENCE_REQUIRED",
	TagTrustedConfirmationRequired: "TRUSTED_CONFIRMATION_REQUIRED",
	TagUnlockedDeviceRequired:      "UNLOCKED_DEVICE_REQUIRED",

	TagAllApplications: "ALL_APPLICATIONS",
	TagApplicationID:   "APPLICATION_ID",
	TagExportable:      "EXPORTABLE",

	TagApplicationData:           "APPLICATION_DATA",
	TagCreationDatetime:          "CREATION_DATETIME",
	TagOrigin:                    "ORIGIN",
	TagRollbackResistant:         "ROLLBACK_RESISTANT",
	TagRootOfTrust:               "ROOT_OF_TRUST",
	TagOsVersion:                 "OS_VERSION",
	TagOsPatchlevel:              "OS_PATCHLEVEL",
	TagUniqueID:                  "UNIQUE_ID",
	TagAttestationChallenge:      "ATTESTATION_CHALLENGE",
	TagAttestationApplicationID:  "ATTESTATION_APPLICATION_ID",
	TagAttestationIDBrand:        "ATTESTATION_ID_BRAND",
	TagAttestationIDDevice:       "ATTESTATION_ID_DEVICE",
	TagAttestationIDProduct:      "ATTESTATION_ID_PRODUCT",
	TagAttestationIDSerial:       "ATTESTATION_ID_SERIAL",
	TagAttestationIDImei:         "ATTESTATION_ID_IMEI",
	TagAttestationIDMeid:         "ATTESTATION_ID_MEID",
	TagAttestationIDManufacturer: "ATTESTATION_ID_MANUFACTURER",
	TagAttestationIDModel:        "ATTESTATION_ID_MODEL",
	TagVendorPatchlevel:          "VENDOR_PATCHLEVEL",
	TagBootPatchlevel:            "BOOT_PATCHLEVEL",
	TagDeviceUniqueAttestation:   "DEVICE_UNIQUE_ATTESTATION",
	TagIdentityCredentialKey:     "IDENTITY_CREDENTIAL_KEY",
	TagStorageKey:                "STORAGE_KEY",
	TagAttestationIDSecondImei:   "ATTESTATION_ID_SECOND_IMEI",

	TagAssociatedData:       "ASSOCIATED_DATA",
	TagNonce:                "NONCE",
	TagAuthToken:            "AUTH_TOKEN",
	TagMacLength:            "MAC_LENGTH",
	TagResetSinceIDRotation: "RESET_SINCE_ID_ROTATION",
	TagConfirmationToken:    "CONFIRMATION_TOKEN",
	TagCertificateSerial:    "CERTIFICATE_SERIAL",
	TagCertificateSubject:   "CERTIFICATE_SUBJECT",
	TagCertificateNotBefore: "CERTIFICATE_NOT_BEFORE",
	TagCertificateNotAfter:  "CERTIFICATE_NOT_AFTER",
}

// tagsByName is the reverse of tagNames, built once at init.
var tagsByName = func() map[string]Tag {
	m := make(map[string]Tag, len(tagNames))
	for tag, name := range tagNames {
		m[name] = tag
	}
	return m
}()

// String returns the stable wire name of the tag, or a hex rendering for
// identifiers outside the vocabulary.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "UNKNOWN_TAG"
}

// TagByName resolves a stable wire name back to its tag identifier.
func TagByName(name string) (Tag, bool) {
	tag, ok := tagsByName[name]
	return tag, ok
}

// AllTags returns every tag in the vocabulary. The slice is freshly allocated
// on each call so callers may reorder it.
func AllTags() []Tag {
	tags := make([]Tag, 0, len(tagNames))
	for tag := range tagNames {
		tags = append(tags, tag)
	}
	return tags
}
