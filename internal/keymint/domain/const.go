package domain

// SecurityLevel is the trust tier a key or characteristics entry is bound to.
type SecurityLevel uint32

// Security levels, in increasing order of isolation. Keystore is not a key
// binding level; it labels characteristics entries enforced by the higher-level
// key store outside the engine's trust boundary.
const (
	SecurityLevelSoftware           SecurityLevel = 0
	SecurityLevelTrustedEnvironment SecurityLevel = 1
	SecurityLevelStrongBox          SecurityLevel = 2
	SecurityLevelKeystore           SecurityLevel = 100
)

// String returns the stable wire name of the security level.
func (l SecurityLevel) String() string {
	switch l {
	case SecurityLevelSoftware:
		return "SOFTWARE"
	case SecurityLevelTrustedEnvironment:
		return "TRUSTED_ENVIRONMENT"
	case SecurityLevelStrongBox:
		return "STRONGBOX"
	case SecurityLevelKeystore:
		return "KEYSTORE"
	default:
		return "UNKNOWN"
	}
}

// SecurityLevelByName resolves a stable wire name back to a security level.
func SecurityLevelByName(name string) (SecurityLevel, bool) {
	switch name {
	case "SOFTWARE":
		return SecurityLevelSoftware, true
	case "TRUSTED_ENVIRONMENT":
		return SecurityLevelTrustedEnvironment, true
	case "STRONGBOX":
		return SecurityLevelStrongBox, true
	case "KEYSTORE":
		return SecurityLevelKeystore, true
	default:
		return 0, false
	}
}

// KeyPurpose is the operation a key may be used for.
type KeyPurpose uint32

// Key purposes.
const (
	PurposeEncrypt   KeyPurpose = 0
	PurposeDecrypt   KeyPurpose = 1
	PurposeSign      KeyPurpose = 2
	PurposeVerify    KeyPurpose = 3
	PurposeWrapKey   KeyPurpose = 5
	PurposeAgreeKey  KeyPurpose = 6
	PurposeAttestKey KeyPurpose = 7
)

// KeyFormat identifies the encoding of imported or exported key material.
type KeyFormat uint32

// Key material formats.
const (
	FormatX509  KeyFormat = 0 // public key export only
	FormatPKCS8 KeyFormat = 1 // asymmetric private key import
	FormatRaw   KeyFormat = 3 // symmetric key import
)

// KeyOrigin records where key material came from.
type KeyOrigin uint32

// Key origins.
const (
	OriginGenerated KeyOrigin = 0
	OriginDerived   KeyOrigin = 1
	OriginImported  KeyOrigin = 2
	OriginUnknown   KeyOrigin = 3
	OriginWrapped   KeyOrigin = 4
)

// Algorithm identifies a cryptographic algorithm family.
type Algorithm uint32

// Algorithms.
const (
	AlgorithmRSA  Algorithm = 1
	AlgorithmEC   Algorithm = 3
	AlgorithmAES  Algorithm = 32
	AlgorithmHMAC Algorithm = 128
)

// BlockMode identifies a symmetric cipher block mode.
type BlockMode uint32

// Block modes.
const (
	BlockModeECB BlockMode = 1
	BlockModeCBC BlockMode = 2
	BlockModeCTR BlockMode = 3
	BlockModeGCM BlockMode = 32
)

// Digest identifies a hash function.
type Digest uint32

// Digests.
const (
	DigestNone   Digest = 0
	DigestMD5    Digest = 1
	DigestSHA1   Digest = 2
	DigestSHA224 Digest = 3
	DigestSHA256 Digest = 4
	DigestSHA384 Digest = 5
	DigestSHA512 Digest = 6
)

// PaddingMode identifies a padding scheme.
type PaddingMode uint32

// Padding modes.
const (
	PaddingNone           PaddingMode = 1
	PaddingRSAOAEP        PaddingMode = 2
	PaddingRSAPSS         PaddingMode = 3
	PaddingRSAPKCS1Sign   PaddingMode = 4
	PaddingRSAPKCS1Crypt  PaddingMode = 5
	PaddingPKCS7          PaddingMode = 64
)

// EcCurve identifies a supported elliptic curve.
type EcCurve uint32

// Elliptic curves.
const (
	CurveP224 EcCurve = 0
	CurveP256 EcCurve = 1
	CurveP384 EcCurve = 2
	CurveP521 EcCurve = 3
)

// HardwareAuthenticatorType identifies the authenticator that produced an auth
// token.
type HardwareAuthenticatorType uint32

// Authenticator types (bit field).
const (
	AuthenticatorNone        HardwareAuthenticatorType = 0
	AuthenticatorPassword    HardwareAuthenticatorType = 1 << 0
	AuthenticatorFingerprint HardwareAuthenticatorType = 1 << 1
)
