package domain

// KeyCharacteristics is the caller-visible, domain-partitioned view of a key's
// enforced authorizations: one authorization set labeled with the security
// level that enforces it. A key's full characteristics contains at most one
// entry per enforcement domain; entries with empty sets are omitted entirely.
type KeyCharacteristics struct {
	SecurityLevel  SecurityLevel
	Authorizations AuthorizationSet
}

// KeyCreationResult is the output of generateKey, importKey and
// importWrappedKey. The key blob is opaque to the caller and owned by it after
// return; the certificate chain is leaf-first DER.
type KeyCreationResult struct {
	KeyBlob            []byte
	KeyCharacteristics []KeyCharacteristics
	CertificateChain   [][]byte
}

// HardwareInfo describes the device implementation behind the service.
type HardwareInfo struct {
	VersionNumber          int32
	SecurityLevel          SecurityLevel
	KeyMintName            string
	KeyMintAuthorName      string
	TimestampTokenRequired bool
}

// AttestationKey carries the signing key material for attested key creation:
// an opaque blob of the attestation key, the params needed to use it, and the
// DER-encoded subject name to place in the issuer field of the leaf.
type AttestationKey struct {
	KeyBlob           []byte
	AttestKeyParams   AuthorizationSet
	IssuerSubjectName []byte
}

// OperationHandle is an opaque 64-bit token identifying a begun but not yet
// finished or aborted crypto operation. Handles are unique for the lifetime of
// the operation table and never reused after finish, abort or eviction.
type OperationHandle uint64

// BeginResult is the output of a successful begin call: engine output params,
// the challenge echoed into auth tokens, and the operation handle.
type BeginResult struct {
	Params    AuthorizationSet
	Challenge int64
	Handle    OperationHandle
}
