package soft

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
)

// Certificate defaults when the request does not specify them. The not-after
// default is 9999-12-31T23:59:59Z, the conventional "no expiry" date.
const (
	defaultCertSubject  = "Android Keystore Key"
	defaultCertNotAfter = 253402300799000
)

// makeCertificate builds the DER leaf certificate for an asymmetric key.
// Self-signed unless an attestation key is provided, in which case the leaf
// is signed by it and carries its issuer subject.
func (e *Engine) makeCertificate(
	params domain.AuthorizationSet,
	signer crypto.Signer,
	attestKey *domain.AttestationKey,
) ([]byte, error) {
	serial := big.NewInt(1)
	if raw, ok := params.GetBlob(domain.TagCertificateSerial); ok && len(raw) > 0 {
		serial = new(big.Int).SetBytes(raw)
	}

	notBefore := time.UnixMilli(0)
	if ms, ok := params.GetUint(domain.TagCertificateNotBefore); ok {
		notBefore = time.UnixMilli(int64(ms))
	}
	notAfter := time.UnixMilli(defaultCertNotAfter)
	if ms, ok := params.GetUint(domain.TagCertificateNotAfter); ok {
		notAfter = time.UnixMilli(int64(ms))
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: defaultCertSubject},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     keyUsageFromPurposes(params),
	}
	if rawSubject, ok := params.GetBlob(domain.TagCertificateSubject); ok && len(rawSubject) > 0 {
		template.RawSubject = rawSubject
	}

	parent := template
	parentSigner := signer
	if attestKey != nil {
		attestSigner, err := e.openAttestationKey(attestKey)
		if err != nil {
			return nil, err
		}
		parent = &x509.Certificate{
			SerialNumber: serial,
			RawSubject:   attestKey.IssuerSubjectName,
		}
		parentSigner = attestSigner
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, signer.Public(), parentSigner)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	return der, nil
}

// openAttestationKey unseals the attestation key blob and verifies it is
// authorized for attestation.
func (e *Engine) openAttestationKey(attestKey *domain.AttestationKey) (crypto.Signer, error) {
	payload, header, err := e.openBlob(attestKey.KeyBlob, attestKey.AttestKeyParams)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(payload.KeyMaterial)

	if err := e.checkBlobVersion(header); err != nil {
		return nil, err
	}
	if !payload.SwEnforced.ContainsEnum(domain.TagPurpose, uint64(domain.PurposeAttestKey)) {
		return nil, apperrors.Wrap(domain.ErrUnsupportedPurpose, "key is not an attestation key")
	}

	return parsePrivateKey(payload.KeyMaterial)
}

// keyUsageFromPurposes maps the requested key purposes onto x509 key usage
// bits.
func keyUsageFromPurposes(params domain.AuthorizationSet) x509.KeyUsage {
	var usage x509.KeyUsage
	for _, purpose := range params.GetAllUints(domain.TagPurpose) {
		switch domain.KeyPurpose(purpose) {
		case domain.PurposeSign:
			usage |= x509.KeyUsageDigitalSignature
		case domain.PurposeEncrypt, domain.PurposeDecrypt, domain.PurposeWrapKey:
			usage |= x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment
		case domain.PurposeAgreeKey:
			usage |= x509.KeyUsageKeyAgreement
		case domain.PurposeAttestKey:
			usage |= x509.KeyUsageCertSign
		}
	}
	return usage
}
