package soft

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"time"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// GenerateKey creates a key from the request params, seals it into a blob and
// returns the enforced authorization set. All authorizations land in the
// software-enforced set; the hardware set stays empty for a software engine.
func (e *Engine) GenerateKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	attestKey *domain.AttestationKey,
) (*engine.KeyResult, error) {
	alg, ok := params.GetUint(domain.TagAlgorithm)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrUnsupportedAlgorithm, "ALGORITHM tag is required")
	}

	var (
		material []byte
		err      error
	)
	switch domain.Algorithm(alg) {
	case domain.AlgorithmAES:
		material, err = generateAESMaterial(params)
	case domain.AlgorithmHMAC:
		material, err = generateHMACMaterial(params)
	case domain.AlgorithmEC:
		material, err = generateECMaterial(params)
	case domain.AlgorithmRSA:
		material, err = generateRSAMaterial(params)
	default:
		return nil, apperrors.Wrap(domain.ErrUnsupportedAlgorithm, fmt.Sprintf("algorithm %d", alg))
	}
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(material)

	return e.finishKeyCreation(ctx, params, domain.Algorithm(alg), material, domain.OriginGenerated, attestKey)
}

// finishKeyCreation builds the enforced set, generates the certificate chain
// for asymmetric keys and seals the blob. Shared by generate and the import
// paths, which differ only in material source and origin.
func (e *Engine) finishKeyCreation(
	_ context.Context,
	params domain.AuthorizationSet,
	alg domain.Algorithm,
	material []byte,
	origin domain.KeyOrigin,
	attestKey *domain.AttestationKey,
) (*engine.KeyResult, error) {
	swEnforced := e.buildEnforcedSet(params, origin)

	var chain [][]byte
	if alg == domain.AlgorithmEC || alg == domain.AlgorithmRSA {
		signer, err := parsePrivateKey(material)
		if err != nil {
			return nil, err
		}
		cert, err := e.makeCertificate(params, signer, attestKey)
		if err != nil {
			return nil, err
		}
		chain = [][]byte{cert}
	}

	blob, err := e.sealBlob(&blobPayload{
		Algorithm:   alg,
		KeyMaterial: material,
		SwEnforced:  swEnforced,
	}, params)
	if err != nil {
		return nil, err
	}

	return &engine.KeyResult{
		KeyBlob:          blob,
		SwEnforced:       swEnforced,
		CertificateChain: chain,
	}, nil
}

// buildEnforcedSet copies the characteristic-bearing request params and
// appends the engine-added authorizations: origin, system state and creation
// time. Application id/data never enter the stored set; they bind the blob
// through the sealing AAD instead.
func (e *Engine) buildEnforcedSet(
	params domain.AuthorizationSet,
	origin domain.KeyOrigin,
) domain.AuthorizationSet {
	out := make(domain.AuthorizationSet, 0, len(params)+6)
	for _, p := range params {
		switch p.Tag {
		case domain.TagApplicationID, domain.TagApplicationData,
			domain.TagAttestationChallenge, domain.TagAttestationApplicationID,
			domain.TagCertificateSerial, domain.TagCertificateSubject,
			domain.TagCertificateNotBefore, domain.TagCertificateNotAfter:
			// Creation-time inputs, not key authorizations.
		default:
			out = append(out, p.Clone())
		}
	}

	return append(out,
		domain.NewEnum(domain.TagOrigin, uint64(origin)),
		domain.NewUint(domain.TagOsVersion, uint64(e.osVersion)),
		domain.NewUint(domain.TagOsPatchlevel, uint64(e.osPatchlevel)),
		domain.NewUint(domain.TagVendorPatchlevel, uint64(e.vendorPatchlevel)),
		domain.NewUint(domain.TagBootPatchlevel, uint64(e.bootPatchlevel)),
		domain.NewDate(domain.TagCreationDatetime, uint64(time.Now().UnixMilli())),
	)
}

func generateAESMaterial(params domain.AuthorizationSet) ([]byte, error) {
	keySize, ok := params.GetUint(domain.TagKeySize)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "KEY_SIZE tag is required")
	}
	switch keySize {
	case 128, 192, 256:
	default:
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported AES key size %d", keySize))
	}

	material := make([]byte, keySize/8)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate AES key: %w", err)
	}
	return material, nil
}

func generateHMACMaterial(params domain.AuthorizationSet) ([]byte, error) {
	keySize, ok := params.GetUint(domain.TagKeySize)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "KEY_SIZE tag is required")
	}
	if keySize < 64 || keySize > 512 || keySize%8 != 0 {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported HMAC key size %d", keySize))
	}

	minMac, ok := params.GetUint(domain.TagMinMacLength)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "MIN_MAC_LENGTH tag is required")
	}
	if minMac < 64 || minMac%8 != 0 {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported MIN_MAC_LENGTH %d", minMac))
	}

	if _, err := hmacHash(params); err != nil {
		return nil, err
	}

	material := make([]byte, keySize/8)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("failed to generate HMAC key: %w", err)
	}
	return material, nil
}

func generateECMaterial(params domain.AuthorizationSet) ([]byte, error) {
	curve, err := ecCurve(params)
	if err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate EC key: %w", err)
	}

	material, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode EC key: %w", err)
	}
	return material, nil
}

func generateRSAMaterial(params domain.AuthorizationSet) ([]byte, error) {
	keySize, ok := params.GetUint(domain.TagKeySize)
	if !ok {
		keySize = 2048
	}
	switch keySize {
	case 2048, 3072, 4096:
	default:
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported RSA key size %d", keySize))
	}

	if exp, ok := params.GetUint(domain.TagRsaPublicExponent); ok && exp != 65537 {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported RSA public exponent %d", exp))
	}

	key, err := rsa.GenerateKey(rand.Reader, int(keySize))
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	material, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode RSA key: %w", err)
	}
	return material, nil
}

// ecCurve resolves the requested curve, accepting either an explicit EC_CURVE
// tag or a KEY_SIZE that maps to exactly one curve.
func ecCurve(params domain.AuthorizationSet) (elliptic.Curve, error) {
	if curve, ok := params.GetUint(domain.TagEcCurve); ok {
		switch domain.EcCurve(curve) {
		case domain.CurveP224:
			return elliptic.P224(), nil
		case domain.CurveP256:
			return elliptic.P256(), nil
		case domain.CurveP384:
			return elliptic.P384(), nil
		case domain.CurveP521:
			return elliptic.P521(), nil
		default:
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported EC curve %d", curve))
		}
	}

	keySize, ok := params.GetUint(domain.TagKeySize)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "EC_CURVE or KEY_SIZE tag is required")
	}
	switch keySize {
	case 224:
		return elliptic.P224(), nil
	case 256:
		return elliptic.P256(), nil
	case 384:
		return elliptic.P384(), nil
	case 521:
		return elliptic.P521(), nil
	default:
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("no EC curve for key size %d", keySize))
	}
}

// parsePrivateKey decodes PKCS#8 key material into a crypto.Signer.
func parsePrivateKey(material []byte) (crypto.Signer, error) {
	key, err := x509.ParsePKCS8PrivateKey(material)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidKeyBlob, "failed to parse private key material")
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidKeyBlob, "key material is not a signing key")
	}
	return signer, nil
}
