package soft

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	apperrors "github.com/allisson/keymint/internal/errors"
	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/engine"
)

// ImportKey creates a key from caller-provided material. Symmetric material
// arrives raw; asymmetric material arrives PKCS#8 encoded.
func (e *Engine) ImportKey(
	ctx context.Context,
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
) (*engine.KeyResult, error) {
	return e.importKeyMaterial(ctx, params, format, material, domain.OriginImported)
}

// importKeyMaterial validates the material against the request params,
// derives any size params the caller omitted and seals the blob. Shared by
// plain and wrapped import, which differ only in origin.
func (e *Engine) importKeyMaterial(
	ctx context.Context,
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
	origin domain.KeyOrigin,
) (*engine.KeyResult, error) {
	alg, ok := params.GetUint(domain.TagAlgorithm)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrUnsupportedAlgorithm, "ALGORITHM tag is required")
	}

	var (
		derived domain.AuthorizationSet
		err     error
	)
	switch domain.Algorithm(alg) {
	case domain.AlgorithmAES, domain.AlgorithmHMAC:
		derived, err = checkSymmetricImport(params, domain.Algorithm(alg), format, material)
	case domain.AlgorithmEC:
		derived, err = checkECImport(params, format, material)
	case domain.AlgorithmRSA:
		derived, err = checkRSAImport(params, format, material)
	default:
		return nil, apperrors.Wrap(domain.ErrUnsupportedAlgorithm, fmt.Sprintf("algorithm %d", alg))
	}
	if err != nil {
		return nil, err
	}

	return e.finishKeyCreation(ctx, append(params.Clone(), derived...), domain.Algorithm(alg), material, origin, nil)
}

// checkSymmetricImport validates raw symmetric material and derives KEY_SIZE
// when absent. An explicit KEY_SIZE must match the material exactly.
func checkSymmetricImport(
	params domain.AuthorizationSet,
	alg domain.Algorithm,
	format domain.KeyFormat,
	material []byte,
) (domain.AuthorizationSet, error) {
	if format != domain.FormatRaw {
		return nil, apperrors.Wrap(domain.ErrUnsupportedKeyFormat, "symmetric import requires RAW format")
	}

	bits := uint64(len(material)) * 8
	if alg == domain.AlgorithmAES {
		switch bits {
		case 128, 192, 256:
		default:
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported AES key size %d", bits))
		}
	} else {
		if bits < 64 || bits > 512 {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported HMAC key size %d", bits))
		}
		if !params.Contains(domain.TagMinMacLength) {
			return nil, apperrors.Wrap(domain.ErrInvalidArgument, "MIN_MAC_LENGTH tag is required")
		}
		if _, err := hmacHash(params); err != nil {
			return nil, err
		}
	}

	if declared, ok := params.GetUint(domain.TagKeySize); ok {
		if declared != bits {
			return nil, apperrors.Wrap(
				domain.ErrInvalidArgument,
				fmt.Sprintf("KEY_SIZE %d does not match material size %d", declared, bits),
			)
		}
		return nil, nil
	}
	return domain.AuthorizationSet{domain.NewUint(domain.TagKeySize, bits)}, nil
}

// checkECImport validates PKCS#8 EC material and derives EC_CURVE and
// KEY_SIZE when absent.
func checkECImport(
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
) (domain.AuthorizationSet, error) {
	if format != domain.FormatPKCS8 {
		return nil, apperrors.Wrap(domain.ErrUnsupportedKeyFormat, "EC import requires PKCS8 format")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(material)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "failed to parse PKCS8 material")
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "material is not an EC key")
	}

	var curve domain.EcCurve
	bits := uint64(key.Curve.Params().BitSize)
	switch bits {
	case 224:
		curve = domain.CurveP224
	case 256:
		curve = domain.CurveP256
	case 384:
		curve = domain.CurveP384
	case 521:
		curve = domain.CurveP521
	default:
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, fmt.Sprintf("unsupported EC curve size %d", bits))
	}

	if declared, ok := params.GetUint(domain.TagEcCurve); ok && declared != uint64(curve) {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "EC_CURVE does not match material")
	}
	if declared, ok := params.GetUint(domain.TagKeySize); ok && declared != bits {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "KEY_SIZE does not match material")
	}

	var derived domain.AuthorizationSet
	if !params.Contains(domain.TagEcCurve) {
		derived = append(derived, domain.NewEnum(domain.TagEcCurve, uint64(curve)))
	}
	if !params.Contains(domain.TagKeySize) {
		derived = append(derived, domain.NewUint(domain.TagKeySize, bits))
	}
	return derived, nil
}

// checkRSAImport validates PKCS#8 RSA material and derives KEY_SIZE and
// RSA_PUBLIC_EXPONENT when absent.
func checkRSAImport(
	params domain.AuthorizationSet,
	format domain.KeyFormat,
	material []byte,
) (domain.AuthorizationSet, error) {
	if format != domain.FormatPKCS8 {
		return nil, apperrors.Wrap(domain.ErrUnsupportedKeyFormat, "RSA import requires PKCS8 format")
	}

	parsed, err := x509.ParsePKCS8PrivateKey(material)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "failed to parse PKCS8 material")
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "material is not an RSA key")
	}

	bits := uint64(key.N.BitLen())
	exponent := uint64(key.E)

	if declared, ok := params.GetUint(domain.TagKeySize); ok && declared != bits {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "KEY_SIZE does not match material")
	}
	if declared, ok := params.GetUint(domain.TagRsaPublicExponent); ok && declared != exponent {
		return nil, apperrors.Wrap(domain.ErrInvalidArgument, "RSA_PUBLIC_EXPONENT does not match material")
	}

	var derived domain.AuthorizationSet
	if !params.Contains(domain.TagKeySize) {
		derived = append(derived, domain.NewUint(domain.TagKeySize, bits))
	}
	if !params.Contains(domain.TagRsaPublicExponent) {
		derived = append(derived, domain.NewUint(domain.TagRsaPublicExponent, exponent))
	}
	return derived, nil
}
