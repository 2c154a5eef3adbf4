package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/keymint/internal/keymint/domain"
	"github.com/allisson/keymint/internal/keymint/http/dto"
	keymintUsecase "github.com/allisson/keymint/internal/keymint/usecase"
)

// RunGenerateKey generates a key on the device and prints the sealed blob
// with its characteristics. HMAC keys get a SHA-256 digest and a 128-bit
// minimum MAC length; RSA keys get the F4 public exponent. Everything else
// must be expressed through the API, which accepts the full parameter set.
func RunGenerateKey(
	ctx context.Context,
	useCase keymintUsecase.DeviceUseCase,
	logger *slog.Logger,
	w io.Writer,
	algorithmStr string,
	keySize int,
	purposesStr string,
	format string,
) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	params := domain.AuthorizationSet{
		domain.NewEnum(domain.TagAlgorithm, uint64(algorithm)),
		domain.NewUint(domain.TagKeySize, uint64(keySize)),
		domain.NewBool(domain.TagNoAuthRequired),
	}

	for _, purposeStr := range strings.Split(purposesStr, ",") {
		purpose, err := parsePurpose(strings.TrimSpace(purposeStr))
		if err != nil {
			return err
		}
		params = append(params, domain.NewEnum(domain.TagPurpose, uint64(purpose)))
	}

	switch algorithm {
	case domain.AlgorithmAES:
		params = append(params, domain.NewEnum(domain.TagBlockMode, uint64(domain.BlockModeGCM)))
	case domain.AlgorithmHMAC:
		params = append(params,
			domain.NewEnum(domain.TagDigest, uint64(domain.DigestSHA256)),
			domain.NewUint(domain.TagMinMacLength, 128),
		)
	case domain.AlgorithmRSA:
		params = append(params, domain.NewUint(domain.TagRsaPublicExponent, 65537))
	}

	logger.Info("generating key",
		slog.String("algorithm", algorithmStr),
		slog.Int("key_size", keySize),
		slog.String("purposes", purposesStr),
	)

	result, err := useCase.GenerateKey(ctx, params, nil)
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	response := dto.MapKeyCreationResult(result)

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "text":
		fmt.Fprintln(w, "# Key generated successfully")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "KEY_BLOB=\"%s\"\n", response.KeyBlob)
		for i, cert := range response.CertificateChain {
			fmt.Fprintf(w, "CERTIFICATE_%d=\"%s\"\n", i, cert)
		}
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}
