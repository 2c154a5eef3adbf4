// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/allisson/keymint/internal/app"
	"github.com/allisson/keymint/internal/keymint/domain"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// parseAlgorithm converts an algorithm name to domain.Algorithm.
// Returns an error if the algorithm name is invalid.
func parseAlgorithm(algorithmStr string) (domain.Algorithm, error) {
	switch algorithmStr {
	case "aes":
		return domain.AlgorithmAES, nil
	case "hmac":
		return domain.AlgorithmHMAC, nil
	case "ec":
		return domain.AlgorithmEC, nil
	case "rsa":
		return domain.AlgorithmRSA, nil
	default:
		return 0, fmt.Errorf(
			"invalid algorithm: %s (valid options: aes, hmac, ec, rsa)",
			algorithmStr,
		)
	}
}

// parsePurpose converts a purpose name to domain.KeyPurpose.
// Returns an error if the purpose name is invalid.
func parsePurpose(purposeStr string) (domain.KeyPurpose, error) {
	switch purposeStr {
	case "encrypt":
		return domain.PurposeEncrypt, nil
	case "decrypt":
		return domain.PurposeDecrypt, nil
	case "sign":
		return domain.PurposeSign, nil
	case "verify":
		return domain.PurposeVerify, nil
	case "wrap-key":
		return domain.PurposeWrapKey, nil
	case "agree-key":
		return domain.PurposeAgreeKey, nil
	case "attest-key":
		return domain.PurposeAttestKey, nil
	default:
		return 0, fmt.Errorf(
			"invalid purpose: %s (valid options: encrypt, decrypt, sign, verify, wrap-key, agree-key, attest-key)",
			purposeStr,
		)
	}
}
