package commands

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/allisson/keymint/internal/keymint/http/dto"
	keymintUsecase "github.com/allisson/keymint/internal/keymint/usecase"
)

// RunKeyCharacteristics recomputes and prints the characteristics sealed into
// a key blob. Application id/data must match the values the key was created
// with or the blob fails to open.
func RunKeyCharacteristics(
	ctx context.Context,
	useCase keymintUsecase.DeviceUseCase,
	w io.Writer,
	keyBlobStr string,
	applicationID string,
	applicationData string,
	format string,
) error {
	keyBlob, err := base64.StdEncoding.DecodeString(keyBlobStr)
	if err != nil {
		return fmt.Errorf("invalid base64 key blob: %w", err)
	}

	characteristics, err := useCase.GetKeyCharacteristics(
		ctx,
		keyBlob,
		[]byte(applicationID),
		[]byte(applicationData),
	)
	if err != nil {
		return fmt.Errorf("failed to get key characteristics: %w", err)
	}

	response := dto.MapKeyCharacteristics(characteristics)

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "text":
		for _, entry := range response {
			fmt.Fprintf(w, "[%s]\n", entry.SecurityLevel)
			for _, param := range entry.Authorizations {
				switch {
				case param.BoolValue != nil:
					fmt.Fprintf(w, "  %s\n", param.Tag)
				case param.UintValue != nil:
					fmt.Fprintf(w, "  %s = %d\n", param.Tag, *param.UintValue)
				default:
					fmt.Fprintf(w, "  %s = %s\n", param.Tag, param.BlobValue)
				}
			}
		}
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}

// RunDeleteAllKeys invalidates every key the device issued. A software device
// cannot revoke blobs the caller still holds, so this reports what the device
// actually did.
func RunDeleteAllKeys(
	ctx context.Context,
	useCase keymintUsecase.DeviceUseCase,
	w io.Writer,
) error {
	if err := useCase.DeleteAllKeys(ctx); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}

	fmt.Fprintln(w, "All keys deleted.")
	return nil
}
