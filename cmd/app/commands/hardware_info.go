package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/allisson/keymint/internal/keymint/http/dto"
	keymintUsecase "github.com/allisson/keymint/internal/keymint/usecase"
)

// RunHardwareInfo prints the device implementation description.
func RunHardwareInfo(
	ctx context.Context,
	useCase keymintUsecase.DeviceUseCase,
	w io.Writer,
	format string,
) error {
	info, err := useCase.GetHardwareInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get hardware info: %w", err)
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(dto.MapHardwareInfo(info))
	case "text":
		fmt.Fprintf(w, "Version:                  %d\n", info.VersionNumber)
		fmt.Fprintf(w, "Security level:           %s\n", info.SecurityLevel)
		fmt.Fprintf(w, "Name:                     %s\n", info.KeyMintName)
		fmt.Fprintf(w, "Author:                   %s\n", info.KeyMintAuthorName)
		fmt.Fprintf(w, "Timestamp token required: %t\n", info.TimestampTokenRequired)
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
}
