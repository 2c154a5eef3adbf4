package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	cryptoService "github.com/allisson/keymint/internal/crypto/service"
)

// RunCreateRootKey generates a cryptographically secure 32-byte root sealing
// key. Every key blob the device issues is sealed under this key, so losing
// it invalidates all previously issued blobs. Key material is zeroed from
// memory after encoding.
//
// Without a KMS key URI the key is printed as plain base64 for the "env" root
// key source. With a KMS key URI the key is wrapped before output and only
// the ciphertext is printed, for the "kms" root key source.
//
// Security: plain output is intended for development only. Production
// deployments should wrap the key with a cloud KMS provider (gcpkms, awskms,
// azurekeyvault, hashivault).
func RunCreateRootKey(ctx context.Context, w io.Writer, kmsKeyURI string) error {
	rootKey := make([]byte, 32)
	if _, err := rand.Read(rootKey); err != nil {
		return fmt.Errorf("failed to generate root key: %w", err)
	}
	defer cryptoDomain.Zero(rootKey)

	if kmsKeyURI == "" {
		fmt.Fprintln(w, "# Root sealing key (env mode, development only)")
		fmt.Fprintln(w, "# Copy these environment variables to your .env file or secrets manager")
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ROOT_KEY_SOURCE=\"env\"\n")
		fmt.Fprintf(w, "ROOT_SEALING_KEY=\"%s\"\n", base64.StdEncoding.EncodeToString(rootKey))
		return nil
	}

	kmsService := cryptoService.NewKMSService()
	keeper, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
	if err != nil {
		return fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	defer func() {
		if closeErr := keeper.Close(); closeErr != nil {
			fmt.Fprintf(w, "# Warning: failed to close KMS keeper: %v\n", closeErr)
		}
	}()

	ciphertext, err := keeper.Encrypt(ctx, rootKey)
	if err != nil {
		return fmt.Errorf("failed to wrap root key with KMS: %w", err)
	}

	fmt.Fprintln(w, "# Root sealing key (KMS mode)")
	fmt.Fprintln(w, "# Copy these environment variables to your .env file or secrets manager")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "ROOT_KEY_SOURCE=\"kms\"\n")
	fmt.Fprintf(w, "KMS_KEY_URI=\"%s\"\n", kmsKeyURI)
	fmt.Fprintf(w, "ROOT_SEALING_KEY_WRAPPED=\"%s\"\n", base64.StdEncoding.EncodeToString(ciphertext))

	return nil
}
