// Package main provides the entry point for the application with CLI commands.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/keymint/cmd/app/commands"
	"github.com/allisson/keymint/internal/app"
	"github.com/allisson/keymint/internal/config"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:     "app",
		Usage:    "Software key management device",
		Version:  version,
		Commands: getCommands(),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}

func getCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "create-root-key",
			Usage: "Generate a new root sealing key for key blob encryption",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "kms-key-uri",
					Aliases: []string{"k"},
					Value:   "",
					Usage:   "KMS key URI to wrap the root key with (omit for plain base64 output)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunCreateRootKey(ctx, commands.DefaultIO().Writer, cmd.String("kms-key-uri"))
			},
		},
		{
			Name:  "hardware-info",
			Usage: "Print the device implementation description",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deviceUseCase, err := container.DeviceUseCase()
				if err != nil {
					return err
				}

				return commands.RunHardwareInfo(
					ctx,
					deviceUseCase,
					commands.DefaultIO().Writer,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "generate-key",
			Usage: "Generate a key and print its sealed blob",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "algorithm",
					Aliases: []string{"alg"},
					Value:   "aes",
					Usage:   "Key algorithm: aes, hmac, ec or rsa",
				},
				&cli.IntFlag{
					Name:    "key-size",
					Aliases: []string{"s"},
					Value:   256,
					Usage:   "Key size in bits",
				},
				&cli.StringFlag{
					Name:    "purposes",
					Aliases: []string{"p"},
					Value:   "encrypt,decrypt",
					Usage:   "Comma-separated key purposes (encrypt, decrypt, sign, verify, wrap-key, agree-key, attest-key)",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deviceUseCase, err := container.DeviceUseCase()
				if err != nil {
					return err
				}

				return commands.RunGenerateKey(
					ctx,
					deviceUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("algorithm"),
					int(cmd.Int("key-size")),
					cmd.String("purposes"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "key-characteristics",
			Usage: "Print the characteristics sealed into a key blob",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "key-blob",
					Aliases:  []string{"b"},
					Required: true,
					Usage:    "Base64-encoded key blob",
				},
				&cli.StringFlag{
					Name:  "application-id",
					Usage: "Application id the key is bound to",
				},
				&cli.StringFlag{
					Name:  "application-data",
					Usage: "Application data the key is bound to",
				},
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Value:   "text",
					Usage:   "Output format: 'text' or 'json'",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deviceUseCase, err := container.DeviceUseCase()
				if err != nil {
					return err
				}

				return commands.RunKeyCharacteristics(
					ctx,
					deviceUseCase,
					commands.DefaultIO().Writer,
					cmd.String("key-blob"),
					cmd.String("application-id"),
					cmd.String("application-data"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "delete-all-keys",
			Usage: "Invalidate every key the device issued",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				deviceUseCase, err := container.DeviceUseCase()
				if err != nil {
					return err
				}

				return commands.RunDeleteAllKeys(ctx, deviceUseCase, commands.DefaultIO().Writer)
			},
		},
	}
}
