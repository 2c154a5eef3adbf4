// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the server will bind to.
	ServerHost string
	// ServerPort is the port number the server will listen on.
	ServerPort int

	// ShutdownTimeout is the deadline for draining in-flight requests on stop.
	ShutdownTimeout time.Duration

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// RateLimitEnabled indicates whether per-client-IP rate limiting is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second per client.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for rate limiting.
	RateLimitBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int

	// OperationTableSize bounds the number of concurrent crypto operations.
	// Zero selects the default.
	OperationTableSize int

	// BlobAlgorithm is the AEAD used to seal key blobs ("aes-gcm" or
	// "chacha20-poly1305").
	BlobAlgorithm string

	// RootKeySource selects where the blob sealing key comes from: "env" reads
	// ROOT_SEALING_KEY directly, "kms" unwraps ROOT_SEALING_KEY_WRAPPED with
	// the KMS key.
	RootKeySource string
	// KMSKeyURI is the URI of the KMS key protecting the wrapped root key.
	KMSKeyURI string
	// RootKeyWrapped is the base64 KMS-wrapped root sealing key.
	RootKeyWrapped string

	// OsVersion is the Android platform version baked into sealed blobs.
	OsVersion uint32
	// OsPatchlevel is the platform patchlevel as YYYYMM.
	OsPatchlevel uint32
	// VendorPatchlevel is the vendor image patchlevel as YYYYMMDD.
	VendorPatchlevel uint32
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost:      env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort:      env.GetInt("SERVER_PORT", 8080),
		ShutdownTimeout: env.GetDuration("SHUTDOWN_TIMEOUT_SECONDS", 30, time.Second),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Rate Limiting (per client IP)
		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 50.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 100),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "keymint"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),

		// Device configuration
		OperationTableSize: env.GetInt("OPERATION_TABLE_SIZE", 0),
		BlobAlgorithm:      env.GetString("BLOB_ALGORITHM", "aes-gcm"),

		// Root sealing key
		RootKeySource:  env.GetString("ROOT_KEY_SOURCE", "env"),
		KMSKeyURI:      env.GetString("KMS_KEY_URI", ""),
		RootKeyWrapped: env.GetString("ROOT_SEALING_KEY_WRAPPED", ""),

		// System state sealed into key blobs
		OsVersion:        uint32(env.GetInt("OS_VERSION", 150000)),
		OsPatchlevel:     uint32(env.GetInt("OS_PATCHLEVEL", 202508)),
		VendorPatchlevel: uint32(env.GetInt("VENDOR_PATCHLEVEL", 20250801)),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	case "info", "warn", "error":
		return "release"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
