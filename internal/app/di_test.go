package app

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/keymint/internal/config"
)

// testRootKey is a base64 encoding of 32 bytes, suitable for ROOT_SEALING_KEY.
const testRootKey = "smGbjm71Nxd1Ig5FS0wj9SlbzAIrnolCz9bQQ6uAhl4="

func testConfig() *config.Config {
	return &config.Config{
		ServerHost:         "localhost",
		ServerPort:         8080,
		LogLevel:           "info",
		MetricsNamespace:   "keymint",
		MetricsPort:        8081,
		OperationTableSize: 16,
		BlobAlgorithm:      "aes-gcm",
		RootKeySource:      "env",
		OsVersion:          150000,
		OsPatchlevel:       202508,
		VendorPatchlevel:   20250805,
	}
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig()
	container := NewContainer(cfg)

	require.NotNil(t, container)
	assert.Equal(t, cfg, container.Config())
}

func TestContainerLogger(t *testing.T) {
	container := NewContainer(testConfig())

	logger := container.Logger()
	require.NotNil(t, logger)

	// Calling Logger() again should return the same instance (singleton)
	assert.Same(t, logger, container.Logger())
}

func TestContainerRootKeyFromEnv(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	container := NewContainer(testConfig())

	rootKey, err := container.RootKey()
	require.NoError(t, err)
	assert.Equal(t, "env", rootKey.ID)
	assert.Len(t, rootKey.Key, 32)
}

func TestContainerRootKeyMissing(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", "")
	container := NewContainer(testConfig())

	_, err := container.RootKey()
	require.Error(t, err)

	// The error is cached and returned on subsequent calls
	_, err2 := container.RootKey()
	assert.Equal(t, err, err2)
}

func TestContainerRootKeyUnsupportedSource(t *testing.T) {
	cfg := testConfig()
	cfg.RootKeySource = "vault-agent"
	container := NewContainer(cfg)

	_, err := container.RootKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported root key source")
}

func TestContainerRootKeyFromKMS(t *testing.T) {
	cfg := testConfig()
	cfg.RootKeySource = "kms"
	cfg.KMSKeyURI = "base64key://" + testRootKey

	container := NewContainer(cfg)

	// Wrap a fresh 32-byte root key with the local keeper so the container
	// can unwrap it.
	ctx := context.Background()
	keeper, err := container.KMSService().OpenKeeper(ctx, cfg.KMSKeyURI)
	require.NoError(t, err)
	defer func() { _ = keeper.Close() }()

	plaintext, err := base64.StdEncoding.DecodeString(testRootKey)
	require.NoError(t, err)

	wrapped, err := keeper.Encrypt(ctx, plaintext)
	require.NoError(t, err)
	cfg.RootKeyWrapped = base64.StdEncoding.EncodeToString(wrapped)

	rootKey, err := container.RootKey()
	require.NoError(t, err)
	assert.Equal(t, cfg.KMSKeyURI, rootKey.ID)
	assert.Equal(t, plaintext, rootKey.Key)
}

func TestContainerDeviceUseCase(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	container := NewContainer(testConfig())

	useCase, err := container.DeviceUseCase()
	require.NoError(t, err)

	info, err := useCase.GetHardwareInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SoftKeyMintDevice", info.KeyMintName)
}

func TestContainerDeviceUseCaseWithMetrics(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	cfg := testConfig()
	cfg.MetricsEnabled = true
	container := NewContainer(cfg)

	useCase, err := container.DeviceUseCase()
	require.NoError(t, err)

	_, err = useCase.GetHardwareInfo(context.Background())
	require.NoError(t, err)
}

func TestContainerEngineInvalidBlobAlgorithm(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	cfg := testConfig()
	cfg.BlobAlgorithm = "des-ecb"
	container := NewContainer(cfg)

	_, err := container.Engine()
	require.Error(t, err)
}

func TestContainerHTTPServer(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	cfg := testConfig()
	cfg.MetricsEnabled = true
	container := NewContainer(cfg)

	server, err := container.HTTPServer()
	require.NoError(t, err)
	require.NotNil(t, server)

	// Calling HTTPServer() again should return the same instance
	server2, err := container.HTTPServer()
	require.NoError(t, err)
	assert.Same(t, server, server2)
}

func TestContainerMetricsServer(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		cfg := testConfig()
		cfg.MetricsEnabled = true
		container := NewContainer(cfg)

		server, err := container.MetricsServer()
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("disabled returns nil", func(t *testing.T) {
		container := NewContainer(testConfig())

		server, err := container.MetricsServer()
		require.NoError(t, err)
		assert.Nil(t, server)
	})
}

func TestContainerBusinessMetricsDisabled(t *testing.T) {
	container := NewContainer(testConfig())

	businessMetrics, err := container.BusinessMetrics()
	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestContainerShutdown(t *testing.T) {
	t.Setenv("ROOT_SEALING_KEY", testRootKey)
	container := NewContainer(testConfig())

	rootKey, err := container.RootKey()
	require.NoError(t, err)

	err = container.Shutdown(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rootKey.Key)
}
