// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/keymint/internal/config"
	cryptoDomain "github.com/allisson/keymint/internal/crypto/domain"
	cryptoService "github.com/allisson/keymint/internal/crypto/service"
	"github.com/allisson/keymint/internal/http"
	"github.com/allisson/keymint/internal/keymint/engine"
	"github.com/allisson/keymint/internal/keymint/engine/soft"
	keymintHTTP "github.com/allisson/keymint/internal/keymint/http"
	"github.com/allisson/keymint/internal/keymint/policy"
	keymintUsecase "github.com/allisson/keymint/internal/keymint/usecase"
	"github.com/allisson/keymint/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	kmsService      cryptoService.KMSService
	rootKey         *cryptoDomain.RootKey
	aeadManager     *cryptoService.AEADManagerService
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Device
	engine        engine.Engine
	deviceUseCase keymintUsecase.DeviceUseCase
	deviceHandler *keymintHTTP.DeviceHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                  sync.Mutex
	loggerInit          sync.Once
	kmsServiceInit      sync.Once
	rootKeyInit         sync.Once
	aeadManagerInit     sync.Once
	metricsProviderInit sync.Once
	businessMetricsInit sync.Once
	engineInit          sync.Once
	deviceUseCaseInit   sync.Once
	deviceHandlerInit   sync.Once
	httpServerInit      sync.Once
	metricsServerInit   sync.Once
	initErrors          map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// KMSService returns the KMS service used to unwrap the root sealing key.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// AEADManager returns the AEAD cipher factory.
func (c *Container) AEADManager() *cryptoService.AEADManagerService {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = cryptoService.NewAEADManager()
	})
	return c.aeadManager
}

// RootKey returns the root sealing key.
// It loads the key on first access from the configured source.
func (c *Container) RootKey() (*cryptoDomain.RootKey, error) {
	var err error
	c.rootKeyInit.Do(func() {
		c.rootKey, err = c.initRootKey()
		if err != nil {
			c.initErrors["rootKey"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["rootKey"]; exists {
		return nil, storedErr
	}
	return c.rootKey, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
// Returns nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the device operation metrics recorder.
// Returns a no-op recorder when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// Engine returns the key management engine.
func (c *Container) Engine() (engine.Engine, error) {
	var err error
	c.engineInit.Do(func() {
		c.engine, err = c.initEngine()
		if err != nil {
			c.initErrors["engine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["engine"]; exists {
		return nil, storedErr
	}
	return c.engine, nil
}

// DeviceUseCase returns the device use case instance.
func (c *Container) DeviceUseCase() (keymintUsecase.DeviceUseCase, error) {
	var err error
	c.deviceUseCaseInit.Do(func() {
		c.deviceUseCase, err = c.initDeviceUseCase()
		if err != nil {
			c.initErrors["deviceUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deviceUseCase"]; exists {
		return nil, storedErr
	}
	return c.deviceUseCase, nil
}

// DeviceHandler returns the HTTP handler for the device surface.
func (c *Container) DeviceHandler() (*keymintHTTP.DeviceHandler, error) {
	var err error
	c.deviceHandlerInit.Do(func() {
		c.deviceHandler, err = c.initDeviceHandler()
		if err != nil {
			c.initErrors["deviceHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["deviceHandler"]; exists {
		return nil, storedErr
	}
	return c.deviceHandler, nil
}

// HTTPServer returns the API HTTP server.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server.
// Returns nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Flush the metrics provider if initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Zero the root key material if loaded
	if c.rootKey != nil {
		c.rootKey.Close()
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initRootKey loads the root sealing key from the configured source.
func (c *Container) initRootKey() (*cryptoDomain.RootKey, error) {
	switch c.config.RootKeySource {
	case "env":
		return cryptoService.NewEnvRootKeyProvider().Load(context.Background())
	case "kms":
		provider := cryptoService.NewKMSRootKeyProvider(
			c.KMSService(),
			c.config.KMSKeyURI,
			c.config.RootKeyWrapped,
		)
		return provider.Load(context.Background())
	default:
		return nil, fmt.Errorf("unsupported root key source: %s", c.config.RootKeySource)
	}
}

// initBusinessMetrics creates the operation metrics recorder.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	if !c.config.MetricsEnabled {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	return metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
}

// initEngine creates the software engine. The authorization policy registry
// must cover the full tag vocabulary before any key is created, so the
// completeness check runs here and a gap aborts startup.
func (c *Container) initEngine() (engine.Engine, error) {
	if err := policy.CheckComplete(); err != nil {
		return nil, fmt.Errorf("authorization policy registry is incomplete: %w", err)
	}

	rootKey, err := c.RootKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get root key for engine: %w", err)
	}

	engineCfg := soft.Config{
		OsVersion:        c.config.OsVersion,
		OsPatchlevel:     c.config.OsPatchlevel,
		VendorPatchlevel: c.config.VendorPatchlevel,
		BlobAlgorithm:    cryptoDomain.Algorithm(c.config.BlobAlgorithm),
	}

	return soft.NewEngine(engineCfg, rootKey, c.AEADManager(), c.Logger())
}

// initDeviceUseCase creates the device use case, wrapped with the metrics
// decorator when metrics are enabled.
func (c *Container) initDeviceUseCase() (keymintUsecase.DeviceUseCase, error) {
	eng, err := c.Engine()
	if err != nil {
		return nil, fmt.Errorf("failed to get engine for device use case: %w", err)
	}

	table := keymintUsecase.NewOperationTable(c.config.OperationTableSize)
	useCase := keymintUsecase.NewDeviceUseCase(eng, table, c.Logger())

	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for device use case: %w", err)
		}
		useCase = keymintUsecase.NewDeviceUseCaseWithMetrics(useCase, businessMetrics)
	}

	return useCase, nil
}

// initDeviceHandler creates the HTTP handler for the device surface.
func (c *Container) initDeviceHandler() (*keymintHTTP.DeviceHandler, error) {
	useCase, err := c.DeviceUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get device use case for handler: %w", err)
	}
	return keymintHTTP.NewDeviceHandler(useCase, c.Logger()), nil
}

// initHTTPServer creates the API HTTP server with the configured middleware.
func (c *Container) initHTTPServer() (*http.Server, error) {
	handler, err := c.DeviceHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get device handler for http server: %w", err)
	}

	opts := []http.Option{
		http.WithCORS(c.config.CORSEnabled, c.config.CORSAllowOrigins),
	}

	if c.config.RateLimitEnabled {
		opts = append(opts, http.WithRateLimit(
			c.config.RateLimitRequestsPerSec,
			c.config.RateLimitBurst,
		))
	}

	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		opts = append(opts, http.WithHTTPMetrics(provider.MeterProvider(), c.config.MetricsNamespace))
	}

	return http.NewServer(handler, c.config.ServerHost, c.config.ServerPort, c.Logger(), opts...), nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider), nil
}
