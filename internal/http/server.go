// Package http provides the HTTP server, its middleware stack and the
// Prometheus metrics server.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	keymintHTTP "github.com/allisson/keymint/internal/keymint/http"
	"github.com/allisson/keymint/internal/metrics"
)

// Option customizes the API server's middleware stack.
type Option func(*Server)

// WithCORS enables CORS for the given comma-separated origin list.
func WithCORS(enabled bool, allowOrigins string) Option {
	return func(s *Server) {
		s.corsEnabled = enabled
		s.corsAllowOrigins = allowOrigins
	}
}

// WithRateLimit enables per-client-IP rate limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		s.rateLimitRPS = rps
		s.rateLimitBurst = burst
	}
}

// WithHTTPMetrics enables request metrics on the given meter provider.
func WithHTTPMetrics(meterProvider metric.MeterProvider, namespace string) Option {
	return func(s *Server) {
		s.meterProvider = meterProvider
		s.metricsNamespace = namespace
	}
}

// Server is the API HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
	device *keymintHTTP.DeviceHandler

	corsEnabled      bool
	corsAllowOrigins string
	rateLimitRPS     float64
	rateLimitBurst   int
	meterProvider    metric.MeterProvider
	metricsNamespace string
}

// NewServer creates the API server and builds its router.
func NewServer(
	device *keymintHTTP.DeviceHandler,
	host string,
	port int,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		logger: logger,
		device: device,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      s.buildRouter(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// buildRouter assembles the middleware stack and mounts the routes.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if corsMiddleware := createCORSMiddleware(s.corsEnabled, s.corsAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if s.meterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(s.meterProvider, s.metricsNamespace))
	}

	if s.rateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, s.logger))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	if s.device != nil {
		s.device.RegisterRoutes(router.Group("/v1"))
	}

	return router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the device surface is wired and ready.
func (s *Server) readinessHandler(c *gin.Context) {
	if s.device == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": gin.H{"device": "error"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": gin.H{"device": "ok"},
	})
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server.
func (s *Server) Start(_ context.Context) error {
	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
