// Package api exposes the single-symbol, batch and portfolio simulation
// runs over HTTP with gin-gonic/gin, in the project's existing Server
// shape (router construction, CORS, errorResponse/successResponse JSON
// envelopes, graceful Start/Shutdown) retargeted from bot-control endpoints
// to simulation-run endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"dcasim/internal/events"
	"dcasim/internal/logging"
	"dcasim/internal/marketdata"
)

// Server is the HTTP API server for the simulation service.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	provider   *marketdata.Provider
	bus        *events.EventBus
	runs       *RunStore
	config     ServerConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  string
	ReadTimeout     int // seconds
	WriteTimeout    int // seconds
	ShutdownTimeout int // seconds
	ProductionMode  bool
}

// NewServer builds a Server wired to provider for market data and bus for
// run-lifecycle eventing.
func NewServer(config ServerConfig, provider *marketdata.Provider, bus *events.EventBus) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLoggingMiddleware())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{config.AllowedOrigins}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:   router,
		provider: provider,
		bus:      bus,
		runs:     NewRunStore(),
		config:   config,
	}

	s.setupRoutes()
	return s
}

// requestLoggingMiddleware logs each request through logging.APIContext,
// mirroring the shape of logging.HTTPMiddleware without adopting its
// net/http handler signature.
func requestLoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.APIContext(c.Request.Method, c.FullPath(), c.Writer.Status()).
			WithDuration(time.Since(start)).
			Info("request completed")
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealthz)

	v1 := s.router.Group("/api/v1")
	v1.POST("/simulations/single", s.handleRunSingle)
	v1.POST("/simulations/batch", s.handleRunBatch)
	v1.GET("/simulations/batch/:runID", s.handleGetBatchRun)
	v1.POST("/simulations/portfolio", s.handleRunPortfolio)
	v1.GET("/symbols/:symbol/bars", s.handleGetBars)
}

// handleHealthz reports liveness, pinging Postgres and reporting the Redis
// cache's circuit-breaker state.
func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := s.provider.HealthCheck(ctx)

	healthy := true
	for _, err := range checks {
		if err != nil {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	details := make(gin.H, len(checks))
	for name, err := range checks {
		if err != nil {
			details[name] = err.Error()
		} else {
			details[name] = "ok"
		}
	}

	c.JSON(status, gin.H{
		"status":  map[bool]string{true: "healthy", false: "unhealthy"}[healthy],
		"checks":  details,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	readTimeout := time.Duration(s.config.ReadTimeout) * time.Second
	writeTimeout := time.Duration(s.config.WriteTimeout) * time.Second
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	logging.Default().WithComponent("api").Info("starting HTTP server", "address", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	logging.Default().WithComponent("api").Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
