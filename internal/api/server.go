// Package api exposes the diagnosis pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/database"
	"github.com/dermascan-server/internal/domain"
	"github.com/dermascan-server/internal/history"
	"github.com/dermascan-server/internal/middleware"
	"github.com/dermascan-server/internal/service"
)

// Server represents the HTTP server
type Server struct {
	config    *domain.Config
	logger    *logrus.Logger
	diagnosis *service.DiagnosisService
	history   history.Store
	db        *database.DB
	router    *gin.Engine
	server    *http.Server
	started   time.Time
}

// Option configures optional collaborators.
type Option func(*Server)

// WithHistoryStore enables the history routes.
func WithHistoryStore(store history.Store) Option {
	return func(s *Server) { s.history = store }
}

// WithDatabase adds the pool to readiness checks.
func WithDatabase(db *database.DB) Option {
	return func(s *Server) { s.db = db }
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, logger *logrus.Logger, diagnosis *service.DiagnosisService, opts ...Option) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:    cfg,
		logger:    logger,
		diagnosis: diagnosis,
		router:    gin.New(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.MaxMultipartMemory = cfg.Server.MaxUploadBytes
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.CorrelationID())
	s.router.Use(middleware.AuditLogger(logger))
	s.router.Use(middleware.SecurityHeaders())
	s.router.Use(corsMiddleware())
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		s.router.Use(limiter.Middleware())
	}
	s.router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	s.setupRoutes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	upload := middleware.MaxBodySize(s.config.Server.MaxUploadBytes)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/diagnose", upload, s.handleDiagnose)
		v1.POST("/report", upload, s.handleReport)
		v1.GET("/conditions", s.handleConditions)
		v1.GET("/recommendations/:label", s.handleRecommendations)

		if s.history != nil {
			v1.GET("/users/:user_id/diagnoses", s.handleListDiagnoses)
			v1.GET("/diagnoses/:id", s.handleGetDiagnosis)
			v1.DELETE("/diagnoses/:id", s.handleDeleteDiagnosis)
		}
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	if s.history != nil {
		if err := s.history.Ping(ctx); err != nil {
			checks["history"] = err.Error()
			healthy = false
		} else {
			checks["history"] = "ok"
		}
	}
	if s.db != nil {
		if err := s.db.Health(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"checks":    checks,
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
		"version":   s.config.MCP.ServerVersion,
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Disposition, X-Correlation-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
