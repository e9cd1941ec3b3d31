// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"marketplace_backend/internal/config"
	"marketplace_backend/internal/firebase"
	"marketplace_backend/internal/host"
	"marketplace_backend/internal/jobs"
	"marketplace_backend/internal/middleware"
	"marketplace_backend/internal/projection"
	"marketplace_backend/internal/publication"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	sweepJob *jobs.SlotSweepJob
	mirror   *projection.Mirror
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	publicationHandler *publication.Handler,
	jobsHandler *jobs.Handler,
	sweepJob *jobs.SlotSweepJob,
	firebaseService *firebase.Service,
	hostRepo host.Repository,
	mirror *projection.Mirror,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	authMW := middleware.FirebaseAuth(firebaseService, hostRepo, logger.Named("AuthMiddleware"))

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "Marketplace API is healthy!"})
	})

	v1 := router.Group("/api/v1")
	publicationHandler.RegisterRoutes(v1, authMW)
	jobsHandler.RegisterRoutes(v1, authMW)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		cfg:        cfg,
		logger:     logger,
		sweepJob:   sweepJob,
		mirror:     mirror,
	}, nil
}

func (s *Server) Start() error {
	if s.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := s.mirror.EnsureIndex(ctx); err != nil {
			s.logger.Error("Failed to create search index, mirror writes may fail", zap.Error(err))
		}
		cancel()
	}

	if s.sweepJob != nil {
		if err := s.sweepJob.SetupAndStart(); err != nil {
			s.logger.Error("Failed to setup and start slot sweep job", zap.Error(err))
		}
	} else {
		s.logger.Info("Slot sweep job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped gracefully or an error occurred")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.sweepJob != nil {
		s.sweepJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
