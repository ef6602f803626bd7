package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusbridge/lti-outcomes/internal/config"
	"github.com/campusbridge/lti-outcomes/internal/database"
	"github.com/campusbridge/lti-outcomes/internal/grades"
	"github.com/campusbridge/lti-outcomes/internal/logger"
	"github.com/campusbridge/lti-outcomes/internal/lti"
	"github.com/campusbridge/lti-outcomes/internal/server/handlers"
	"github.com/campusbridge/lti-outcomes/internal/server/middleware"
)

type Server struct {
	pool       *pgxpool.Pool
	queries    *database.Queries
	config     *config.ServerEnvironment
	logger     *slog.Logger
	router     *chi.Mux
	extensions *lti.ExtensionRegistry
}

func NewServer(
	pool *pgxpool.Pool,
	queries *database.Queries,
	cfg *config.ServerEnvironment,
	logger *slog.Logger,
) *Server {
	server := &Server{
		pool:       pool,
		queries:    queries,
		config:     cfg,
		logger:     logger,
		router:     chi.NewRouter(),
		extensions: lti.NewExtensionRegistry(),
	}

	server.extensions.Debug = cfg.DebugExtensions

	server.setupMiddleware()
	server.registerRoutes()

	return server
}

// Extensions exposes the registry so deployments can register handlers for
// non-core message types before Start.
func (s *Server) Extensions() *lti.ExtensionRegistry {
	return s.extensions
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(logger.RequestLogging(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Timeout(60 * time.Second))
	s.router.Use(middleware.SecurityHeaders(s.config.Environment))
	s.router.Use(middleware.RateLimit(s.config.RateLimitRPS, s.config.RateLimitBurst))
	s.router.Use(middleware.RequestSizeLimit(s.config.MaxRequestBodyBytes))
}

func (s *Server) registerRoutes() {
	// The outcomes service is a single POST endpoint; the message type is
	// carried in the POX body, not the URL.
	auth := lti.NewAuthenticator(s.config.OAuthTimestampWindow)
	bridge := grades.NewBridge(s.queries, s.queries)
	outcomes := handlers.NewOutcomesHandler(s.queries, bridge, auth, s.extensions)

	s.router.Post("/service", outcomes.HandleServiceRequest)

	s.router.Get("/health", handlers.HandleHealth(s.pool))
	s.router.Get("/version", handlers.HandleVersion())
}

func (s *Server) Start(ctx context.Context) error {
	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	httpServer := &http.Server{
		Addr:         serverAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("service listening",
			slog.String("environment", s.config.Environment),
			slog.String("address", serverAddr))

		err := httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ServerShutdownTimeout)
	defer shutdownCancel()

	s.logger.Info("shutting down HTTP server")

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("HTTP server shutdown error",
			slog.String("error", err.Error()))
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

func (s *Server) DatabaseShutdown() {
	if s.pool != nil {
		s.pool.Close()
		s.logger.Info("database connection closed")
	}
}
