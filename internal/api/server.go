// Package api exposes the HTTP surface: import preview/commit, manual match
// resolution, library browsing, search, health, and the SSE event stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/shelfsyncapp/shelfsync-server/internal/config"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/ratelimit"
	"github.com/shelfsyncapp/shelfsync-server/internal/service"
	"github.com/shelfsyncapp/shelfsync-server/internal/sse"
	"github.com/shelfsyncapp/shelfsync-server/internal/store"
	"github.com/shelfsyncapp/shelfsync-server/internal/validation"
)

// Services groups the application services the handlers depend on.
type Services struct {
	Import *service.ImportService
	Book   *service.BookService
}

// Server wires the chi router, the huma API, and the application services.
type Server struct {
	config        *config.Config
	store         *store.Store
	services      *Services
	router        *chi.Mux
	api           huma.API
	logger        *logger.Logger
	sseManager    *sse.Manager
	validator     *validation.Validator
	importLimiter *ratelimit.KeyedRateLimiter
	httpServer    *http.Server
}

// NewServer builds the full HTTP server with all routes registered.
func NewServer(cfg *config.Config, st *store.Store, services *Services, sseManager *sse.Manager, log *logger.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s := &Server{
		config:     cfg,
		store:      st,
		services:   services,
		router:     router,
		logger:     log,
		sseManager: sseManager,
		validator:  validation.New(),
		// Commit runs are expensive; a small per-client budget is plenty
		// for interactive use.
		importLimiter: ratelimit.New(1, 3),
	}

	// Middleware must be in place before humachi registers the doc routes.
	router.Use(s.rateLimitImports)

	humaConfig := huma.DefaultConfig("ShelfSync API", "1.0.0")
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerImportRoutes()
	s.registerBookRoutes()

	// SSE does not fit huma's typed request/response model; mount it on the
	// router directly.
	router.Method(http.MethodGet, "/api/v1/events", sse.NewHandler(sseManager, log.Logger))

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// Router returns the underlying router, used by tests.
func (s *Server) Router() *chi.Mux { return s.router }

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	s.importLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
