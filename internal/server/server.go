// Package server provides the HTTP server for the sync store.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/synceddb/syncstore/internal/config"
	apierrors "github.com/synceddb/syncstore/internal/errors"
	"github.com/synceddb/syncstore/internal/handler"
	"github.com/synceddb/syncstore/internal/health"
	"github.com/synceddb/syncstore/internal/metrics"
	"github.com/synceddb/syncstore/internal/middleware"
	"github.com/synceddb/syncstore/internal/store"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	errorHandler *apierrors.Handler
	metrics      *metrics.Metrics
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server around the record store.
func NewServer(cfg *config.Config, svc *store.Service, m *metrics.Metrics, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(svc, errorHandler, logger, cfg.Storage.DefaultStore)
	healthCheck := health.NewHealthCheck(svc, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:       router,
		httpServer:   httpServer,
		handlers:     handlers,
		healthCheck:  healthCheck,
		errorHandler: errorHandler,
		metrics:      m,
		logger:       logger,
		cfg:          cfg,
	}
}

// SetupRoutes configures middleware and all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS,
	}

	if s.metrics != nil {
		middlewareChain = append(middlewareChain, metrics.Middleware(s.metrics))
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Health endpoints are registered before the store routes; a store
	// named "health" or "ready" is shadowed by them.
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// The bare root serves the configured default store.
	s.router.HandleFunc("/", s.handlers.List).Methods(http.MethodGet)
	s.router.HandleFunc("/", s.handlers.Create).Methods(http.MethodPost)

	// Record store routes, the literal sync client contract.
	s.router.HandleFunc("/{store}", s.handlers.List).Methods(http.MethodGet)
	s.router.HandleFunc("/{store}", s.handlers.Create).Methods(http.MethodPost)
	s.router.HandleFunc("/{store}/{id}", s.handlers.Get).Methods(http.MethodGet)
	s.router.HandleFunc("/{store}/{id}", s.handlers.Update).Methods(http.MethodPut)
	s.router.HandleFunc("/{store}/{id}", s.handlers.Delete).Methods(http.MethodDelete)

	// Preflight requests are answered by the CORS middleware; the route
	// only has to exist so the router does not reject the method first.
	s.router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	// mux invokes these two outside the router.Use chain, so the CORS
	// wrapper has to be applied by hand to keep the headers on every
	// response.
	s.router.NotFoundHandler = middleware.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusNotFound, apierrors.HTTPCodeNotFound, "endpoint not found", requestID)
	}))

	s.router.MethodNotAllowedHandler = middleware.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		s.errorHandler.WriteErrorResponse(w, http.StatusMethodNotAllowed, apierrors.HTTPCodeInvalidRequest, "method not allowed", requestID)
	}))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.Int("port", s.cfg.Server.Port))

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server, for tests.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
