// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// Think of it as the control centre that decides:
// - Which URL patterns map to which handler functions
// - Which access policy guards each route
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: config.Load() → server.New(cfg)
//	server.New creates: sqlstore.DB → services → handlers
//	                    AuthService → Authorizer (route guards)
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/messagely/internal/auth"
	"github.com/sakif/messagely/internal/config"
	"github.com/sakif/messagely/internal/handler"
	"github.com/sakif/messagely/internal/middleware"
	"github.com/sakif/messagely/internal/repository/sqlstore"
	"github.com/sakif/messagely/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection pool (db). When the server shuts
// down, Start closes it so SQLite can checkpoint its WAL and release the file.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqlstore.DB
	registry *prometheus.Registry
}

// New opens the store, builds every service and handler, and mounts routes.
//
// Each layer only receives what it needs:
// - Services get repository interfaces (not the concrete sqlstore.DB)
// - Handlers get services through small interfaces
// - The Authorizer gets the AuthService (as an auth.TokenVerifier)
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /health                   → store ping                 (public)
// GET    /metrics                  → Prometheus exposition      (public, optional)
// POST   /login                    → token for valid creds      (public)
// POST   /register                 → create account + token     (public)
// GET    /users                    → all users                  (logged in)
// POST   /messages                 → send as caller             (logged in)
// GET    /messages/{id}            → one message                (logged in, sender or recipient)
// POST   /messages/{id}/read       → mark read                  (logged in, recipient)
// GET    /users/{username}         → profile                    (caller == username)
// GET    /users/{username}/to      → inbox                      (caller == username)
// GET    /users/{username}/from    → sent                       (caller == username)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns (or honours) X-Request-ID
// 2. RealIP — extracts real client IP from proxy headers
// 3. Logger — logs each request with timing info and the request id
// 4. Metrics — counts and times requests by route pattern
// 5. Recoverer — catches panics and returns 500 instead of crashing
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return err
	}
	passwords, err := auth.NewPasswordService(s.config.BcryptCost)
	if err != nil {
		return err
	}
	passwords.WithLimiter(auth.NewHashLimiter(s.config.HashWorkers))

	// === Global Middleware ===
	s.router.Use(middleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))

	// Metrics sits outside Recoverer so a recovered panic is counted as
	// the 500 the client actually received.
	if s.config.MetricsEnabled {
		metrics, err := s.setupMetrics()
		if err != nil {
			return fmt.Errorf("setting up metrics: %w", err)
		}
		s.router.Use(metrics.Handler)
	}
	s.router.Use(chimiddleware.Recoverer)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	// === Services ===
	// s.db implements both repository interfaces.
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	userService := service.NewUserService(s.db, s.logger)
	messageService := service.NewMessageService(s.db, s.logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	messageHandler := handler.NewMessageHandler(messageService, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	// Route guards verify tokens through the Authentication Service.
	authz := auth.NewAuthorizer(authService, s.logger)

	// === Public Routes ===
	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Post("/login", authHandler.HandleLogin)
	s.router.Post("/register", authHandler.HandleRegister)

	// === Logged-in Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(authz.Enforce(auth.LoggedIn))

		r.Get("/users", userHandler.HandleList)
		r.Post("/messages", messageHandler.HandleCreate)
		r.Get("/messages/{id}", messageHandler.HandleGet)
		r.Post("/messages/{id}/read", messageHandler.HandleMarkRead)
	})

	// === Owner-only Routes ===
	// Group middleware wraps each endpoint after routing, so {username}
	// is already resolved when the policy compares it with the caller.
	s.router.Group(func(r chi.Router) {
		r.Use(authz.Enforce(auth.CorrectUser))

		r.Get("/users/{username}", userHandler.HandleGet)
		r.Get("/users/{username}/to", userHandler.HandleMessagesTo)
		r.Get("/users/{username}/from", userHandler.HandleMessagesFrom)
	})

	return nil
}

// setupMetrics builds a private registry with runtime, process and
// connection-pool collectors plus the request metrics.
func (s *Server) setupMetrics() (*middleware.Metrics, error) {
	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.db.StatsCollector(),
	)
	return middleware.NewMetrics(middleware.MetricsOptions{Registerer: s.registry})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on the way out; tests that
// never call Start use it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	// Ensure the database is closed when the server stops.
	defer s.Close()

	// Create the HTTP server with sensible timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to receive OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	// Channel to receive server errors
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("driver", s.db.Dialect().Name),
			slog.Bool("metrics", s.config.MetricsEnabled),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
