// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware and
// routes. main.go builds the long-lived dependencies (database, token
// service, lockout store, metrics registry) and hands them over in Deps;
// New assembles services and handlers from them.
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

	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/handler"
	"github.com/sakif/tasktracker/internal/lockout"
	"github.com/sakif/tasktracker/internal/metrics"
	"github.com/sakif/tasktracker/internal/middleware"
	"github.com/sakif/tasktracker/internal/model"
	sqliteRepo "github.com/sakif/tasktracker/internal/repository/sqlite"
	"github.com/sakif/tasktracker/internal/service"
)

// Deps are the collaborators built by main.
type Deps struct {
	DB        *sqliteRepo.DB
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
	Google    *auth.GoogleProvider
	// Lockout may be nil to disable per-username lockout.
	Lockout *lockout.Guard
	Metrics *metrics.Collector
	// Gatherer backs GET /metrics. Nil leaves the route unmounted.
	Gatherer prometheus.Gatherer
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection and the rate limiter's cleanup
// goroutine. Both are released by Close, which Start calls on shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New wires services, handlers and routes.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB → UserStore/TodoStore (repository interfaces)
//	         → Auth/User/Todo/AdminService
//	         → handlers → routes
func New(cfg *config.Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.DB == nil || deps.Tokens == nil || deps.Passwords == nil || deps.Google == nil {
		return nil, errors.New("server: database, token, password and provider dependencies are required")
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      deps.DB,
		limiter: middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst), logger),
	}

	s.setupRoutes(deps)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthy                      → liveness + DB ping
//	GET    /metrics                      → Prometheus scrape
//	POST   /auth/                        → register                (rate limited)
//	POST   /auth/token                   → password login          (rate limited)
//	GET    /auth/google/login            → redirect to Google      (rate limited)
//	GET    /auth/google/callback         → finish Google sign-in   (rate limited)
//	POST   /auth/logout                  → clear session cookie
//	GET    /users/                       → current user            (auth)
//	PUT    /users/password               → change password         (auth)
//	PUT    /users/phonenumber/{phone}    → change phone            (auth)
//	PUT    /users/address?address=      → change address          (auth)
//	GET    /todos/                       → list own todos          (auth)
//	POST   /todos/todo                   → create                  (auth)
//	GET    /todos/todo/{id}              → read                    (auth)
//	PUT    /todos/todo/{id}              → update                  (auth)
//	DELETE /todos/todo/{id}              → delete                  (auth)
//	GET    /admin/todo                   → all todos               (admin)
//	DELETE /admin/todo/{id}              → delete any todo         (admin)
//	GET    /admin/users                  → all users               (admin)
//	GET    /admin/stats                  → counts                  (admin)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID first so every log line has it, RealIP before the rate limiter
// so buckets are per client rather than per proxy.
func (s *Server) setupRoutes(deps Deps) {
	var recorder metrics.Recorder = metrics.Nop{}
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	users := deps.DB.Users()
	todos := deps.DB.Todos()

	authService := service.NewAuthService(users, deps.Tokens, deps.Passwords, s.logger, service.AuthOptions{
		TokenTTL:              s.config.Auth.TokenTTL,
		Lockout:               deps.Lockout,
		Metrics:               recorder,
		OpenAdminRegistration: s.config.Auth.OpenAdminRegistration,
	})
	userService := service.NewUserService(users, deps.Passwords, s.logger)
	todoService := service.NewTodoService(todos, s.logger)
	adminService := service.NewAdminService(todos, users, s.logger)

	authHandler := handler.NewAuthHandler(authService, deps.Google, handler.CookieConfig{
		Secure:      s.config.Auth.CookieSecure,
		LandingPath: s.config.Google.LandingPath,
	}, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	todoHandler := handler.NewTodoHandler(todoService, s.logger)
	adminHandler := handler.NewAdminHandler(adminService, s.logger)
	healthHandler := handler.NewHealthHandler(deps.DB, s.logger)

	requireAuth := auth.RequireAuth(deps.Tokens, recorder)

	s.router.Get("/healthy", healthHandler.HandleHealthy)
	if deps.Gatherer != nil {
		s.router.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/logout", authHandler.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware)
			r.Post("/", authHandler.HandleRegister)
			r.Post("/token", authHandler.HandleToken)
			r.Get("/google/login", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
		})
	})

	s.router.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", userHandler.HandleMe)
		r.Put("/password", userHandler.HandleChangePassword)
		r.Put("/phonenumber/{phone}", userHandler.HandleChangePhoneNumber)
		r.Put("/address", userHandler.HandleChangeAddress)
	})

	s.router.Route("/todos", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", todoHandler.HandleList)
		r.Post("/todo", todoHandler.HandleCreate)
		r.Get("/todo/{id}", todoHandler.HandleGet)
		r.Put("/todo/{id}", todoHandler.HandleUpdate)
		r.Delete("/todo/{id}", todoHandler.HandleDelete)
	})

	s.router.Route("/admin", func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(auth.RequireRole(model.RoleAdmin))
		r.Get("/todo", adminHandler.HandleListTodos)
		r.Delete("/todo/{id}", adminHandler.HandleDeleteTodo)
		r.Get("/users", adminHandler.HandleListUsers)
		r.Get("/stats", adminHandler.HandleStats)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes the database.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (30s)
//  3. Close the database (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing server resources", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + s.config.HTTP.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.HTTP.ReadTimeout,
		WriteTimeout: s.config.HTTP.WriteTimeout,
		IdleTimeout:  s.config.HTTP.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("env", s.config.Env),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
