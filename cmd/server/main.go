// Package main is the entry point for the tasktracker server.
//
// The main package is kept minimal. Its job is to:
//  1. Read configuration
//  2. Create long-lived dependencies (logger, database, token service,
//     lockout store, metrics registry)
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server,
// internal/service, internal/handler, ...).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/tasktracker/internal/auth"
	"github.com/sakif/tasktracker/internal/config"
	"github.com/sakif/tasktracker/internal/lockout"
	"github.com/sakif/tasktracker/internal/metrics"
	sqliteRepo "github.com/sakif/tasktracker/internal/repository/sqlite"
	"github.com/sakif/tasktracker/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// Human-readable text locally, JSON everywhere else.
	logger := setupLogger(cfg)
	logger.Info("configuration loaded", slog.String("config", cfg.String()))

	// run owns every deferred cleanup; main only turns its error into an exit code.
	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	// === 3. DATABASE ===
	if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// === 4. AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Algorithm)
	if err != nil {
		db.Close()
		return fmt.Errorf("token configuration: %w", err)
	}

	google := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserInfoURL:  cfg.Google.UserInfoURL,
		Timeout:      cfg.Google.Timeout,
	})
	if !google.Configured() {
		logger.Warn("GOOGLE_CLIENT_ID/GOOGLE_CLIENT_SECRET not set; Google sign-in is disabled")
	}

	// === 5. LOCKOUT STORE ===
	// Redis when configured so every replica sees the same counters,
	// otherwise an in-process map swept once a minute.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, closeStore, err := lockoutStore(ctx, cfg, logger)
	if err != nil {
		db.Close()
		return err
	}
	defer closeStore()
	guard := lockout.NewGuard(store, cfg.Lockout.Threshold, cfg.Lockout.Window)

	// === 6. METRICS ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// === 7. SERVER ===
	srv, err := server.New(cfg, server.Deps{
		DB:        db,
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost),
		Google:    google,
		Lockout:   guard,
		Metrics:   collector,
		Gatherer:  registry,
	}, logger)
	if err != nil {
		db.Close()
		return fmt.Errorf("creating server: %w", err)
	}

	// Start() blocks until SIGINT/SIGTERM and closes the database on the way out.
	return srv.Start()
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.IsLocal() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func lockoutStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (lockout.Store, func(), error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Not fatal: the guard fails open and password checks still apply.
			logger.Warn("redis unreachable at startup", slog.String("error", err.Error()))
		}

		logger.Info("lockout state in redis", slog.String("addr", opts.Addr))
		return lockout.NewRedisStore(client), func() { _ = client.Close() }, nil
	}

	mem := lockout.NewMemoryStore()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := mem.Sweep(now); n > 0 {
					logger.Debug("lockout entries swept", slog.Int("count", n))
				}
			}
		}
	}()
	return mem, func() {}, nil
}
