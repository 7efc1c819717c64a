package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver

	"github.com/perchpress/newsletter-backend/internal/api"
	"github.com/perchpress/newsletter-backend/internal/config"
	"github.com/perchpress/newsletter-backend/internal/db"
	"github.com/perchpress/newsletter-backend/internal/domain"
	"github.com/perchpress/newsletter-backend/internal/email"
	"github.com/perchpress/newsletter-backend/internal/store"
	"github.com/perchpress/newsletter-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// The sender address obeys the same grammar as any subscriber address.
	sender, err := domain.ParseSubscriberEmail(cfg.EmailFromAddr)
	if err != nil {
		return fmt.Errorf("config: EMAIL_FROM_ADDR: %w", err)
	}

	// ── Database ──────────────────────────────────────────────────────────────
	pool, queries, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	// ── Store (atomic multi-step writes) ──────────────────────────────────────
	st := store.New(pool, queries)

	// ── Email client ──────────────────────────────────────────────────────────
	mailer := email.NewSendGridClient(email.ClientConfig{
		BaseURL:    cfg.EmailBaseURL,
		SendPath:   cfg.EmailSendPath,
		Sender:     sender,
		SenderName: cfg.EmailFromName,
		APIKey:     cfg.EmailAPIKey,
		LinkBase:   cfg.BaseURL,
		Timeout:    cfg.EmailTimeout,
	})

	// ── Token sweeper ─────────────────────────────────────────────────────────
	sweeper := worker.NewSweeper(st, worker.SweeperConfig{
		Interval:  cfg.SweepInterval,
		Retention: cfg.TokenRetention,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(
		queries,
		st,
		mailer,
		api.Config{
			Env: cfg.Env,
		},
		logger,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Sweeper and HTTP server both
	// respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the sweeper in a background goroutine. It blocks until ctx is done.
	go sweeper.Start(ctx)

	// Start the HTTP server in a background goroutine.
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and prepares all statements. Using
// db.Prepare (rather than db.New) means every query is validated against the
// database schema at startup — the server refuses to start if the schema is
// out of sync.
func openDB(dsn string) (*sql.DB, *db.Queries, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	// Verify the connection is reachable before proceeding.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	queries, err := db.Prepare(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("prepare statements: %w", err)
	}

	return pool, queries, nil
}
