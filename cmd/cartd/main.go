// cartd serves wholesale carts over REST and MCP.
// Designed for Cloud Run; carts live in memory unless STORAGE_DIR is set.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wholesale-cart/internal/buyer"
	"wholesale-cart/internal/cart"
	"wholesale-cart/internal/config"
	"wholesale-cart/internal/handler"
	"wholesale-cart/internal/middleware"
	"wholesale-cart/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := initLogger(cfg)

	engine, err := cfg.BuildRules()
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	store, err := cfg.BuildStorage()
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	calc, err := cfg.BuildShipping()
	if err != nil {
		return fmt.Errorf("creating shipping client: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("store_url", cfg.Store.StoreURL),
		slog.String("rules_file", cfg.RulesFile),
		slog.String("storage_dir", cfg.StorageDir),
		slog.Bool("shipping_enabled", calc != nil),
	)

	sessions := session.NewRegistry(cart.Deps{
		Rules:    engine,
		Storage:  store,
		Shipping: calc,
		Logger:   logger,
	})
	if ids, err := sessions.IDs(ctx); err != nil {
		logger.Warn("listing saved carts failed", slog.String("error", err.Error()))
	} else {
		logger.Info("saved carts found", slog.Int("count", len(ids)))
	}

	h := handler.New(sessions, engine, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → buyer context → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		buyer.Middleware(logger),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for Cloud Logging; development uses text.
func initLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Level()
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
