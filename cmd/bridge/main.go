// LigVideo bridge - exchanges a WooCommerce catalog and carts with the LigVideo terminal.
// Designed for Cloud Run deployment with stateless operation.
package main

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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"ligvideo-bridge/internal/adapter"
	"ligvideo-bridge/internal/config"
	"ligvideo-bridge/internal/deeplink"
	"ligvideo-bridge/internal/handler"
	"ligvideo-bridge/internal/metrics"
	"ligvideo-bridge/internal/middleware"
	"ligvideo-bridge/internal/seal"
	"ligvideo-bridge/internal/woocommerce"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A local .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("store_id", cfg.StoreID),
		slog.String("adapter_type", cfg.AdapterType),
		slog.String("environment", cfg.Environment),
		slog.String("store_domain", cfg.Merchant.StoreDomain),
		slog.Bool("public_key", cfg.LigVideo.PublicKey != ""),
		slog.Bool("button_enabled", cfg.LigVideo.ButtonEnabled),
	)
	if cfg.LigVideo.PublicKey == "" {
		logger.Warn("no public key configured, catalog exports will fail with no_key")
	}

	store, err := createStore(cfg)
	if err != nil {
		return fmt.Errorf("creating store adapter: %w", err)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	h := handler.New(
		store,
		seal.NewSealer(cfg.LigVideo.PublicKey),
		deeplink.NewBuilder(cfg.LigVideo.TerminalURL),
		m,
		handler.Options{
			StoreID:       cfg.StoreID,
			CartURL:       cfg.Merchant.CartURL(),
			CookieName:    cfg.Merchant.CookieName,
			ButtonEnabled: cfg.LigVideo.ButtonEnabled,
		},
		logger,
	)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", metrics.Handler(prometheus.DefaultGatherer))

	// Apply middleware chain: recovery → request id → logging → metrics → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(m),
	)(mux)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// createStore creates the store adapter based on configuration.
func createStore(cfg *config.Config) (adapter.Store, error) {
	switch cfg.AdapterType {
	case "woocommerce":
		return woocommerce.New(woocommerce.Config{
			StoreURL:     cfg.Merchant.StoreURL,
			APIKey:       cfg.Merchant.APIKey,
			APISecret:    cfg.Merchant.APISecret,
			CookieName:   cfg.Merchant.CookieName,
			CookieDomain: cfg.Merchant.CookieDomain,
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", cfg.AdapterType)
	}
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
