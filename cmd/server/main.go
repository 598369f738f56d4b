/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the labor-cost engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, LABOR_* environment, flags)
  2. Open the store (sqlite, postgres or memory)
  3. Build the calculator (tax tables, timezone, metrics, events)
  4. Pick the subscription gate
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (overrides LABOR_PORT)
  -db      SQLite database path (overrides LABOR_SQLITE_PATH)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain the event connection and close the store
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/labor.db"

  # Run against Postgres with Stripe gating
  LABOR_STORE=postgres LABOR_DATABASE_URL=postgres://... \
  LABOR_SUBSCRIPTION_GATE=stripe LABOR_STRIPE_SECRET_KEY=sk_... ./server

SEE ALSO:
  - config/config.go: Environment keys and defaults
  - api/server.go: Router configuration
  - store/: Backends
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/labor-engine/api"
	"github.com/warp/labor-engine/billing"
	"github.com/warp/labor-engine/config"
	"github.com/warp/labor-engine/events"
	"github.com/warp/labor-engine/payroll"
	"github.com/warp/labor-engine/store/memory"
	"github.com/warp/labor-engine/store/postgres"
	"github.com/warp/labor-engine/store/sqlite"
	"github.com/warp/labor-engine/telemetry"
)

// backend is what the server needs from any store.
type backend interface {
	payroll.Store
	billing.SubscriptionStore
}

func main() {
	// Flags
	port := flag.Int("port", 0, "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	defer closeStore()
	logger.Info().Str("store", cfg.Store).Msg("store ready")

	// Calculator
	tables := payroll.DefaultTaxTables()
	if cfg.TaxTablesFile != "" {
		if tables, err = payroll.LoadTaxTables(cfg.TaxTablesFile); err != nil {
			return err
		}
		logger.Info().Str("file", cfg.TaxTablesFile).Msg("tax tables loaded")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	opts := []payroll.Option{
		payroll.WithTables(tables),
		payroll.WithLogger(logger),
		payroll.WithLocation(loc),
	}

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.New(telemetry.DefaultNamespace)
		opts = append(opts, payroll.WithMetrics(metrics))
	}

	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, cfg.NATSSubject, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, payroll.WithPublisher(pub))
		logger.Info().Str("subject", cfg.NATSSubject).Msg("publishing calculation events")
	} else {
		opts = append(opts, payroll.WithPublisher(events.Noop{}))
	}

	calc := payroll.NewCalculator(store, opts...)

	// Subscription gate
	var gate billing.Gate
	switch cfg.SubscriptionGate {
	case config.GateStripe:
		gate = billing.NewStripeGate(cfg.StripeSecretKey, store)
	case config.GateStore:
		gate = billing.StoreGate{Store: store}
	default:
		gate = billing.StaticGate(true)
	}

	// Initialize handler
	handler := api.NewHandler(store, calc)
	handler.StoreName = cfg.Store
	handler.StripeConfigured = cfg.StripeSecretKey != ""
	handler.BatchWorkers = cfg.BatchWorkers

	// Create router
	ropts := api.RouterOptions{
		Logger:         logger,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Gate:           gate,
		Scenarios:      !cfg.IsProd(),
	}
	if metrics != nil {
		ropts.Metrics = metrics
	}
	router := api.NewRouter(handler, ropts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Port).
			Str("env", cfg.Env).
			Str("timezone", cfg.Timezone).
			Str("gate", cfg.SubscriptionGate).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.StoreMemory:
		return memory.New(), func() {}, nil
	default:
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
}
