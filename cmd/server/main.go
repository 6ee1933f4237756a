package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/example/ride-booking/internal/account"
	"github.com/example/ride-booking/internal/booking"
	"github.com/example/ride-booking/internal/config"
	"github.com/example/ride-booking/internal/dispatch"
	"github.com/example/ride-booking/internal/geo"
	httpapi "github.com/example/ride-booking/internal/http"
	"github.com/example/ride-booking/internal/ingest"
	"github.com/example/ride-booking/internal/logging"
	"github.com/example/ride-booking/internal/payments"
	"github.com/example/ride-booking/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) error {
	checks := map[string]httpapi.Pinger{}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			return err
		}
		if cfg.RunMigrations {
			applied, err := ps.Migrate(ctx)
			if err != nil {
				_ = ps.Close()
				return err
			}
			logger.Info("migrations applied", "files", applied)
		}
		store = ps
		logger.Info("using postgres store")
	} else {
		store = storage.NewMemoryStore()
		logger.Warn("PG_DSN not set, using in-memory store")
	}
	defer store.Close()
	checks["store"] = store

	var locator geo.Locator
	if cfg.RedisAddr != "" {
		rg := geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer rg.Close()
		locator = rg
		checks["redis"] = rg
	} else {
		locator = geo.NewIndex()
	}

	wsreg := dispatch.NewWSRegistry()
	svc := &booking.Service{
		Store:          store,
		Locator:        locator,
		Notifier:       wsreg,
		CandidateLimit: cfg.CandidateLimit,
		Logger:         logger,
	}
	deps := httpapi.Deps{
		Booking:  svc,
		Accounts: &account.Service{Users: store, BcryptCost: cfg.BcryptCost, Logger: logger},
		Geo:      locator,
		WSReg:    wsreg,
		Checks:   checks,
		Logger:   logger,
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaLocationTopic, cfg.KafkaRideEventsTopic, logger)
		defer kp.Close()
		svc.Events = kp
		deps.Locations = kp
		logger.Info("kafka enabled", "brokers", cfg.KafkaBrokers)
	}
	if cfg.StripeAPIKey != "" {
		svc.Payments = payments.NewStripeClient(cfg.StripeAPIKey, cfg.StripeCurrency)
		logger.Info("stripe holds enabled", "currency", cfg.StripeCurrency)
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(deps),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ride-booking listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
