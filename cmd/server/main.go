package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stdref/internal/api"
	"stdref/internal/auth"
	"stdref/internal/config"
	"stdref/internal/logger"
	"stdref/internal/metrics"
	"stdref/internal/oracle"
	"stdref/internal/storage/cache"
	"stdref/internal/storage/memory"
	"stdref/internal/storage/postgres"
	"stdref/internal/storage/redis"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Stage: cfg.Log.Stage}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal("server", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config) error {
	sub, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close storage", zap.Error(err))
		}
	}()

	m := metrics.New(true)
	ref, err := oracle.New(ctx, oracle.Identity(cfg.Oracle.Admin), sub,
		oracle.WithBaseSymbol(oracle.Symbol(cfg.Oracle.BaseSymbol)),
		oracle.WithInstanceID(cfg.Oracle.InstanceID),
		oracle.WithLogger(logger.With(zap.String("component", "oracle"))),
		oracle.WithRecorder(m),
	)
	if err != nil {
		return fmt.Errorf("oracle: %w", err)
	}

	signer, err := auth.NewSigner(cfg.Auth.Secret, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	opts := []api.Option{
		api.WithLogger(logger.With(zap.String("component", "api"))),
		api.WithMetrics(m),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		opts = append(opts, api.WithRateLimiter(api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	}
	handler := api.NewServer(ref, signer, opts...).Routes()

	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           http.TimeoutHandler(handler, timeout, `{"error":"request timed out"}`),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      timeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("base_symbol", string(ref.BaseSymbol())),
			zap.String("contract_id", ref.ContractID()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStorage builds the configured substrate, wrapped in a read cache when
// a TTL is set. The returned func releases the backing connection.
func openStorage(ctx context.Context, cfg config.Storage) (oracle.Substrate, func() error, error) {
	var (
		sub     oracle.Substrate
		closeFn = func() error { return nil }
	)
	switch cfg.Driver {
	case config.DriverMemory, "":
		sub = memory.New()
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		sub, closeFn = store, store.Close
	case config.DriverRedis:
		store, err := redis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		sub, closeFn = store, store.Close
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	if cfg.CacheTTLSec > 0 {
		sub = cache.New(sub, time.Duration(cfg.CacheTTLSec)*time.Second, cfg.CacheMaxItems)
	}
	return sub, closeFn, nil
}
