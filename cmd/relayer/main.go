package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stdref/internal/client"
	"stdref/internal/config"
	"stdref/internal/httpx"
	"stdref/internal/logger"
	"stdref/internal/metrics"
	"stdref/internal/relayer"
	"stdref/internal/source"
)

func main() {
	var (
		configPath  string
		symbolsCSV  string
		schedule    string
		metricsAddr string
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated symbols, overrides relayer.symbols")
	flag.StringVar(&schedule, "schedule", "", "cron schedule, overrides relayer.schedule")
	flag.StringVar(&metricsAddr, "metrics-addr", os.Getenv("RELAYER_METRICS_ADDR"), "serve /metrics on this address when set")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if symbolsCSV != "" {
		cfg.Relayer.Symbols = splitCSV(symbolsCSV)
	}
	if schedule != "" {
		cfg.Relayer.Schedule = schedule
	}

	if err := logger.Init(logger.Config{Level: cfg.Log.Level, Stage: cfg.Log.Stage}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateRelayer(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	m := metrics.New(metricsAddr != "")
	r, err := build(cfg, logger.Log, m)
	if err != nil {
		logger.Fatal("relayer", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		srv := &http.Server{Addr: metricsAddr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}
	if err := r.Run(ctx); err != nil {
		logger.Fatal("relayer", zap.Error(err))
	}
}

// build wires the price source and one sender per relayer token.
func build(cfg config.Config, log *zap.Logger, m *metrics.Metrics) (*relayer.Relayer, error) {
	rc := cfg.Relayer
	hc := httpx.New(time.Duration(rc.RequestTimeoutSec) * time.Second)

	src := source.Wrap(
		source.NewHTTP(source.HTTPConfig{Name: "feed", URL: rc.SourceURL, Headers: rc.SourceHeaders}, hc, log.Named("source")),
		rc.MaxRequestsPerMinute, rc.Burst, time.Duration(rc.MinRequestIntervalSec)*time.Second,
	)

	senders := make([]relayer.Sender, 0, len(rc.Tokens))
	for i, token := range rc.Tokens {
		c, err := client.New(
			client.WithBaseURL(rc.Endpoint),
			client.WithHTTPClient(hc.Standard()),
			client.WithToken(token),
		)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", i, err)
		}
		senders = append(senders, relayer.Sender{Name: fmt.Sprintf("sender-%d", i), Submitter: c})
	}

	return relayer.New(relayer.Config{
		Symbols:        rc.Symbols,
		Schedule:       rc.Schedule,
		MaxTry:         rc.MaxTry,
		QueueSize:      rc.QueueSize,
		BackoffInitial: time.Duration(rc.BackoffInitialMs) * time.Millisecond,
		BackoffMax:     time.Duration(rc.BackoffMaxMs) * time.Millisecond,
	}, src, senders,
		relayer.WithLogger(log.Named("relayer")),
		relayer.WithRecorder(m),
	)
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
