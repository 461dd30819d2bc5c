// Package main consumes the killstream websocket feed and stores killmails.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"killboard-stats/internal/config"
	"killboard-stats/internal/killstream"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/observability"
	"killboard-stats/internal/storage/stores"
)

func main() {
	config.LoadDotEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "error").Fatal("load config", "err", err)
	}

	// Parse flags (env as defaults)
	url := flag.String("killstream-url", cfg.KillstreamURL, "Killstream websocket URL")
	channels := flag.String("channels", strings.Join(cfg.KillstreamChannels, ","), "Comma-separated feed channels")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	batchSize := flag.Int("batch-size", 100, "Killmails per insert batch")
	flushInterval := flag.Duration("flush-interval", 5*time.Second, "Maximum time a killmail waits in the buffer")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.Component(logging.New(os.Stdout, *logLevel), "ingest")

	if *url == "" {
		logger.Fatal("--killstream-url is required")
	}

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Info("metrics server listening", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server", "err", err)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, cleanup, err := stores.Open(ctx, stores.Options{
		UseMemory:   *useMemory,
		PostgresDSN: *postgresDSN,
		Migrate:     true,
	})
	if err != nil {
		logger.Fatal("open stores", "err", err)
	}
	defer cleanup()

	client, err := killstream.NewClient(ctx, *url, nil, logger)
	if err != nil {
		logger.Fatal("connect killstream", "err", err)
	}
	defer client.Close()

	for _, ch := range strings.Split(*channels, ",") {
		if ch = strings.TrimSpace(ch); ch == "" {
			continue
		}
		if err := client.Subscribe(ch); err != nil {
			logger.Fatal("subscribe", "channel", ch, "err", err)
		}
		logger.Info("subscribed", "channel", ch)
	}

	runner := killstream.NewRunner(killstream.RunnerOptions{
		Source:        client,
		KillmailStore: st.Killmails,
		ProgressStore: st.Progress,
		BatchSize:     *batchSize,
		FlushInterval: *flushInterval,
		Logger:        logger,
	})

	err = runner.Run(ctx)
	stats := runner.Stats()
	logger.Info("ingestion finished",
		"received", stats.Received,
		"stored", stats.Stored,
		"duplicates", stats.Duplicates,
		"decode_errors", stats.DecodeErrors)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingestion stopped", "err", err)
		os.Exit(1)
	}
}
