// Package main runs the stats HTTP API:
// - GET /stats  per-group killboard stats
// - GET /health liveness
// - GET /metrics Prometheus
// Optionally it also consumes the killstream feed in the same process.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"killboard-stats/internal/cache"
	"killboard-stats/internal/config"
	"killboard-stats/internal/fixtures"
	"killboard-stats/internal/httpapi"
	"killboard-stats/internal/killstream"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/stats"
	"killboard-stats/internal/storage/stores"
)

func main() {
	// Load .env file if exists
	config.LoadDotEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "error").Fatal("load config", "err", err)
	}

	// Parse flags (env as defaults)
	addr := flag.String("addr", cfg.HTTPAddr, "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (enables snapshots)")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	useFixtures := flag.Bool("use-fixtures", false, "Seed in-memory storage with demo data (implies --use-memory)")
	killstreamURL := flag.String("killstream-url", cfg.KillstreamURL, "Killstream websocket URL (empty disables ingestion)")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.Component(logging.New(os.Stdout, *logLevel), "server")

	threshold, err := cfg.Threshold()
	if err != nil {
		logger.Fatal("invalid threshold", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, cleanup, err := stores.Open(ctx, stores.Options{
		UseMemory:     *useMemory || *useFixtures,
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
		Migrate:       true,
	})
	if err != nil {
		logger.Fatal("open stores", "err", err)
	}
	defer cleanup()

	if *useFixtures {
		if err := fixtures.Load(ctx, st.Killmails, st.Groups); err != nil {
			logger.Fatal("load fixtures", "err", err)
		}
		logger.Info("fixtures loaded", "from", fixtures.Start, "to", fixtures.End)
	}

	svc := stats.New(stats.Options{
		KillmailStore:      st.Killmails,
		GroupStore:         st.Groups,
		SnapshotStore:      st.Snapshots,
		Cache:              cache.NewMemory(cache.WithMaxEntries(cfg.CacheMaxEntries)),
		CacheTTL:           cfg.CacheTTL,
		FetchRate:          cfg.FetchRate,
		Logger:             logging.Component(logger, "stats"),
		Workers:            cfg.Workers,
		HighValueThreshold: threshold,
	})

	if *killstreamURL != "" {
		go runIngestion(ctx, *killstreamURL, cfg.KillstreamChannels, st, logging.Component(logger, "ingest"))
	}

	app := httpapi.NewApp(httpapi.NewStatsHandler(svc))

	go func() {
		logger.Info("listening", "addr", *addr)
		if err := app.Listen(*addr); err != nil {
			logger.Error("fiber stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("fiber shutdown", "err", err)
	}
	logger.Info("server exiting")
}

// runIngestion feeds the killstream into the stores until ctx ends.
func runIngestion(ctx context.Context, url string, channels []string, st *stores.Stores, logger *log.Logger) {
	client, err := killstream.NewClient(ctx, url, nil, logger)
	if err != nil {
		logger.Error("connect killstream", "err", err)
		return
	}
	defer client.Close()

	for _, ch := range channels {
		if err := client.Subscribe(strings.TrimSpace(ch)); err != nil {
			logger.Error("subscribe", "channel", ch, "err", err)
			return
		}
	}

	runner := killstream.NewRunner(killstream.RunnerOptions{
		Source:        client,
		KillmailStore: st.Killmails,
		ProgressStore: st.Progress,
		Logger:        logger,
	})
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("ingestion stopped", "err", err)
	}
	logger.Info("ingestion finished", "stored", runner.Stats().Stored)
}
