// Package main writes GROUP_STATS.md and GROUP_STATS.csv for a time window.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"killboard-stats/internal/config"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/fixtures"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/reporting"
	"killboard-stats/internal/stats"
	"killboard-stats/internal/storage/stores"
)

func main() {
	config.LoadDotEnv(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (required with --persist)")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory fixtures instead of database")
	groups := flag.String("groups", "", "Comma-separated group ids (empty for all)")
	from := flag.String("from", "", "Window start (RFC3339)")
	to := flag.String("to", "", "Window end, exclusive (RFC3339)")
	granularity := flag.String("granularity", "day", "Bucket granularity: hour, day, week")
	report := flag.String("report", "kills", "Report: kills, losses, activity")
	top := flag.String("top", "value", "Top performer metric: value, count, solo")
	persist := flag.Bool("persist", false, "Persist a snapshot run")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flag.Parse()

	logger := logging.Component(logging.New(os.Stderr, *logLevel), "report")
	ctx := context.Background()

	// Validate flags
	if !*useFixtures && *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required when not using fixtures")
		fmt.Fprintln(os.Stderr, "Use --use-fixtures to run with demo data instead")
		os.Exit(1)
	}

	start, end, err := parseWindow(*from, *to, *useFixtures)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	threshold, err := cfg.Threshold()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st, cleanup, err := stores.Open(ctx, stores.Options{
		UseMemory:     *useFixtures,
		PostgresDSN:   *postgresDSN,
		ClickhouseDSN: *clickhouseDSN,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to databases: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if *useFixtures {
		if err := fixtures.Load(ctx, st.Killmails, st.Groups); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
			os.Exit(1)
		}
	}

	svc := stats.New(stats.Options{
		KillmailStore:      st.Killmails,
		GroupStore:         st.Groups,
		SnapshotStore:      st.Snapshots,
		Logger:             logger,
		Workers:            cfg.Workers,
		HighValueThreshold: threshold,
	})

	// Fixed clock under fixtures for reproducible output
	gen := reporting.NewGenerator(svc)
	if *useFixtures {
		gen.WithClock(func() time.Time { return fixtures.End })
	}

	r, err := gen.Generate(ctx, stats.Query{
		GroupIDs:    splitList(*groups),
		Start:       start,
		End:         end,
		Granularity: domain.Granularity(*granularity),
		Report:      *report,
		TopMetric:   domain.TopMetric(*top),
		Persist:     *persist,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"GROUP_STATS.md":         reporting.RenderMarkdown(r),
		"GROUP_STATS.csv":        reporting.RenderCSV(r.Groups),
		"GROUP_STATS_SERIES.csv": reporting.RenderSeriesCSV(r.Series),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", path)
	}

	if r.RunID != "" {
		fmt.Printf("Snapshot run: %s\n", r.RunID)
	}
}

// parseWindow reads the RFC3339 window. Under fixtures an empty window means
// the fixture window.
func parseWindow(from, to string, useFixtures bool) (time.Time, time.Time, error) {
	if from == "" && to == "" && useFixtures {
		return fixtures.Start, fixtures.End, nil
	}
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from and --to are required")
	}

	start, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
	}
	end, err := time.Parse(time.RFC3339, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
	}
	return start.UTC(), end.UTC(), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
