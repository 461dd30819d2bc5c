// Package stores opens the storage backends used by the binaries.
package stores

import (
	"context"
	"errors"
	"fmt"

	"killboard-stats/internal/storage"
	chstore "killboard-stats/internal/storage/clickhouse"
	"killboard-stats/internal/storage/memory"
	"killboard-stats/internal/storage/migrations"
	pgstore "killboard-stats/internal/storage/postgres"
)

// ErrMissingDSN is returned when a database backend is requested without a DSN.
var ErrMissingDSN = errors.New("postgres dsn is required unless memory storage is used")

// Stores holds all storage implementations.
type Stores struct {
	Killmails storage.KillmailStore
	Groups    storage.GroupStore
	Progress  storage.IngestProgressStore
	Snapshots storage.SnapshotStore // nil when no snapshot backend is configured
}

// Options selects and configures backends.
type Options struct {
	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string // optional; enables snapshot persistence
	Migrate       bool   // apply embedded migrations on open
}

// Memory returns fresh in-memory stores.
func Memory() *Stores {
	return &Stores{
		Killmails: memory.NewKillmailStore(),
		Groups:    memory.NewGroupStore(),
		Progress:  memory.NewIngestProgressStore(),
		Snapshots: memory.NewSnapshotStore(),
	}
}

// Open connects the configured backends. The returned cleanup closes every
// connection it opened.
func Open(ctx context.Context, opts Options) (*Stores, func(), error) {
	if opts.UseMemory {
		return Memory(), func() {}, nil
	}
	if opts.PostgresDSN == "" {
		return nil, nil, ErrMissingDSN
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, opts.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if opts.Migrate {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
	}

	s := &Stores{
		Killmails: pgstore.NewKillmailStore(pool),
		Groups:    pgstore.NewGroupStore(pool),
		Progress:  pgstore.NewIngestProgressStore(pool),
	}

	if opts.ClickhouseDSN == "" {
		return s, pool.Close, nil
	}

	// ClickHouse
	var chConn *chstore.Conn
	if opts.Migrate {
		chConn, err = migrations.RunClickhouseMigrations(ctx, opts.ClickhouseDSN)
	} else {
		chConn, err = chstore.NewConn(ctx, opts.ClickhouseDSN)
	}
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	s.Snapshots = chstore.NewSnapshotStore(chConn)

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return s, cleanup, nil
}
