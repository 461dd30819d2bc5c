package migrations

import (
	"context"
	"fmt"

	"killboard-stats/internal/storage/postgres"
)

// RunPostgresMigrations applies the killmail, group and ingest progress schema.
// Every file uses IF NOT EXISTS, so reruns are safe.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := Load(DialectPostgres)
	if err != nil {
		return err
	}
	for _, m := range files {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
	}
	return nil
}
