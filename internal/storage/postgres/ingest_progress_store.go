package postgres

import (
	"context"

	"killboard-stats/internal/storage"
)

// IngestProgressStore is a PostgreSQL implementation of storage.IngestProgressStore.
// ingest_progress holds a single row with the last stored killmail.
type IngestProgressStore struct {
	pool *Pool
}

// NewIngestProgressStore creates a new PostgreSQL ingest progress store.
func NewIngestProgressStore(pool *Pool) *IngestProgressStore {
	return &IngestProgressStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)

// GetLastProcessed returns the last processed killmail.
func (s *IngestProgressStore) GetLastProcessed(ctx context.Context) (*storage.IngestProgress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT last_killmail_id, last_killmail_time
		FROM ingest_progress
		WHERE id = 1
	`)

	var progress storage.IngestProgress
	if err := row.Scan(&progress.KillmailID, &progress.Time); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	progress.Time = progress.Time.UTC()

	return &progress, nil
}

// SetLastProcessed saves the last processed killmail.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IngestProgressStore) SetLastProcessed(ctx context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.KillmailID <= 0 {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_progress (id, last_killmail_id, last_killmail_time, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET last_killmail_id = EXCLUDED.last_killmail_id,
		    last_killmail_time = EXCLUDED.last_killmail_time,
		    updated_at = NOW()
	`, progress.KillmailID, progress.Time.UTC())

	return err
}
