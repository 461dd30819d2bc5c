package memory

import (
	"context"
	"sync"

	"killboard-stats/internal/storage"
)

// IngestProgressStore is an in-memory implementation of storage.IngestProgressStore.
type IngestProgressStore struct {
	mu       sync.RWMutex
	progress *storage.IngestProgress
}

// NewIngestProgressStore creates a new in-memory ingest progress store.
func NewIngestProgressStore() *IngestProgressStore {
	return &IngestProgressStore{}
}

// GetLastProcessed returns the last processed killmail.
func (s *IngestProgressStore) GetLastProcessed(_ context.Context) (*storage.IngestProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.progress == nil {
		return nil, storage.ErrNotFound
	}

	p := *s.progress
	return &p, nil
}

// SetLastProcessed saves the last processed killmail.
func (s *IngestProgressStore) SetLastProcessed(_ context.Context, progress *storage.IngestProgress) error {
	if progress == nil || progress.KillmailID <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *progress
	s.progress = &p
	return nil
}

var _ storage.IngestProgressStore = (*IngestProgressStore)(nil)
