package memory

import (
	"context"
	"sort"
	"sync"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	runs map[string][]*domain.SnapshotRow
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		runs: make(map[string][]*domain.SnapshotRow),
	}
}

// InsertBulk adds rows atomically. Fails entire batch when a run already exists.
func (s *SnapshotStore) InsertBulk(_ context.Context, rows []*domain.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string][]*domain.SnapshotRow)
	for _, r := range rows {
		if r == nil || r.RunID == "" || r.GroupID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.runs[r.RunID]; exists {
			return storage.ErrDuplicateKey
		}
		batch[r.RunID] = append(batch[r.RunID], copySnapshot(r))
	}

	for runID, list := range batch {
		s.runs[runID] = list
	}
	return nil
}

// GetByRun retrieves all rows of a run ordered by group_id, bucket_start.
func (s *SnapshotStore) GetByRun(_ context.Context, runID string) ([]*domain.SnapshotRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, ok := s.runs[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	result := make([]*domain.SnapshotRow, len(list))
	for i, r := range list {
		result[i] = copySnapshot(r)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].GroupID != result[j].GroupID {
			return result[i].GroupID < result[j].GroupID
		}
		return result[i].BucketStart.Before(result[j].BucketStart)
	})
	return result, nil
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
