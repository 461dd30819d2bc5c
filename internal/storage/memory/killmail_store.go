package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// KillmailStore is an in-memory implementation of storage.KillmailStore.
type KillmailStore struct {
	mu   sync.RWMutex
	data map[int64]*domain.Killmail
	// byCharacter indexes killmail ids by every character on them.
	byCharacter map[int64][]int64
}

// NewKillmailStore creates a new in-memory killmail store.
func NewKillmailStore() *KillmailStore {
	return &KillmailStore{
		data:        make(map[int64]*domain.Killmail),
		byCharacter: make(map[int64][]int64),
	}
}

// InsertBulk adds multiple killmails atomically. Fails entire batch on any duplicate.
func (s *KillmailStore) InsertBulk(_ context.Context, kms []*domain.Killmail) error {
	if len(kms) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[int64]struct{}, len(kms))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, km := range kms {
		if km == nil || km.KillmailID <= 0 || (km.TotalValue != nil && km.TotalValue.Sign() < 0) {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[km.KillmailID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[km.KillmailID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[km.KillmailID] = struct{}{}
	}

	// Second pass: insert all
	for _, km := range kms {
		s.data[km.KillmailID] = copyKillmail(km)
		seen := make(map[int64]struct{})
		for _, id := range km.CharacterIDs() {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			s.byCharacter[id] = append(s.byCharacter[id], km.KillmailID)
		}
	}

	return nil
}

// GetByID retrieves a killmail by its ID.
func (s *KillmailStore) GetByID(_ context.Context, killmailID int64) (*domain.Killmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	km, ok := s.data[killmailID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyKillmail(km), nil
}

// GetByCharactersTimeRange retrieves killmails within [start, end) involving any of characterIDs.
func (s *KillmailStore) GetByCharactersTimeRange(_ context.Context, characterIDs []int64, start, end time.Time) ([]*domain.Killmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make(map[int64]struct{})
	var result []*domain.Killmail
	for _, charID := range characterIDs {
		for _, kmID := range s.byCharacter[charID] {
			if _, ok := matched[kmID]; ok {
				continue
			}
			km := s.data[kmID]
			if km.Time.Before(start) || !km.Time.Before(end) {
				continue
			}
			matched[kmID] = struct{}{}
			result = append(result, copyKillmail(km))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Time.Equal(result[j].Time) {
			return result[i].Time.Before(result[j].Time)
		}
		return result[i].KillmailID < result[j].KillmailID
	})

	return result, nil
}

var _ storage.KillmailStore = (*KillmailStore)(nil)
