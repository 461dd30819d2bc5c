package memory

import (
	"context"
	"sort"
	"sync"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// GroupStore is an in-memory implementation of storage.GroupStore.
type GroupStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Group
}

// NewGroupStore creates a new in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{
		data: make(map[string]*domain.Group),
	}
}

// Upsert creates or replaces a group. Repeated member ids are collapsed.
func (s *GroupStore) Upsert(_ context.Context, g *domain.Group) error {
	if g == nil || g.ID == "" {
		return storage.ErrInvalidInput
	}

	c := copyGroup(g)
	c.MemberCharacterIDs = dedupIDs(c.MemberCharacterIDs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[g.ID] = c
	return nil
}

// GetByIDs retrieves groups ordered by id. Nil ids returns every group.
func (s *GroupStore) GetByIDs(_ context.Context, ids []string) ([]*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Group
	if ids == nil {
		for _, g := range s.data {
			result = append(result, copyGroup(g))
		}
	} else {
		seen := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			if g, ok := s.data[id]; ok {
				result = append(result, copyGroup(g))
			}
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Delete removes a group.
func (s *GroupStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// dedupIDs removes repeated ids keeping first occurrence order.
func dedupIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ storage.GroupStore = (*GroupStore)(nil)
