// Package fetch loads the engine inputs (facts and groups) from storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
	"killboard-stats/internal/strategy"
)

var (
	// ErrRateLimited is returned when a fetch is refused by the local rate limiter.
	ErrRateLimited = errors.New("fetch rate limited")
	// ErrUnknownGroup is returned when a requested group does not exist.
	ErrUnknownGroup = errors.New("unknown group")
)

// FactFetcher loads facts involving characterIDs within [start, end).
type FactFetcher interface {
	FetchFacts(ctx context.Context, characterIDs []int64, start, end time.Time) ([]domain.Fact, error)
}

// GroupFetcher loads groups by id. Nil ids loads every group.
type GroupFetcher interface {
	FetchGroups(ctx context.Context, ids []string) ([]domain.Group, error)
}

// StoreFactFetcher reads killmails from a store and converts them with a strategy.
type StoreFactFetcher struct {
	store    storage.KillmailStore
	strategy strategy.Strategy
}

// NewStoreFactFetcher creates a fact fetcher backed by store.
func NewStoreFactFetcher(store storage.KillmailStore, s strategy.Strategy) *StoreFactFetcher {
	return &StoreFactFetcher{store: store, strategy: s}
}

// FetchFacts loads killmails and extracts facts in store order.
func (f *StoreFactFetcher) FetchFacts(ctx context.Context, characterIDs []int64, start, end time.Time) ([]domain.Fact, error) {
	kms, err := f.store.GetByCharactersTimeRange(ctx, characterIDs, start, end)
	if err != nil {
		return nil, fmt.Errorf("load killmails: %w", err)
	}
	return strategy.ExtractAll(f.strategy, kms), nil
}

// StoreGroupFetcher reads groups from a store.
type StoreGroupFetcher struct {
	store storage.GroupStore
}

// NewStoreGroupFetcher creates a group fetcher backed by store.
func NewStoreGroupFetcher(store storage.GroupStore) *StoreGroupFetcher {
	return &StoreGroupFetcher{store: store}
}

// FetchGroups returns groups in the order of ids (or by id when ids is nil).
// Returns ErrUnknownGroup if any requested id is missing.
func (f *StoreGroupFetcher) FetchGroups(ctx context.Context, ids []string) ([]domain.Group, error) {
	stored, err := f.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}

	if ids == nil {
		groups := make([]domain.Group, len(stored))
		for i, g := range stored {
			groups[i] = *g
		}
		return groups, nil
	}

	byID := make(map[string]*domain.Group, len(stored))
	for _, g := range stored {
		byID[g.ID] = g
	}

	groups := make([]domain.Group, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		g, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGroup, id)
		}
		groups = append(groups, *g)
	}
	return groups, nil
}

// RateLimitedFactFetcher refuses fetches above a fixed rate with ErrRateLimited.
type RateLimitedFactFetcher struct {
	next    FactFetcher
	limiter *rate.Limiter
}

// NewRateLimitedFactFetcher wraps next with a limiter allowing perSecond fetches and burst.
func NewRateLimitedFactFetcher(next FactFetcher, perSecond float64, burst int) *RateLimitedFactFetcher {
	return &RateLimitedFactFetcher{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// NewLimitedFactFetcher wraps next with a shared limiter.
func NewLimitedFactFetcher(next FactFetcher, limiter *rate.Limiter) *RateLimitedFactFetcher {
	return &RateLimitedFactFetcher{next: next, limiter: limiter}
}

// FetchFacts delegates when a token is available.
func (f *RateLimitedFactFetcher) FetchFacts(ctx context.Context, characterIDs []int64, start, end time.Time) ([]domain.Fact, error) {
	if !f.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return f.next.FetchFacts(ctx, characterIDs, start, end)
}

// MemberIDs returns the union of member ids across groups, in first-seen order.
func MemberIDs(groups []domain.Group) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for i := range groups {
		for _, id := range groups[i].MemberCharacterIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

var (
	_ FactFetcher  = (*StoreFactFetcher)(nil)
	_ FactFetcher  = (*RateLimitedFactFetcher)(nil)
	_ GroupFetcher = (*StoreGroupFetcher)(nil)
)
