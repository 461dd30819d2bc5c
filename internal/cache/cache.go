// Package cache holds computed results for a short time. It is advisory:
// callers must behave correctly on a miss.
package cache

import (
	"sync"
	"time"
)

// Cache stores values by key with a per-entry time to live.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Memory is an in-memory Cache. When MaxEntries is reached, expired entries
// are swept first and then the entry closest to expiry is evicted.
type Memory struct {
	mu         sync.Mutex
	items      map[string]entry
	maxEntries int
	now        func() time.Time
}

// Option configures Memory.
type Option func(*Memory)

// WithMaxEntries caps the number of cached entries. Zero means unlimited.
func WithMaxEntries(n int) Option {
	return func(m *Memory) {
		m.maxEntries = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory cache.
func NewMemory(opts ...Option) *Memory {
	m := &Memory{
		items: make(map[string]entry),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return nil, false
	}
	return e.value, true
}

// Set stores value for ttl. A non-positive ttl removes the key.
func (m *Memory) Set(key string, value any, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ttl <= 0 {
		delete(m.items, key)
		return
	}

	now := m.now()
	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.evict(now)
	}
	m.items[key] = entry{value: value, expiresAt: now.Add(ttl)}
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// evict removes expired entries, or the soonest-expiring one if none expired.
// Caller holds mu.
func (m *Memory) evict(now time.Time) {
	var (
		oldestKey string
		oldest    time.Time
		swept     bool
	)
	for k, e := range m.items {
		if !now.Before(e.expiresAt) {
			delete(m.items, k)
			swept = true
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = k, e.expiresAt
		}
	}
	if !swept && oldestKey != "" {
		delete(m.items, oldestKey)
	}
}

var _ Cache = (*Memory)(nil)
