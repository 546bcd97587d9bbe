// Package cache holds spot prices for a fixed freshness window.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTTL is how long a fetched price stays fresh.
const DefaultTTL = 60 * time.Second

// Cache stores prices by key. Expired entries read as misses.
type Cache interface {
	Get(ctx context.Context, key string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, key string, price decimal.Decimal) error
}

type entry struct {
	price     decimal.Decimal
	expiresAt time.Time
}

// Memory is an in-process Cache.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

// NewMemory creates an in-memory cache with the given TTL.
func NewMemory(ttl time.Duration) *Memory {
	return NewMemoryWithClock(ttl, time.Now)
}

// NewMemoryWithClock creates an in-memory cache reading time from now.
func NewMemoryWithClock(ttl time.Duration, now func() time.Time) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) (decimal.Decimal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return decimal.Zero, false, nil
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return decimal.Zero, false, nil
	}
	return e.price, true, nil
}

func (m *Memory) Set(_ context.Context, key string, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{price: price, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
