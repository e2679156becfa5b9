package marketdata

import (
	"context"
	"sync"
	"time"

	"market-dashboard/models"
)

// Entry is a cached quote together with the time it was captured
type Entry struct {
	Quote      models.Quote `json:"quote"`
	CapturedAt time.Time    `json:"captured_at"`
}

// Fresh reports whether the entry is younger than ttl at now
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.CapturedAt) < ttl
}

// Store holds cache entries keyed by dashboard symbol.
// Freshness is decided by the caller from CapturedAt.
type Store interface {
	Get(ctx context.Context, symbol string) (Entry, bool, error)
	Set(ctx context.Context, symbol string, entry Entry) error
	Clear(ctx context.Context) error
}

// MemoryStore is the default in-process Store
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Entry)}
}

// Get returns the entry for symbol, if any
func (s *MemoryStore) Get(_ context.Context, symbol string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[symbol]
	return e, ok, nil
}

// Set stores the entry for symbol, replacing any previous one
func (s *MemoryStore) Set(_ context.Context, symbol string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[symbol] = entry
	return nil
}

// Clear removes every entry
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]Entry)
	return nil
}

// Len returns the number of stored entries
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
