package ledger

import (
	"context"
	"sync"
	"time"
)

// MemStore is an in-memory UpdateStore for tests and single-run tooling.
type MemStore struct {
	mu      sync.RWMutex
	updates map[string]time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{updates: make(map[string]time.Time)}
}

// LastUpdate implements UpdateStore.
func (s *MemStore) LastUpdate(_ context.Context, endpoint string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates[endpoint], nil
}

// SetLastUpdate implements UpdateStore.
func (s *MemStore) SetLastUpdate(_ context.Context, endpoint string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[endpoint] = at
	return nil
}

// Endpoints implements UpdateStore.
func (s *MemStore) Endpoints(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.updates))
	for k, v := range s.updates {
		out[k] = v
	}
	return out, nil
}
