// Package cachestore holds per-process results keyed by cache key, with
// per-entry TTL checked lazily on read. An LRU bounds total entries so a
// long-lived engine cannot grow its cache without limit; there is no
// background eviction goroutine.
package cachestore

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize bounds the number of live cache entries unless a caller asks
// for something else.
const DefaultSize = 1024

type entry struct {
	result   any
	storedAt time.Time
	ttl      time.Duration
}

// Store is a key -> (result, storedAt, ttl) map. An entry is valid while
// ttl is zero or now-storedAt <= ttl; expired entries are evicted on the
// read that discovers them.
type Store struct {
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

// New returns a store bounded to size entries. Non-positive sizes fall back
// to DefaultSize.
func New(size int) *Store {
	return NewWithClock(size, time.Now)
}

// NewWithClock is New with an injectable clock, used by tests to simulate
// TTL expiry without sleeping.
func NewWithClock(size int, now func() time.Time) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	entries, err := lru.New[string, entry](size)
	if err != nil {
		// lru.New only fails on non-positive sizes, which we just ruled out.
		panic(err)
	}
	return &Store{entries: entries, now: now}
}

// Get returns the stored result for key if present and not expired. An
// expired entry is removed and reported as absent.
func (s *Store) Get(key string) (any, bool) {
	e, ok := s.entries.Get(key)
	if !ok {
		return nil, false
	}
	if e.ttl > 0 && s.now().Sub(e.storedAt) > e.ttl {
		s.entries.Remove(key)
		return nil, false
	}
	return e.result, true
}

// Set stores result under key, overwriting any existing entry. A zero ttl
// never expires.
func (s *Store) Set(key string, result any, ttl time.Duration) {
	s.entries.Add(key, entry{result: result, storedAt: s.now(), ttl: ttl})
}

// Clear removes a single key.
func (s *Store) Clear(key string) {
	s.entries.Remove(key)
}

// ClearAll removes every entry.
func (s *Store) ClearAll() {
	s.entries.Purge()
}

// Len returns the number of live entries, counting expired-but-unread ones.
func (s *Store) Len() int {
	return s.entries.Len()
}
