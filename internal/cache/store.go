package cache

import (
	"sync"
)

// Store holds session-scoped key → value entries together with the set of
// keys currently being fetched. Entries are only ever added; a key that has a
// value, or that the remote API settled as unresolvable, is never reported as
// missing again.
type Store[K comparable, V any] struct {
	mu       sync.RWMutex
	values   map[K]V
	settled  map[K]struct{} // fetched successfully but absent from the response
	inflight map[K]struct{}
}

// NewStore creates an empty store
func NewStore[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{
		values:   make(map[K]V),
		settled:  make(map[K]struct{}),
		inflight: make(map[K]struct{}),
	}
}

// Get returns the cached value for key
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key has a cached value
func (s *Store[K, V]) Has(key K) bool {
	_, ok := s.Get(key)
	return ok
}

// Len returns the number of cached values
func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Snapshot returns a copy of all cached values
func (s *Store[K, V]) Snapshot() map[K]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[K]V, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Missing returns, in request order and without repeats, the keys that have
// no cached value, are not settled and are not in flight.
func (s *Store[K, V]) Missing(keys []K) []K {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.missingLocked(keys)
}

// Claim is Missing followed by marking the returned keys in flight, as one
// atomic step. Two concurrent claims never return the same key.
func (s *Store[K, V]) Claim(keys []K) []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	missing := s.missingLocked(keys)
	for _, k := range missing {
		s.inflight[k] = struct{}{}
	}
	return missing
}

func (s *Store[K, V]) missingLocked(keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	missing := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		if _, ok := s.values[k]; ok {
			continue
		}
		if _, ok := s.settled[k]; ok {
			continue
		}
		if _, ok := s.inflight[k]; ok {
			continue
		}
		missing = append(missing, k)
	}
	return missing
}

// Merge adds entries and clears their in-flight flags. Keys that already have
// a value keep it. Returns the number of entries added.
func (s *Store[K, V]) Merge(entries map[K]V) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for k, v := range entries {
		delete(s.inflight, k)
		if _, ok := s.values[k]; ok {
			continue
		}
		s.values[k] = v
		added++
	}
	return added
}

// Settle records keys that a successful fetch could not resolve so they are
// not requested again. Keys with a value are left untouched.
func (s *Store[K, V]) Settle(keys []K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.inflight, k)
		if _, ok := s.values[k]; ok {
			continue
		}
		s.settled[k] = struct{}{}
	}
}

// Release clears in-flight flags without storing anything, making the keys
// eligible for a later fetch
func (s *Store[K, V]) Release(keys []K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.inflight, k)
	}
}

// InFlight reports whether key is currently being fetched
func (s *Store[K, V]) InFlight(key K) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.inflight[key]
	return ok
}

// Loading reports whether any key is in flight
func (s *Store[K, V]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inflight) > 0
}
