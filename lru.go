package dataflow

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// ProtectionStorage is a bounded, thread-safe cache with least-recently-used
// eviction, used to keep memoized results alive up to a fixed capacity. Any
// read that returns a value and any write, including an overwrite, counts
// as a use of the key. All operations are total.
type ProtectionStorage[K comparable, V any] struct {
	mu  sync.Mutex
	lru *simplelru.LRU[K, V]
}

// NewProtectionStorage creates a storage holding at most capacity entries.
// Returns an error if capacity < 1.
func NewProtectionStorage[K comparable, V any](capacity int) (*ProtectionStorage[K, V], error) {
	l, err := simplelru.NewLRU[K, V](capacity, nil)
	if err != nil {
		return nil, err
	}
	return &ProtectionStorage[K, V]{lru: l}, nil
}

// Get returns the value stored under k, marking k as most recently used.
func (s *ProtectionStorage[K, V]) Get(k K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Get(k)
}

// Put inserts or overwrites the entry for k and marks it as most recently
// used, evicting the least-recently-used entry first when the insert would
// exceed capacity.
func (s *ProtectionStorage[K, V]) Put(k K, v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(k, v)
}

// Touch updates the value for k and bumps its recency even when the key is
// already present.
func (s *ProtectionStorage[K, V]) Touch(k K, v V) {
	s.Put(k, v)
}

// Size returns the number of live entries.
func (s *ProtectionStorage[K, V]) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

// Contains reports whether k is present without bumping its recency.
func (s *ProtectionStorage[K, V]) Contains(k K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Contains(k)
}

// Keys returns the live keys from least to most recently used.
func (s *ProtectionStorage[K, V]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Keys()
}
