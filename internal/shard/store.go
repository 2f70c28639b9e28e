package shard

import (
	"sync"
	"time"
)

// Entry is a stored value with an optional expiry.
type Entry struct {
	Value     []byte
	ExpiresAt *time.Time // nil if no expiration
}

// IsExpired checks if the entry has expired.
func (e *Entry) IsExpired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// Store defines the interface for a node-local key-value store.
type Store interface {
	// Get retrieves a value by key. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Put stores a value. A ttl <= 0 means no expiration.
	Put(key string, value []byte, ttl time.Duration)
	// Delete removes a key and reports whether it was present.
	Delete(key string) bool
	// Keys returns the live keys.
	Keys() []string
	// Len returns the number of live keys.
	Len() int
}

// InMemoryStore is an in-memory implementation of Store.
// It's thread-safe and supports TTL expiration.
type InMemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*Entry
	nodeID string
}

// NewInMemoryStore creates a new in-memory store for a ring node.
func NewInMemoryStore(nodeID string) *InMemoryStore {
	return &InMemoryStore{
		data:   make(map[string]*Entry),
		nodeID: nodeID,
	}
}

// NodeID returns the ring node the store belongs to.
func (s *InMemoryStore) NodeID() string {
	return s.nodeID
}

// Get retrieves a value by key.
func (s *InMemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists || e.IsExpired() {
		return nil, false
	}
	return append([]byte(nil), e.Value...), true
}

// Put stores a copy of value.
func (s *InMemoryStore) Put(key string, value []byte, ttl time.Duration) {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}
	s.putEntry(key, &Entry{
		Value:     append([]byte(nil), value...),
		ExpiresAt: expiresAt,
	})
}

func (s *InMemoryStore) putEntry(key string, e *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = e
}

// take removes key and returns its entry, skipping expired ones.
func (s *InMemoryStore) take(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[key]
	if !exists {
		return nil, false
	}
	delete(s.data, key)
	if e.IsExpired() {
		return nil, false
	}
	return e, true
}

// Delete removes a key.
func (s *InMemoryStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data[key]
	if !exists {
		return false
	}
	delete(s.data, key)
	return !e.IsExpired()
}

// Keys returns the live keys in no particular order.
func (s *InMemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if !e.IsExpired() {
			keys = append(keys, k)
		}
	}
	return keys
}

// Len returns the number of live keys.
func (s *InMemoryStore) Len() int {
	return len(s.Keys())
}

// Purge drops expired entries and returns how many were dropped.
func (s *InMemoryStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.data {
		if e.IsExpired() {
			delete(s.data, k)
			n++
		}
	}
	return n
}
