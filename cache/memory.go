package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonwraymond/reproducible/value"
)

// MemoryStore keeps wrappers in a map for the lifetime of the process.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]value.Wrapper
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]value.Wrapper)}
}

// Set stores w under key, replacing any previous entry.
func (s *MemoryStore) Set(_ context.Context, key string, w value.Wrapper) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if w == nil {
		return ErrNilWrapper
	}

	s.mu.Lock()
	s.entries[key] = w
	s.mu.Unlock()
	return nil
}

// Get returns the wrapper stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) (value.Wrapper, error) {
	s.mu.RLock()
	w, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: key %q", ErrNotFound, key)
	}
	return w, nil
}

// IsCached reports whether key has an entry.
func (s *MemoryStore) IsCached(_ context.Context, key string) bool {
	s.mu.RLock()
	_, ok := s.entries[key]
	s.mu.RUnlock()
	return ok
}

// Delete removes key. Idempotent - no error on miss.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds; it lets health checks treat every store alike.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
