package cache

import (
	"context"
	"sync"

	"github.com/upp-dev/upp/pkg/domain"
)

// MemStore is an in-process Store, the default when RegistryConfig's
// CacheDir is empty.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]domain.CacheEntry
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]domain.CacheEntry)}
}

func (s *MemStore) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *MemStore) Put(ctx context.Context, key string, entry domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}
