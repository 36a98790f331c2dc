package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/upp-dev/upp/pkg/domain"
)

// FileStore persists cache entries as one JSON file per key under Dir,
// named by the (already SHA-256) key. Writes go to a uuid-named temp
// file in the same directory first, then rename into place, so a
// concurrent Get never observes a partially written entry.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) entryPath(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

func (s *FileStore) Get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	data, err := os.ReadFile(s.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return domain.CacheEntry{}, false, nil
		}
		return domain.CacheEntry{}, false, fmt.Errorf("cache: read %s: %w", key, err)
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return domain.CacheEntry{}, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return entry, true, nil
}

func (s *FileStore) Put(ctx context.Context, key string, entry domain.CacheEntry) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("cache: mkdir %s: %w", s.Dir, err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}

	tmpName := filepath.Join(s.Dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmpName, data, 0o644); err != nil {
		return fmt.Errorf("cache: write temp file for %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.entryPath(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cache: rename into place for %s: %w", key, err)
	}
	return nil
}
