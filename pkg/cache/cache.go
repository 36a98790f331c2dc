// Package cache implements the Dependency Cache: a keyed store of
// domain.CacheEntry records (a dependency's resolved macro table plus
// its rendered output) that the full pass writes, as an authoritative
// entry, once a dependency is transformed; the discovery pass does not
// write to it. See SPEC_FULL.md's
// authority-monotonic cache-write rule in §4.5/§6.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/upp-dev/upp/pkg/domain"
)

// Store is the Dependency Cache contract. Get reports (entry, true)
// only for a key that was ever Put; Put overwrites unconditionally —
// callers enforce the authority-monotonic rule (never let a discovery
// pass clobber an existing authoritative entry) by checking
// domain.CacheEntry.IsAuthoritative before calling Put again.
type Store interface {
	Get(ctx context.Context, key string) (domain.CacheEntry, bool, error)
	Put(ctx context.Context, key string, entry domain.CacheEntry) error
}

// Key derives a cache key from a dependency's resolved absolute path
// and the content hash of its source, so an edited dependency
// (content changed, path unchanged) misses rather than reusing a stale
// entry.
func Key(path string, source []byte) string {
	sum := sha256.Sum256(append([]byte(path+"\x00"), source...))
	return hex.EncodeToString(sum[:])
}
