package semantic

import (
	"sync"

	"github.com/upp-dev/upp/pkg/tree"
)

type cacheKey struct {
	id         tree.NodeID
	generation uint64
	kind       string
}

// memo memoizes semantic helper results keyed by (NodeID, generation,
// kind). A stale entry (one whose generation no longer matches the
// tree's current generation) is simply never looked up again — the key
// space grows but nothing needs eager invalidation, matching the
// generation-counter design in SPEC_FULL.md §9.
type memo struct {
	mu    sync.Mutex
	store map[cacheKey]any
}

func newMemo() *memo {
	return &memo{store: make(map[cacheKey]any)}
}

func (m *memo) get(t *tree.Tree, id tree.NodeID, kind string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[cacheKey{id: id, generation: t.Generation(), kind: kind}]
	return v, ok
}

func (m *memo) put(t *tree.Tree, id tree.NodeID, kind string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[cacheKey{id: id, generation: t.Generation(), kind: kind}] = v
}
