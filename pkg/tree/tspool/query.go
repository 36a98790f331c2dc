package tspool

import (
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// QueryResult is one match of a compiled tree-sitter query, captures
// keyed by the query's capture names without the "@" (e.g. "call",
// "include").
type QueryResult struct {
	Node     *sitter.Node
	Captures map[string]*sitter.Node
}

type cachedQuery struct {
	once  sync.Once
	query *sitter.Query
	err   error
}

var queryCache sync.Map // queryStr -> *cachedQuery

func getCachedQuery(queryStr string) (*sitter.Query, error) {
	if val, ok := queryCache.Load(queryStr); ok {
		cached := val.(*cachedQuery)
		cached.once.Do(func() {})
		return cached.query, cached.err
	}

	cached := &cachedQuery{}
	actual, loaded := queryCache.LoadOrStore(queryStr, cached)
	if loaded {
		cached = actual.(*cachedQuery)
	}

	cached.once.Do(func() {
		cached.query, cached.err = sitter.NewQuery([]byte(queryStr), Language())
	})

	return cached.query, cached.err
}

// Query executes a tree-sitter query against root, compiling (and
// caching) the query text once across all callers.
func Query(root *sitter.Node, source []byte, queryStr string) ([]QueryResult, error) {
	query, err := getCachedQuery(queryStr)
	if err != nil {
		return nil, fmt.Errorf("tspool: invalid query: %w", err)
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(query, root)

	var results []QueryResult
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}

		result := QueryResult{Captures: make(map[string]*sitter.Node)}
		for _, capture := range match.Captures {
			name := query.CaptureNameForId(capture.Index)
			result.Captures[name] = capture.Node
			if result.Node == nil {
				result.Node = capture.Node
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// ClearQueryCache drops all cached compiled queries. Test-only.
func ClearQueryCache() {
	var toClose []*sitter.Query
	queryCache.Range(func(key, value any) bool {
		queryCache.Delete(key)
		if cached, ok := value.(*cachedQuery); ok {
			cached.once.Do(func() {})
			if cached.query != nil && cached.err == nil {
				toClose = append(toClose, cached.query)
			}
		}
		return true
	})
	for _, q := range toClose {
		q.Close()
	}
}
