package tspool_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/tree/tspool"
)

func TestParse_RaceFree(t *testing.T) {
	t.Parallel()

	const goroutines = 50
	source := []byte("int x = 1;")

	var wg sync.WaitGroup
	wg.Add(goroutines)
	errCh := make(chan error, goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			tree, err := tspool.Parse(context.Background(), source)
			if err != nil {
				errCh <- err
				return
			}
			defer tree.Close()
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("Parse failed: %v", err)
	}
}

func TestGetPut_ReusesParser(t *testing.T) {
	t.Parallel()

	p1 := tspool.Get()
	require.NotNil(t, p1)
	tspool.Put(p1)

	p2 := tspool.Get()
	require.NotNil(t, p2)
	tspool.Put(p2)
}

func TestPut_NilParser(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { tspool.Put(nil) })
}

func TestParse_ValidOutput(t *testing.T) {
	t.Parallel()

	tree, err := tspool.Parse(context.Background(), []byte("int main(void) { return 0; }"))
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	require.NotNil(t, root)
	assert.Greater(t, int(root.ChildCount()), 0)
}

func TestQuery_FindsCalls(t *testing.T) {
	t.Parallel()

	source := []byte("void f(void) { g(); }")
	tree, err := tspool.Parse(context.Background(), source)
	require.NoError(t, err)
	defer tree.Close()

	results, err := tspool.Query(tree.RootNode(), source, `(call_expression function: (identifier) @call)`)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "g", tspool.GetNodeText(results[0].Captures["call"], source))
}
