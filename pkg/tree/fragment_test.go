package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/tree"
)

func TestFragment_BareIdentifier(t *testing.T) {
	ctx := context.Background()
	frag, err := tree.Fragment(ctx, "myVar")
	require.NoError(t, err)
	require.NotNil(t, frag)
	require.NotNil(t, frag.ContentNode())
	assert.Equal(t, "myVar", frag.ContentNode().SearchableText())
}

func TestFragment_ValidTopLevelDeclaration(t *testing.T) {
	ctx := context.Background()
	frag, err := tree.Fragment(ctx, "int x = 42;")
	require.NoError(t, err)
	require.NotNil(t, frag)
	assert.Contains(t, frag.Text(), "int x = 42;")
}

func TestFragment_StatementNeedingWrap(t *testing.T) {
	ctx := context.Background()
	frag, err := tree.Fragment(ctx, "return a + b;")
	require.NoError(t, err)
	require.NotNil(t, frag)
	// The tree's text is the statement inside the synthetic function body.
	assert.Contains(t, frag.Text(), "return a + b;")
}

func TestFragment_MultiStatementWrap(t *testing.T) {
	ctx := context.Background()
	frag, err := tree.Fragment(ctx, "x = 1; y = 2;")
	require.NoError(t, err)
	require.NotNil(t, frag)
	assert.Contains(t, frag.Text(), "x = 1; y = 2;")
}
