package tree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/tree"
)

func TestSourceNode_TextMatchesBuffer(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int x = 1;\n")
	require.NoError(t, err)

	decls := src.Root().FindByType("declaration")
	require.Len(t, decls, 1)
	assert.Equal(t, "int x = 1;", decls[0].Text())
}

func TestSourceNode_ChildrenAreDisjointAndOrdered(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int a; int b;\n")
	require.NoError(t, err)

	root := src.Root()
	children := root.Children()
	require.GreaterOrEqual(t, len(children), 2)

	prevEnd := -1
	for _, c := range children {
		assert.GreaterOrEqual(t, c.Start(), prevEnd, "children must not overlap")
		prevEnd = c.End()
	}
}

func TestSourceNode_SetNamePreservesIdentityAndSearchableText(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int counter;\n")
	require.NoError(t, err)

	ids := src.Root().Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == "counter"
	})
	require.Len(t, ids, 1)
	original := ids[0]
	originalID := original.ID()

	renamed, err := original.SetName(ctx, "ctr")
	require.NoError(t, err)
	require.NotNil(t, renamed)

	assert.Equal(t, originalID, renamed.ID(), "identity-morph must preserve NodeID")
	assert.Equal(t, "ctr", renamed.Text())
	searchable, _ := renamed.CapturedText()
	assert.Equal(t, "counter", searchable)
	assert.Equal(t, "counter", renamed.SearchableText())
	assert.Contains(t, src.Text(), "int ctr;")
}

func TestSourceNode_ReplaceWithStringNotMorphingWhenMultipleNodes(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int a;\n")
	require.NoError(t, err)

	decl := src.Root().FindByType("declaration")[0]
	result, err := decl.ReplaceWith(ctx, "int b; int c;", false)
	require.NoError(t, err)
	// Multiple top-level statements: no single replacement node.
	assert.Nil(t, result)
	assert.Contains(t, src.Text(), "int b; int c;")
}

func TestSourceNode_RemoveThenBufferShrinks(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int a; int b;\n")
	require.NoError(t, err)

	decls := src.Root().FindByType("declaration")
	require.Len(t, decls, 2)

	before := len(src.Text())
	holding, err := decls[0].Remove(ctx)
	require.NoError(t, err)
	require.NotNil(t, holding)
	assert.Less(t, len(src.Text()), before)
	assert.False(t, decls[0].Valid())
}

func TestSourceNode_DescendantForIndex(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int add(int a, int b) { return a + b; }\n")
	require.NoError(t, err)

	text := src.Text()
	idx := indexOf(text, "a + b")
	require.GreaterOrEqual(t, idx, 0)

	node := src.Root().DescendantForIndex(idx, idx+1)
	require.NotNil(t, node)
	assert.LessOrEqual(t, node.Start(), idx)
	assert.GreaterOrEqual(t, node.End(), idx+1)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
