package semantic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

func identifierNamed(root *tree.SourceNode, name string) []*tree.SourceNode {
	return root.Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == name
	})
}

func TestFindDefinition_ResolvesLocalVariable(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int add(int a, int b) { return a + b; }\n")
	require.NoError(t, err)

	uses := identifierNamed(src.Root(), "a")
	require.GreaterOrEqual(t, len(uses), 2)

	use := uses[len(uses)-1]
	def, err := semantic.FindDefinition(use, "a", semantic.DefOptions{})
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.True(t, def.Start() < use.Start())
}

func TestFindDefinition_UnresolvedReturnsError(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "void f(void) { g(); }\n")
	require.NoError(t, err)

	calls := src.Root().Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == "g"
	})
	require.Len(t, calls, 1)

	_, err = semantic.FindDefinition(calls[0], "g", semantic.DefOptions{})
	assert.Error(t, err)
}

func TestFindReferences_CollectsAllUses(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int counter; void bump(void) { counter = counter + 1; }\n")
	require.NoError(t, err)

	decls := identifierNamed(src.Root(), "counter")
	require.GreaterOrEqual(t, len(decls), 1)
	def := decls[0]

	refs := semantic.FindReferences(def)
	assert.GreaterOrEqual(t, len(refs), 3)
}

func TestFindReferences_SurvivesRename(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int counter; void bump(void) { counter = counter + 1; }\n")
	require.NoError(t, err)

	def := identifierNamed(src.Root(), "counter")[0]
	renamed, err := def.SetName(ctx, "ctr")
	require.NoError(t, err)

	refs := semantic.FindReferences(renamed)
	assert.GreaterOrEqual(t, len(refs), 1)
}

func TestGetType_Pointer(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int *p;\n")
	require.NoError(t, err)

	ids := identifierNamed(src.Root(), "p")
	require.Len(t, ids, 1)

	typ, err := semantic.GetType(ids[0], semantic.TypeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "int *", typ)
}

func TestGetFunctionSignature(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int add(int a, int b) { return a + b; }\n")
	require.NoError(t, err)

	fns := src.Root().FindByType("function_definition")
	require.Len(t, fns, 1)

	sig, err := semantic.GetFunctionSignature(fns[0])
	require.NoError(t, err)
	assert.Equal(t, "add", sig.Name)
	assert.Equal(t, "int", sig.ReturnType)
	assert.Len(t, sig.Params, 2)
	assert.NotNil(t, sig.BodyNode)
}

func TestHelpers_WithReferencesRegistersPendingRule(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int counter;\n")
	require.NoError(t, err)

	def := identifierNamed(src.Root(), "counter")[0]
	h := semantic.New(src, &fakeRegistrar{})
	id := h.WithReferences(def, func(n *tree.SourceNode, helpers *semantic.Helpers) (domain.Result, error) {
		return domain.Finish(), nil
	})
	assert.Equal(t, domain.RuleID(7), id) // fakeRegistrar always returns 7
}

type fakeRegistrar struct{}

func (f *fakeRegistrar) RegisterPending(predicate func(*tree.SourceNode) bool, cb semantic.PendingCallback) domain.RuleID {
	return 7
}
