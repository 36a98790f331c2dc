package transform_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/transform"
	"github.com/upp-dev/upp/pkg/tree"
)

func TestPrepareSource_ExtractsDefineAndMasksInvocation(t *testing.T) {
	src := "@define double(x) { return x * 2; }\nint y = @double(21);\n"

	prepared := transform.PrepareSource(src, false)

	require.Len(t, prepared.Defines, 1)
	d := prepared.Defines[0]
	assert.Equal(t, "double", d.Name)
	assert.Equal(t, []string{"x"}, d.Params)
	assert.False(t, d.Variadic)
	assert.Contains(t, d.Body, "return x * 2")

	require.Len(t, prepared.Invocations, 1)
	inv := prepared.Invocations[0]
	assert.Equal(t, "double", inv.Name)
	assert.Equal(t, []string{"21"}, inv.Args)

	assert.NotContains(t, prepared.CleanSource, "@define")
	assert.Contains(t, prepared.CleanSource, "/*@double(21)*/")

	_, err := tree.New(context.Background(), prepared.CleanSource)
	require.NoError(t, err)
}

func TestPrepareSource_VariadicParams(t *testing.T) {
	src := "@define log(fmt, ...rest) { return fmt; }\n"
	prepared := transform.PrepareSource(src, false)

	require.Len(t, prepared.Defines, 1)
	d := prepared.Defines[0]
	assert.True(t, d.Variadic)
	assert.Equal(t, []string{"fmt", "rest"}, d.Params)
}

func TestPrepareSource_PreservesCommentsWhenRequested(t *testing.T) {
	src := "@define noop(x) { return x; }\n"
	prepared := transform.PrepareSource(src, true)
	assert.Contains(t, prepared.CleanSource, "/*@define noop(x) { return x; }*/")
}

func newRegistry(t *testing.T) (*diagnostics.Manager, func(source string) (string, error)) {
	t.Helper()
	diags := diagnostics.NewManager(nil)
	cfg := config.Defaults()
	reg := transform.NewRootRegistry(cfg, nil, diags, nil)
	run := func(source string) (string, error) {
		out, _, err := transform.Transform(context.Background(), reg, source, "test.cup", nil)
		return out, err
	}
	return diags, run
}

func TestTransform_PlainSourcePassesThrough(t *testing.T) {
	_, run := newRegistry(t)
	src := "int add(int a, int b) { return a + b; }\n"
	out, err := run(src)
	require.NoError(t, err)
	assert.Contains(t, out, "int add(int a, int b)")
	assert.NotContains(t, out, "@")
}

func TestTransform_InlineScriptMacroSubstitution(t *testing.T) {
	_, run := newRegistry(t)
	src := "@define two() { return \"2\"; }\nint x = @two();\n"
	out, err := run(src)
	require.NoError(t, err)
	assert.Contains(t, out, "int x = 2;")
	assert.NotContains(t, out, "@two")
	assert.NotContains(t, out, "@define")
}

func TestTransform_MacroWithArityMismatchReportsDiagnostic(t *testing.T) {
	diags, run := newRegistry(t)
	src := "@define pair(a, b) { return a; }\nint x = @pair(1);\n"
	_, err := run(src)
	require.NoError(t, err)

	found := false
	for _, e := range diags.All() {
		if e.Code == domain.CodeMacroRuntime {
			found = true
		}
	}
	assert.True(t, found)
}

func TestCodeBuilder_BuildsStatementFromParts(t *testing.T) {
	ctx := context.Background()
	b := transform.NewCodeBuilder(ctx)
	b.AddText("int z = ").AddText("7").AddText(";")
	n, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Contains(t, n.Text(), "int z = 7")
}

func TestCodeBuilder_PreservesNodeIdentityViaSentinel(t *testing.T) {
	ctx := context.Background()
	src, err := tree.New(ctx, "int a = 1;\n")
	require.NoError(t, err)

	idents := src.Root().Find(func(n *tree.SourceNode) bool {
		return n.Type() == "identifier" && n.Text() == "a"
	})
	require.NotEmpty(t, idents)
	original := idents[0]

	b := transform.NewCodeBuilder(ctx)
	b.AddText("int b = ").AddValue(sandbox.NodeValue{Node: original}).AddText(";")
	n, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Contains(t, n.Text(), "int b = a;")
}
