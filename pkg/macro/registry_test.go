package macro_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/domain"
	"github.com/upp-dev/upp/pkg/macro"
	"github.com/upp-dev/upp/pkg/sandbox"
	"github.com/upp-dev/upp/pkg/semantic"
	"github.com/upp-dev/upp/pkg/tree"
)

func newTestRegistry(t *testing.T) *macro.Registry {
	t.Helper()
	diags := diagnostics.NewManager(nil)
	return macro.NewRegistry(config.Defaults(), nil, diags, nil, nil)
}

func TestRegisterMacro_LookupRoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	reg.RegisterMacro(domain.Macro{
		Name: "double", Params: []string{"x"}, Body: "x * 2",
		Language: domain.MacroLanguageScript, Origin: "a.cup",
	})

	m, ok := reg.LookupMacro("double")
	require.True(t, ok)
	assert.Equal(t, "double", m.Name)

	prog := reg.CompiledBody("double")
	require.NotNil(t, prog, "single-expression body should compile under the wrap-as-return policy")
}

func TestRegisterMacro_SyntaxErrorReportsDiagnosticWithoutAborting(t *testing.T) {
	diags := diagnostics.NewManager(nil)
	reg := macro.NewRegistry(config.Defaults(), nil, diags, nil, nil)

	reg.RegisterMacro(domain.Macro{
		Name: "broken", Body: "return (;", Language: domain.MacroLanguageScript, Origin: "a.cup",
	})

	_, ok := reg.LookupMacro("broken")
	assert.True(t, ok, "registration happens even when the body fails to compile")
	assert.Nil(t, reg.CompiledBody("broken"))

	found := false
	for _, e := range diags.All() {
		if e.Code == domain.CodeBodySyntax {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRegisterMacro_ForwardsToParent(t *testing.T) {
	parent := newTestRegistry(t)
	child := macro.NewRegistry(config.Defaults(), nil, diagnostics.NewManager(nil), nil, parent)

	child.RegisterMacro(domain.Macro{Name: "shared", Body: "1", Language: domain.MacroLanguageScript})

	_, ok := parent.LookupMacro("shared")
	assert.True(t, ok, "a dependency's macro definitions should be visible to the includer")
}

func TestNewRegistry_RegistersBuiltinNatives(t *testing.T) {
	reg := newTestRegistry(t)

	for _, name := range []string{"include", "implements", "__deferred_task"} {
		native, ok := reg.LookupNative(name)
		require.True(t, ok, "expected built-in native %q", name)
		assert.Equal(t, name, native.Name())
	}
}

func TestImplementsNative_IsNoOp(t *testing.T) {
	reg := newTestRegistry(t)
	native, ok := reg.LookupNative("implements")
	require.True(t, ok)

	v, err := native.Invoke([]sandbox.Value{sandbox.StringValue("posix")})
	require.NoError(t, err)
	assert.Equal(t, sandbox.UndefinedValue{}, v)
}

func TestDeferredTaskNative_ReturnsFreshHandlePerCall(t *testing.T) {
	reg := newTestRegistry(t)
	native, ok := reg.LookupNative("__deferred_task")
	require.True(t, ok)

	v1, err := native.Invoke([]sandbox.Value{sandbox.StringValue("cleanup")})
	require.NoError(t, err)
	v2, err := native.Invoke([]sandbox.Value{sandbox.StringValue("cleanup")})
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2, "each call mints a fresh handle")
}

func TestPendingRules_RegisterAndList(t *testing.T) {
	reg := newTestRegistry(t)

	id := reg.RegisterPending(
		func(n *tree.SourceNode) bool { return n.Type() == "identifier" },
		func(n *tree.SourceNode, _ *semantic.Helpers) (domain.Result, error) { return domain.Continue, nil },
	)
	pending := reg.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)
}

func TestTransformRules_RegisterAndList(t *testing.T) {
	reg := newTestRegistry(t)

	id := reg.RegisterTransformRule(
		func(n *tree.SourceNode, _ *semantic.Helpers) bool { return true },
		func(n *tree.SourceNode, _ *semantic.Helpers) (domain.Result, error) { return domain.Continue, nil },
	)
	rules := reg.TransformRules()
	require.Len(t, rules, 1)
	assert.Equal(t, id, rules[0].ID)
}

func TestMarkDone_RetiresPendingRule(t *testing.T) {
	reg := newTestRegistry(t)
	id := reg.RegisterPending(
		func(n *tree.SourceNode) bool { return true },
		func(n *tree.SourceNode, h *semantic.Helpers) (domain.Result, error) { return domain.Continue, nil },
	)

	require.Len(t, reg.Pending(), 1)
	reg.MarkDone(id)
	assert.Empty(t, reg.Pending())
}

func TestLoadDependency_DiscoveryThenFullDoesNotDowngrade(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "util.hup")
	require.NoError(t, os.WriteFile(path, []byte("int helper(void);\n"), 0o644))

	reg := newTestRegistry(t)
	reg.WithRunState(context.Background(), filepath.Join(dir, "main.cup"), nil)

	dep, err := reg.LoadDependency("util.hup", false, false, nil)
	require.NoError(t, err)
	assert.False(t, dep.State.Full)

	seedTree, err := tree.New(context.Background(), "")
	require.NoError(t, err)
	seedHelpers := semantic.New(seedTree, reg)

	reg.TransformFn = func(_ context.Context, source, _ string, _ *semantic.Helpers) (string, *semantic.Helpers, error) {
		return source, seedHelpers, nil
	}

	full, err := reg.LoadDependency("util.hup", false, true, nil)
	require.NoError(t, err)
	assert.True(t, full.State.Full)

	again, err := reg.LoadDependency("util.hup", false, false, nil)
	require.NoError(t, err)
	assert.True(t, again.State.Full, "a discovery request must not downgrade an already-full entry")
}

func TestLoadDependency_UnresolvedReportsDependencyMiss(t *testing.T) {
	diags := diagnostics.NewManager(nil)
	reg := macro.NewRegistry(config.Defaults(), nil, diags, nil, nil)
	reg.WithRunState(context.Background(), "main.cup", nil)

	_, err := reg.LoadDependency("does-not-exist.hup", false, false, nil)
	require.Error(t, err)

	found := false
	for _, e := range diags.All() {
		if e.Code == domain.CodeDependencyMiss {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLoadDependency_StdPathSearch(t *testing.T) {
	stdDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(stdDir, "sys.hup"), []byte("void sys(void);\n"), 0o644))

	cfg := config.Apply(config.WithStdPaths(stdDir))
	reg := macro.NewRegistry(cfg, nil, diagnostics.NewManager(nil), nil, nil)
	reg.WithRunState(context.Background(), filepath.Join(t.TempDir(), "main.cup"), nil)

	dep, err := reg.LoadDependency("sys.hup", true, false, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(stdDir, "sys.hup"), dep.Path)
}
