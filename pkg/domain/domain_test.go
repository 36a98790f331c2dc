package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/upp-dev/upp/pkg/domain"
)

func TestKindForPath(t *testing.T) {
	cases := []struct {
		path string
		kind domain.FileKind
	}{
		{"a.cup", domain.FileKindImpl},
		{"dir/b.hup", domain.FileKindHeader},
		{"c.c", domain.FileKindPlain},
		{"d.h", domain.FileKindPlain},
		{"noext", domain.FileKindPlain},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, domain.KindForPath(tc.path), tc.path)
	}
}

func TestMaterializedPath(t *testing.T) {
	assert.Equal(t, "a.c", domain.MaterializedPath("a.cup"))
	assert.Equal(t, "dir/b.h", domain.MaterializedPath("dir/b.hup"))
	assert.Equal(t, "c.c", domain.MaterializedPath("c.c"))
}

func TestMacroMinArgs(t *testing.T) {
	m := domain.Macro{Params: []string{"a", "b", "rest"}, Variadic: true}
	assert.Equal(t, 2, m.MinArgs())

	m2 := domain.Macro{Params: []string{"a", "b"}}
	assert.Equal(t, 2, m2.MinArgs())

	m3 := domain.Macro{Variadic: true}
	assert.Equal(t, 0, m3.MinArgs())
}

func TestMacroTakesNode(t *testing.T) {
	assert.True(t, domain.Macro{Params: []string{"node", "x"}}.TakesNode())
	assert.False(t, domain.Macro{Params: []string{"x"}}.TakesNode())
	assert.False(t, domain.Macro{}.TakesNode())
}

func TestInvocationHasArgs(t *testing.T) {
	assert.False(t, domain.Invocation{Args: nil}.HasArgs())
	assert.True(t, domain.Invocation{Args: []string{}}.HasArgs())
	assert.True(t, domain.Invocation{Args: []string{"x"}}.HasArgs())
}
