package diagnostics_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/diagnostics"
)

func TestManagerReportSuppression(t *testing.T) {
	m := diagnostics.NewManager(map[string]struct{}{"UPP003": {}})

	recorded := m.Report(diagnostics.New("UPP003", "bad body", "a.cup", 1, 1, nil))
	assert.False(t, recorded)
	assert.Empty(t, m.All())

	recorded = m.Report(diagnostics.New("UPP004", "unknown macro", "a.cup", 2, 3, nil))
	assert.True(t, recorded)
	require.Len(t, m.All(), 1)
	assert.Equal(t, "UPP004", m.All()[0].Code)
}

func TestManagerHasFatal(t *testing.T) {
	m := diagnostics.NewManager(nil)
	m.Report(diagnostics.New("UPP004", "unknown macro", "a.cup", 1, 1, nil))
	assert.False(t, m.HasFatal())

	m.Report(diagnostics.New("UPP010", "dependency not found", "a.cup", 1, 1, nil))
	assert.True(t, m.HasFatal())
}

func TestUppErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := diagnostics.New("UPP008", "macro runtime error", "a.cup", 5, 2, cause)
	assert.ErrorIs(t, err, cause)
}

func TestManagerFormat(t *testing.T) {
	m := diagnostics.NewManager(nil)
	err := diagnostics.New("UPP006", "undefined symbol", "a.cup", 10, 4, nil).
		WithInvocation("rename").
		WithExcerpt("int x;")

	out := m.Format(err)
	assert.Contains(t, out, "UPP006")
	assert.Contains(t, out, "a.cup:10:4")
	assert.Contains(t, out, "@rename")
	assert.Contains(t, out, "int x;")
}
