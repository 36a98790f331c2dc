package materialize_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/materialize"
)

func TestTargetPath_MapsCupAndHupSuffixes(t *testing.T) {
	path, ok := materialize.TargetPath("foo.cup")
	require.True(t, ok)
	assert.Equal(t, "foo.c", path)

	path, ok = materialize.TargetPath("bar.hup")
	require.True(t, ok)
	assert.Equal(t, "bar.h", path)

	_, ok = materialize.TargetPath("baz.txt")
	assert.False(t, ok)
}

func TestFileWriter_WritesThroughTempRename(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.c")

	w := materialize.NewFileWriter(nil)
	require.NoError(t, w.Write(target, "int main(void) { return 0; }\n", true))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "int main")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no leftover temp file after a successful write")
}

func TestFileWriter_SkipsNonAuthoritativeByDefault(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "out.h")

	w := materialize.NewFileWriter(nil)
	require.NoError(t, w.Write(target, "void f(void);\n", false))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestRecorder_CapturesWritesInOrder(t *testing.T) {
	rec := &materialize.Recorder{}
	require.NoError(t, rec.Write("a.c", "1", true))
	require.NoError(t, rec.Write("b.h", "2", false))

	require.Len(t, rec.Written, 2)
	assert.Equal(t, "a.c", rec.Written[0].Path)
	assert.Equal(t, "b.h", rec.Written[1].Path)

	data, err := rec.Snapshot()
	require.NoError(t, err)
	assert.Contains(t, string(data), "a.c")
}
