package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upp-dev/upp/pkg/config"
)

func TestApply_DefaultsThenOptionsOverride(t *testing.T) {
	cfg := config.Apply(config.WithWorkers(4), config.WithMaxIncludeDepth(8))
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 8, cfg.MaxIncludeDepth)
	assert.Equal(t, config.DefaultMaxFixedPointIterations, cfg.MaxFixedPointIterations)
}

func TestWithTimeout_IgnoresNonPositive(t *testing.T) {
	cfg := config.Apply(config.WithTimeout(-1))
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
}

func TestLoadFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upp.toml")
	content := "workers = 3\ninclude_paths = [\"vendor/include\"]\ntimeout_seconds = 10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := config.LoadFile(path)
	require.NoError(t, err)
	cfg := config.Apply(opts...)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"vendor/include"}, cfg.IncludePaths)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestLoadFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upp.yaml")
	content := "workers: 2\nwrite: true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := config.LoadFile(path)
	require.NoError(t, err)
	cfg := config.Apply(opts...)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Write)
}
