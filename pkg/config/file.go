package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v2"
)

func secondsToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// fileConfig mirrors RegistryConfig's shape for decoding purposes;
// TOML/YAML field names are lower_snake_case by library convention.
type fileConfig struct {
	IncludePaths            []string `toml:"include_paths" yaml:"include_paths"`
	StdPaths                []string `toml:"std_paths" yaml:"std_paths"`
	MaxFixedPointIterations int      `toml:"max_fixed_point_iterations" yaml:"max_fixed_point_iterations"`
	MaxIncludeDepth         int      `toml:"max_include_depth" yaml:"max_include_depth"`
	Suppress                []string `toml:"suppress" yaml:"suppress"`
	Workers                 int      `toml:"workers" yaml:"workers"`
	TimeoutSeconds          int      `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Write                   bool     `toml:"write" yaml:"write"`
	CacheDir                string   `toml:"cache_dir" yaml:"cache_dir"`
}

// LoadFile reads a .toml or .yaml/.yml config file (chosen by
// extension; .toml is the primary, documented format) and returns it
// as an Option layer, ready to feed into Apply alongside Defaults(),
// FromEnv(), and CLI-flag options, in that precedence order.
func LoadFile(path string) ([]Option, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if _, err := toml.Decode(string(data), &fc); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	return fileConfigOptions(fc), nil
}

func fileConfigOptions(fc fileConfig) []Option {
	var opts []Option
	if len(fc.IncludePaths) > 0 {
		opts = append(opts, WithIncludePaths(fc.IncludePaths...))
	}
	if len(fc.StdPaths) > 0 {
		opts = append(opts, WithStdPaths(fc.StdPaths...))
	}
	if fc.MaxFixedPointIterations > 0 {
		opts = append(opts, WithMaxFixedPointIterations(fc.MaxFixedPointIterations))
	}
	if fc.MaxIncludeDepth > 0 {
		opts = append(opts, WithMaxIncludeDepth(fc.MaxIncludeDepth))
	}
	if len(fc.Suppress) > 0 {
		opts = append(opts, WithSuppress(fc.Suppress...))
	}
	if fc.Workers > 0 {
		opts = append(opts, WithWorkers(fc.Workers))
	}
	if fc.TimeoutSeconds > 0 {
		opts = append(opts, WithTimeout(secondsToDuration(fc.TimeoutSeconds)))
	}
	if fc.CacheDir != "" {
		opts = append(opts, WithCacheDir(fc.CacheDir))
	}
	if fc.Write {
		opts = append(opts, WithWrite(true))
	}
	return opts
}
