// Package config assembles a RegistryConfig from layered sources:
// built-in defaults, an optional TOML/YAML config file, environment
// variables, then CLI flags — each layer overriding the previous one,
// in the functional-options idiom (config.Option / config.Apply)
// mirroring the parser.ScanOption / WithXxx style this module's
// teacher uses for its own Scanner configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RegistryConfig configures a macro Registry/Transformer run: include
// search paths, the std-path for bare <angle> includes, iteration
// limits, and diagnostic behavior.
type RegistryConfig struct {
	// IncludePaths is searched, in order, for a relative #include/
	// @include("...") target that doesn't resolve next to the
	// including file.
	IncludePaths []string

	// StdPaths is searched before IncludePaths for <angle>-style
	// includes, and after IncludePaths for quoted ones.
	StdPaths []string

	// MaxFixedPointIterations caps the pending-rule sweep (UPP009 when
	// exceeded). Zero or negative uses DefaultMaxFixedPointIterations.
	MaxFixedPointIterations int

	// MaxIncludeDepth caps transitive #include/@include nesting (UPP011
	// when exceeded). Zero or negative uses DefaultMaxIncludeDepth.
	MaxIncludeDepth int

	// Suppress lists diagnostic codes (e.g. "UPP004") to collect but
	// never surface as a build failure.
	Suppress []string

	// Workers bounds concurrent per-file transforms at the CLI driver
	// level. Zero or negative uses 4.
	Workers int

	// Timeout bounds one file's end-to-end transform. Zero or negative
	// uses DefaultTimeout.
	Timeout time.Duration

	// Write, when true, materializes transformed output back to disk
	// instead of only reporting it.
	Write bool

	// CacheDir is where the Dependency Cache's FileStore persists
	// entries. Empty disables on-disk caching (memory-only).
	CacheDir string

	// PreserveDefineComments, when true, masks a consumed @define block
	// as a /* ... */ passthrough comment instead of blank whitespace of
	// equal line structure.
	PreserveDefineComments bool

	// OnMaterialize, when set, is invoked once per file the engine
	// decides should be written back to disk: a fresh top-level
	// .cup/.hup target, or a full-pass dependency whose suffix marks it
	// as one (see pkg/materialize). authoritative mirrors the emitting
	// CacheEntry's IsAuthoritative flag. A nil callback means nothing
	// materializes regardless of Write.
	OnMaterialize func(path, text string, authoritative bool) error
}

const (
	DefaultMaxFixedPointIterations = 64
	DefaultMaxIncludeDepth         = 32
	DefaultTimeout                 = 30 * time.Second
)

// Defaults returns the engine's built-in baseline configuration.
func Defaults() RegistryConfig {
	return RegistryConfig{
		MaxFixedPointIterations: DefaultMaxFixedPointIterations,
		MaxIncludeDepth:         DefaultMaxIncludeDepth,
		Timeout:                 DefaultTimeout,
	}
}

// Option is a functional option for configuring a RegistryConfig,
// applied by Apply in the order given.
type Option func(*RegistryConfig)

// Apply folds opts onto a copy of Defaults() and returns the result.
func Apply(opts ...Option) RegistryConfig {
	cfg := Defaults()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithIncludePaths appends additional include search directories.
func WithIncludePaths(paths ...string) Option {
	return func(c *RegistryConfig) {
		c.IncludePaths = append(c.IncludePaths, paths...)
	}
}

// WithStdPaths appends additional <angle>-include search directories.
func WithStdPaths(paths ...string) Option {
	return func(c *RegistryConfig) {
		c.StdPaths = append(c.StdPaths, paths...)
	}
}

// WithMaxFixedPointIterations sets the pending-rule sweep cap.
// Non-positive values are ignored.
func WithMaxFixedPointIterations(n int) Option {
	return func(c *RegistryConfig) {
		if n > 0 {
			c.MaxFixedPointIterations = n
		}
	}
}

// WithMaxIncludeDepth sets the include-nesting cap. Non-positive
// values are ignored.
func WithMaxIncludeDepth(n int) Option {
	return func(c *RegistryConfig) {
		if n > 0 {
			c.MaxIncludeDepth = n
		}
	}
}

// WithSuppress appends diagnostic codes to suppress.
func WithSuppress(codes ...string) Option {
	return func(c *RegistryConfig) {
		c.Suppress = append(c.Suppress, codes...)
	}
}

// WithWorkers sets the concurrent-file worker count. Negative values
// are ignored.
func WithWorkers(n int) Option {
	return func(c *RegistryConfig) {
		if n >= 0 {
			c.Workers = n
		}
	}
}

// WithTimeout sets the per-file transform timeout. Non-positive
// values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *RegistryConfig) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithWrite toggles materializing output to disk.
func WithWrite(write bool) Option {
	return func(c *RegistryConfig) { c.Write = write }
}

// WithCacheDir sets the dependency cache's on-disk directory.
func WithCacheDir(dir string) Option {
	return func(c *RegistryConfig) { c.CacheDir = dir }
}

// WithOnMaterialize installs the write-back callback pkg/materialize
// drives for every file the engine decides to emit.
func WithOnMaterialize(cb func(path, text string, authoritative bool) error) Option {
	return func(c *RegistryConfig) { c.OnMaterialize = cb }
}

// WithPreserveDefineComments toggles passthrough-comment masking of
// consumed @define blocks.
func WithPreserveDefineComments(preserve bool) Option {
	return func(c *RegistryConfig) { c.PreserveDefineComments = preserve }
}

// FromEnv reads UPP_-prefixed environment variables as the middle
// layer between a config file and CLI flags: UPP_INCLUDE_PATHS and
// UPP_STD_PATHS (colon-separated), UPP_WORKERS, UPP_TIMEOUT (Go
// duration syntax), UPP_CACHE_DIR, UPP_WRITE ("1"/"true").
func FromEnv() []Option {
	var opts []Option
	if v := os.Getenv("UPP_INCLUDE_PATHS"); v != "" {
		opts = append(opts, WithIncludePaths(strings.Split(v, ":")...))
	}
	if v := os.Getenv("UPP_STD_PATHS"); v != "" {
		opts = append(opts, WithStdPaths(strings.Split(v, ":")...))
	}
	if v := os.Getenv("UPP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts = append(opts, WithWorkers(n))
		}
	}
	if v := os.Getenv("UPP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			opts = append(opts, WithTimeout(d))
		}
	}
	if v := os.Getenv("UPP_CACHE_DIR"); v != "" {
		opts = append(opts, WithCacheDir(v))
	}
	if v := os.Getenv("UPP_WRITE"); v == "1" || strings.EqualFold(v, "true") {
		opts = append(opts, WithWrite(true))
	}
	return opts
}
