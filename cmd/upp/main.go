// Command upp drives the macro transformer over one or more .cup/.hup
// files: --transpile/-T writes transformed C to stdout (or -o), --ast
// dumps the parsed Source Tree, --test/-t runs the transform without
// touching the filesystem and reports what would have materialized.
// See SPEC_FULL.md §6 "CLI surface".
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/materialize"
	"github.com/upp-dev/upp/pkg/transform"
	"github.com/upp-dev/upp/pkg/tree"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "upp: %v\n", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	transpile bool
	ast       bool
	test      bool
	output    string
	write     bool
	runCC     string
	configPath string
	includePaths multiFlag
	stdPaths     multiFlag
	verbose      bool
}

type multiFlag []string

func (m *multiFlag) String() string { return fmt.Sprint([]string(*m)) }
func (m *multiFlag) Set(v string) error {
	*m = append(*m, v)
	return nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("upp", flag.ContinueOnError)
	var f cliFlags
	fs.BoolVar(&f.transpile, "transpile", false, "write transformed C to stdout or -o")
	fs.BoolVar(&f.transpile, "translate", false, "alias for --transpile")
	fs.BoolVar(&f.transpile, "T", false, "alias for --transpile")
	fs.BoolVar(&f.ast, "ast", false, "print the parsed Source Tree instead of transformed C")
	fs.BoolVar(&f.test, "test", false, "transform without writing to disk; report what would materialize")
	fs.BoolVar(&f.test, "t", false, "alias for --test")
	fs.StringVar(&f.output, "o", "", "write single-file output here instead of stdout")
	fs.BoolVar(&f.write, "write", false, "materialize transformed output in place")
	fs.BoolVar(&f.write, "w", false, "alias for --write")
	fs.StringVar(&f.runCC, "r", "", "pipe result to this C compiler and execute the result")
	fs.StringVar(&f.runCC, "run", "", "alias for -r")
	fs.StringVar(&f.configPath, "config", "", "path to a .upp.toml/.upp.yaml config file")
	fs.Var(&f.includePaths, "I", "add an @include search directory (repeatable)")
	fs.Var(&f.stdPaths, "std-path", "add a std <angle>-include search directory (repeatable)")
	fs.BoolVar(&f.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	targets := fs.Args()
	if len(targets) == 0 {
		return fmt.Errorf("usage: upp [flags] <file|dir>...")
	}

	opts := []config.Option{}
	if f.configPath != "" {
		fileOpts, err := config.LoadFile(f.configPath)
		if err != nil {
			return err
		}
		opts = append(opts, fileOpts...)
	}
	opts = append(opts, config.FromEnv()...)
	opts = append(opts, config.WithIncludePaths(f.includePaths...))
	opts = append(opts, config.WithStdPaths(f.stdPaths...))
	if f.write {
		opts = append(opts, config.WithWrite(true))
	}

	logLevel := slog.LevelWarn
	if f.verbose {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	var writer materialize.Writer
	if f.test {
		writer = &materialize.Recorder{}
	} else if f.write {
		writer = materialize.NewFileWriter(logger)
	}
	if writer != nil {
		opts = append(opts, config.WithOnMaterialize(materialize.Callback(writer)))
	}

	cfg := config.Apply(opts...)

	files, err := expandTargets(targets)
	if err != nil {
		return err
	}

	if f.ast {
		return dumpASTs(files)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	diags := diagnostics.NewManager(suppressSet(cfg.Suppress))
	var store cache.Store = cache.NewMemStore()
	if cfg.CacheDir != "" {
		store = cache.NewFileStore(cfg.CacheDir)
	}

	outputs, runErr := transformFiles(ctx, cfg, store, diags, logger, files)

	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, diags.Format(d))
	}
	if runErr != nil {
		return runErr
	}
	if diags.HasFatal() {
		return fmt.Errorf("aborted: fatal diagnostic reported")
	}

	if rec, ok := writer.(*materialize.Recorder); ok && f.test {
		data, err := rec.Snapshot()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if f.runCC != "" {
		return compileAndRun(ctx, f.runCC, outputs)
	}

	if f.transpile || (!f.write && !f.test) {
		return emitOutputs(f.output, outputs)
	}

	return nil
}

type fileOutput struct {
	Path string
	Text string
}

// transformFiles fans independent top-level files out across a bounded
// worker pool (golang.org/x/sync/errgroup + semaphore), mirroring the
// teacher's parseFilesParallel — a single file's own include graph
// still walks strictly sequentially inside Transform.
func transformFiles(ctx context.Context, cfg config.RegistryConfig, store cache.Store, diags *diagnostics.Manager, logger *slog.Logger, files []string) ([]fileOutput, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gCtx := errgroup.WithContext(ctx)

	outputs := make([]fileOutput, len(files))

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			timeout := cfg.Timeout
			if timeout <= 0 {
				timeout = config.DefaultTimeout
			}
			fileCtx, cancel := context.WithTimeout(gCtx, timeout)
			defer cancel()

			reg := transform.NewRootRegistry(cfg, store, diags, logger)
			out, _, terr := transform.Transform(fileCtx, reg, string(source), path, nil)
			if terr != nil {
				return fmt.Errorf("transform %s: %w", path, terr)
			}
			if cfg.OnMaterialize != nil {
				if target, ok := materialize.TargetPath(path); ok {
					if err := cfg.OnMaterialize(target, out, true); err != nil {
						return fmt.Errorf("materialize %s: %w", target, err)
					}
				}
			}
			outputs[i] = fileOutput{Path: path, Text: out}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// compileAndRun writes each transformed file to a temp directory under
// its materialized name (.cup/.hup -> .c/.h), invokes cc to build a
// binary, then runs it, streaming stdio through.
func compileAndRun(ctx context.Context, cc string, outputs []fileOutput) error {
	tmpDir, err := os.MkdirTemp("", "upp-run-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	var sources []string
	for _, o := range outputs {
		target, ok := materialize.TargetPath(filepath.Base(o.Path))
		if !ok {
			target = filepath.Base(o.Path)
		}
		path := filepath.Join(tmpDir, target)
		if err := os.WriteFile(path, []byte(o.Text), 0o644); err != nil {
			return err
		}
		if filepath.Ext(path) == ".c" {
			sources = append(sources, path)
		}
	}

	bin := filepath.Join(tmpDir, "upp-run-bin")
	buildArgs := append(append([]string{}, sources...), "-o", bin)
	build := exec.CommandContext(ctx, cc, buildArgs...)
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		return fmt.Errorf("%s: %w", cc, err)
	}

	run := exec.CommandContext(ctx, bin)
	run.Stdout = os.Stdout
	run.Stderr = os.Stderr
	run.Stdin = os.Stdin
	return run.Run()
}

// expandTargets turns each positional argument into a concrete file
// list: a plain file passes through, a directory is walked recursively
// for .cup/.hup files, and anything else (or anything containing glob
// metacharacters) is resolved with doublestar so "src/**/*.cup" works
// the same way IncludePaths/StdPath resolution does in pkg/macro.
func expandTargets(targets []string) ([]string, error) {
	var files []string
	for _, target := range targets {
		info, err := os.Stat(target)
		if err == nil && !info.IsDir() {
			files = append(files, target)
			continue
		}
		if err == nil && info.IsDir() {
			werr := filepath.WalkDir(target, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					return nil
				}
				if filepath.Ext(path) == ".cup" || filepath.Ext(path) == ".hup" {
					files = append(files, path)
				}
				return nil
			})
			if werr != nil {
				return nil, werr
			}
			continue
		}

		matches, gerr := doublestar.FilepathGlob(target)
		if gerr != nil || len(matches) == 0 {
			return nil, fmt.Errorf("stat %s: %w", target, err)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func emitOutputs(output string, outputs []fileOutput) error {
	if output != "" {
		if len(outputs) != 1 {
			return fmt.Errorf("-o requires exactly one input file, got %d", len(outputs))
		}
		return os.WriteFile(output, []byte(outputs[0].Text), 0o644)
	}
	for _, o := range outputs {
		fmt.Println(o.Text)
	}
	return nil
}

// dumpASTs prints each file's parsed Source Tree (after masking
// @define/@name(args) spans so the C grammar accepts it, same as the
// transform driver's own preparation step) as an indented type/span
// listing — --ast never runs macro expansion.
func dumpASTs(files []string) error {
	for _, path := range files {
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		prepared := transform.PrepareSource(string(source), false)
		t, err := tree.New(context.Background(), prepared.CleanSource)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		fmt.Printf("%s\n", path)
		dumpNode(t.Root(), 0)
	}
	return nil
}

func dumpNode(n *tree.SourceNode, depth int) {
	if n == nil {
		return
	}
	fmt.Printf("%s%s [%d,%d)\n", indent(depth), n.Type(), n.Start(), n.End())
	for _, c := range n.Children() {
		dumpNode(c, depth+1)
	}
}

func indent(depth int) string {
	b := make([]byte, depth*2)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func suppressSet(codes []string) map[string]struct{} {
	out := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		out[c] = struct{}{}
	}
	return out
}
