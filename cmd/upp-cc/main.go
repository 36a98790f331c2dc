// Command upp-cc wraps a C compiler invocation: <cc> <args...>. Any
// ".c" argument with a sibling ".cup" file of the same base name is
// transformed to a temp directory first and substituted in place, so
// the real compiler never sees `@name(args)` syntax. Dependency-file
// flags (-MD/-MMD/-MF/-MT/-MQ) are rewritten after compilation so the
// generated .d file names the original .cup/.hup source, not the temp
// file make would otherwise see as the dependency. See SPEC_FULL.md
// §6 "CLI surface".
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/upp-dev/upp/pkg/cache"
	"github.com/upp-dev/upp/pkg/config"
	"github.com/upp-dev/upp/pkg/diagnostics"
	"github.com/upp-dev/upp/pkg/transform"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "upp-cc: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: upp-cc <cc> [args...]")
	}
	cc := args[0]
	rest := args[1:]

	tmpDir, err := os.MkdirTemp("", "upp-cc-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	includePaths := collectIncludePaths(rest)
	depFile := collectDepFile(rest)

	rewritten, substitutions, err := rewriteCSources(tmpDir, includePaths, rest)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(context.Background(), cc, rewritten...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	if err := cmd.Run(); err != nil {
		return err
	}

	if depFile != "" {
		if err := rewriteDepFile(depFile, substitutions); err != nil {
			return err
		}
	}

	return nil
}

// collectIncludePaths scans -I<dir> / -I <dir> flags so the transform
// can resolve @include targets the same way the compiler resolves
// #include ones.
func collectIncludePaths(args []string) []string {
	var paths []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.HasPrefix(a, "-I") && len(a) > 2:
			paths = append(paths, a[2:])
		case a == "-I" && i+1 < len(args):
			i++
			paths = append(paths, args[i])
		}
	}
	return paths
}

// collectDepFile finds the -MF dependency-output path. -MD/-MMD's
// implicit default naming (deriving the .d path from the object file)
// is intentionally not replicated — projects relying on upp-cc's
// dependency rewriting are expected to pass -MF explicitly, since
// -MT/-MQ already let them name the target independent of any file on
// disk.
func collectDepFile(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-MF" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// substitution records one transformed-temp-file -> original-source
// mapping, so the post-compile dependency-file pass can restore the
// name make (or whatever build system invoked upp-cc) should see.
type substitution struct {
	tempPath     string
	originalPath string
}

// rewriteCSources walks args, and for every .c argument with a sibling
// .cup of the same base name, transforms it into tmpDir and swaps the
// argument to point there. Non-.c arguments and .c files without a
// .cup companion pass through untouched.
func rewriteCSources(tmpDir string, includePaths []string, args []string) ([]string, []substitution, error) {
	out := make([]string, len(args))
	copy(out, args)

	var subs []substitution
	diags := diagnostics.NewManager(nil)
	store := cache.NewMemStore()
	cfg := config.Apply(config.WithIncludePaths(includePaths...))

	for i, a := range out {
		if !strings.HasSuffix(a, ".c") || strings.HasPrefix(a, "-") {
			continue
		}
		cupPath := strings.TrimSuffix(a, ".c") + ".cup"
		if _, err := os.Stat(cupPath); err != nil {
			continue
		}

		source, err := os.ReadFile(cupPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", cupPath, err)
		}

		reg := transform.NewRootRegistry(cfg, store, diags, nil)
		output, _, terr := transform.Transform(context.Background(), reg, string(source), cupPath, nil)
		if terr != nil {
			return nil, nil, fmt.Errorf("transform %s: %w", cupPath, terr)
		}

		tempPath := filepath.Join(tmpDir, filepath.Base(a))
		if err := os.WriteFile(tempPath, []byte(output), 0o644); err != nil {
			return nil, nil, err
		}

		out[i] = tempPath
		subs = append(subs, substitution{tempPath: tempPath, originalPath: cupPath})
	}

	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, diags.Format(d))
	}

	return out, subs, nil
}

// rewriteDepFile replaces every temp-file path the compiler wrote into
// the generated .d file with the original .cup source path, so a
// downstream `make` sees the annotated file as the dependency.
func rewriteDepFile(depFile string, subs []substitution) error {
	if len(subs) == 0 {
		return nil
	}
	data, err := os.ReadFile(depFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", depFile, err)
	}
	for _, s := range subs {
		data = bytes.ReplaceAll(data, []byte(s.tempPath), []byte(s.originalPath))
	}
	return os.WriteFile(depFile, data, 0o644)
}
