// Package materialize implements on-disk write-back of transformed
// output: SPEC_FULL.md's Materializer collaborator. The Transformer
// never touches the filesystem for output itself — it calls a
// config.RegistryConfig.OnMaterialize callback, and this package
// supplies the one the CLI wires up.
package materialize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// TargetPath maps a .cup/.hup source path to the plain-C path it
// materializes to (.c/.h), the suffix rule SPEC_FULL.md's Full pass
// uses to decide whether a dependency should be written back at all.
// ok is false for any other suffix (nothing materializes).
func TargetPath(sourcePath string) (path string, ok bool) {
	switch {
	case strings.HasSuffix(sourcePath, ".cup"):
		return strings.TrimSuffix(sourcePath, ".cup") + ".c", true
	case strings.HasSuffix(sourcePath, ".hup"):
		return strings.TrimSuffix(sourcePath, ".hup") + ".h", true
	default:
		return "", false
	}
}

// Writer persists one materialized file's final text.
type Writer interface {
	Write(path, text string, authoritative bool) error
}

// FileWriter writes through to the filesystem: a uuid-named temp file
// in the target's own directory, then an atomic rename into place,
// mirroring pkg/cache.FileStore's write discipline so a reader never
// observes a half-written .c/.h file.
type FileWriter struct {
	Logger *slog.Logger

	// SkipUnauthoritative, when true, drops a callback for a
	// non-authoritative (discovery-only) entry instead of writing it —
	// a discovery pass's text is not the final transformed output and
	// should never overwrite a real build artifact.
	SkipUnauthoritative bool
}

func NewFileWriter(logger *slog.Logger) *FileWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileWriter{Logger: logger, SkipUnauthoritative: true}
}

func (w *FileWriter) Write(path, text string, authoritative bool) error {
	if w.SkipUnauthoritative && !authoritative {
		w.Logger.Debug("materialize: skipped non-authoritative write", "path", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "materialize: mkdir %s", dir)
	}

	tmp := filepath.Join(dir, ".upp-tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return errors.Wrapf(err, "materialize: write temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "materialize: rename into place for %s", path)
	}

	w.Logger.Info("materialize: wrote", "path", path, "authoritative", authoritative)
	return nil
}

// Callback adapts w into the func(path, text string, authoritative
// bool) error shape config.RegistryConfig.OnMaterialize expects.
func Callback(w Writer) func(path, text string, authoritative bool) error {
	return func(path, text string, authoritative bool) error {
		return w.Write(path, text, authoritative)
	}
}

// Recorder is an in-memory Writer for tests and dry runs (`--test`/
// `-t`): it never touches the filesystem, just remembers every call in
// order so callers can assert on what would have been written.
type Recorder struct {
	mu      sync.Mutex
	Written []Record
}

// Record is one captured materialize call.
type Record struct {
	Path          string
	Text          string
	Authoritative bool
}

func (r *Recorder) Write(path, text string, authoritative bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Written = append(r.Written, Record{Path: path, Text: text, Authoritative: authoritative})
	return nil
}

// Snapshot returns a JSON-serializable copy of every recorded write,
// in call order — used by --test/-t's machine-readable report mode.
func (r *Recorder) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.Written))
	copy(out, r.Written)
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("materialize: encode snapshot: %w", err)
	}
	return data, nil
}
