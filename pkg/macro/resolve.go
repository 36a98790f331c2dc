package macro

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// resolvePath implements the include-path search order from
// SPEC_FULL.md §4.4: absolute path as-is; then, for a quoted include
// (angle == false) only, relative to origin's directory; then
// StdPaths followed by IncludePaths when angle is true, or
// IncludePaths followed by StdPaths when it is false. First hit wins.
func (r *Registry) resolvePath(target, origin string, angle bool) (string, bool) {
	if filepath.IsAbs(target) {
		if fileExists(target) {
			return target, true
		}
		return "", false
	}

	if !angle && origin != "" {
		candidate := filepath.Join(filepath.Dir(origin), target)
		if fileExists(candidate) {
			return candidate, true
		}
	}

	searchDirs := r.Config.IncludePaths
	if angle {
		searchDirs = append(append([]string{}, r.Config.StdPaths...), r.Config.IncludePaths...)
	} else {
		searchDirs = append(append([]string{}, r.Config.IncludePaths...), r.Config.StdPaths...)
	}
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, target)
		if fileExists(candidate) {
			return candidate, true
		}
		if matches, err := doublestar.Glob(os.DirFS(dir), target); err == nil && len(matches) > 0 {
			return filepath.Join(dir, matches[0]), true
		}
	}
	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
