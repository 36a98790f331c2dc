// Package domain defines the core record types shared across the macro
// transformation engine: macros, invocations, rules, and the registry
// configuration shape external collaborators supply.
package domain

// Language identifies the source language a tree was parsed as.
// The engine's semantic helpers only understand C, but fragments and
// dependency files are tagged so the parser adapter can pick the right
// tree-sitter grammar.
type Language string

const (
	LanguageC Language = "c"
)

// MacroLanguage distinguishes script-authored macros (compiled from an
// @define body by the sandbox) from built-ins implemented directly in Go.
type MacroLanguage string

const (
	MacroLanguageScript MacroLanguage = "script"
	MacroLanguageNative MacroLanguage = "native-internal"
)

// FileKind classifies an annotated source file by its suffix.
type FileKind string

const (
	FileKindImpl   FileKind = "cup" // .cup -> .c
	FileKindHeader FileKind = "hup" // .hup -> .h
	FileKindPlain  FileKind = ""    // ordinary .c/.h, passed through
)

// KindForPath classifies a path by its extension.
func KindForPath(path string) FileKind {
	n := len(path)
	switch {
	case n >= 4 && path[n-4:] == ".cup":
		return FileKindImpl
	case n >= 4 && path[n-4:] == ".hup":
		return FileKindHeader
	default:
		return FileKindPlain
	}
}

// MaterializedPath returns the on-disk output path a kind maps to, e.g.
// "foo.cup" -> "foo.c", "bar.hup" -> "bar.h". Plain paths pass through.
func MaterializedPath(path string) string {
	switch KindForPath(path) {
	case FileKindImpl:
		return path[:len(path)-4] + ".c"
	case FileKindHeader:
		return path[:len(path)-4] + ".h"
	default:
		return path
	}
}
