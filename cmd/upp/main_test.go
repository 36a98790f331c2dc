package main

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestExpandTargets_PlainFilePassesThrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.cup")
	if err := os.WriteFile(path, []byte("int main(void){return 0;}"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := expandTargets([]string{path})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != path {
		t.Fatalf("got %v, want [%s]", got, path)
	}
}

func TestExpandTargets_DirectoryWalksForCupAndHupOnly(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.cup", "b.hup", "c.txt"}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "d.cup"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := expandTargets([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	var bases []string
	for _, g := range got {
		bases = append(bases, filepath.Base(g))
	}
	sort.Strings(bases)
	want := []string{"a.cup", "b.hup", "d.cup"}
	if len(bases) != len(want) {
		t.Fatalf("got %v, want %v", bases, want)
	}
	for i := range want {
		if bases[i] != want[i] {
			t.Fatalf("got %v, want %v", bases, want)
		}
	}
}

func TestExpandTargets_GlobPatternResolvesMatches(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"one.cup", "two.cup", "skip.txt"} {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := expandTargets([]string{filepath.Join(dir, "*.cup")})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 matches", got)
	}
}

func TestExpandTargets_NonexistentNonGlobReturnsError(t *testing.T) {
	if _, err := expandTargets([]string{filepath.Join(t.TempDir(), "missing.cup")}); err == nil {
		t.Fatal("expected an error for a nonexistent, non-glob target")
	}
}

func TestSuppressSet_BuildsLookupFromCodes(t *testing.T) {
	set := suppressSet([]string{"UPP001", "UPP002"})
	if _, ok := set["UPP001"]; !ok {
		t.Fatal("expected UPP001 present")
	}
	if _, ok := set["UPP003"]; ok {
		t.Fatal("expected UPP003 absent")
	}
}

func TestIndent_ProducesTwoSpacesPerDepth(t *testing.T) {
	if got := indent(3); got != "      " {
		t.Fatalf("got %q, want 6 spaces", got)
	}
	if got := indent(0); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
