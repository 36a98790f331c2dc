package main

import "testing"

func TestCollectIncludePaths_HandlesAttachedAndSeparateForms(t *testing.T) {
	got := collectIncludePaths([]string{"-Ifoo", "-I", "bar", "main.c"})
	want := []string{"foo", "bar"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestCollectDepFile_FindsMFArgument(t *testing.T) {
	got := collectDepFile([]string{"-MD", "-MF", "out.d", "main.c"})
	if got != "out.d" {
		t.Fatalf("got %q, want %q", got, "out.d")
	}
}

func TestCollectDepFile_AbsentReturnsEmpty(t *testing.T) {
	if got := collectDepFile([]string{"main.c"}); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
