package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.PDF", "notes.txt", "sub/c.pdf"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	single := filepath.Join(dir, "notes.txt")
	files, err := collectInputs([]string{dir, single})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	want := []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "b.PDF"),
		filepath.Join(dir, "sub", "c.pdf"),
		single,
	}
	if len(files) != len(want) {
		t.Fatalf("files = %v", files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}
	if _, err := collectInputs([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Fatalf("expected error for missing path")
	}
}

func TestOutputPath(t *testing.T) {
	got := outputPath("out", filepath.Join("exams", "parcial 1.pdf"))
	if want := filepath.Join("out", "parcial 1"+OutputSuffix); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
