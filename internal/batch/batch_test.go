package batch_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudmirror/cloudmirror/internal/batch"
)

// writeTree creates files under a temp dir. Keys are relative paths, values
// are file contents.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return dir
}

func TestScanSortsAndSizes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"b.bin":        "4444",
		"a.bin":        "22",
		"nested/c.bin": "666666",
	})

	items, err := batch.Scan(dir, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	wantKeys := []string{"a.bin", "b.bin", "nested/c.bin"}
	if len(items) != len(wantKeys) {
		t.Fatalf("got %d items, want %d", len(items), len(wantKeys))
	}
	for i, k := range wantKeys {
		if items[i].Key != k {
			t.Errorf("items[%d].Key = %q, want %q", i, items[i].Key, k)
		}
	}
	if items[0].Size != 2 || items[1].Size != 4 || items[2].Size != 6 {
		t.Errorf("unexpected sizes: %+v", items)
	}
	if got := batch.TotalSize(items); got != 12 {
		t.Errorf("TotalSize = %d, want 12", got)
	}
}

func TestScanEmptyDir(t *testing.T) {
	items, err := batch.Scan(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %+v", items)
	}
}

func TestScanDefaultExcludes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"keep.txt":        "x",
		".git/config":     "x",
		"sub/.DS_Store":   "x",
		"other/Thumbs.db": "x",
	})

	items, err := batch.Scan(dir, nil)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 1 || items[0].Key != "keep.txt" {
		t.Errorf("default excludes not applied: %+v", items)
	}
}

func TestScanUserExcludes(t *testing.T) {
	dir := writeTree(t, map[string]string{
		"movie.mkv":      "x",
		"notes.txt":      "x",
		"tmp/scratch.md": "x",
		"deep/a/b.log":   "x",
	})

	items, err := batch.Scan(dir, []string{"*.txt", "tmp/", "**/*.log"})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(items) != 1 || items[0].Key != "movie.mkv" {
		t.Errorf("user excludes not applied: %+v", items)
	}
}

func TestShouldExcludeCommentAndBlankPatterns(t *testing.T) {
	if batch.ShouldExclude("file.txt", []string{"", "# comment"}) {
		t.Error("blank and comment patterns must not match anything")
	}
}
