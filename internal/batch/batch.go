// Package batch implements source-directory scanning: enumeration and
// exclusion of the local files that make up one replication run.
package batch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Item is a single local file queued for upload. Size is captured once at
// enumeration time; the run assumes the file is not modified concurrently.
type Item struct {
	// Key is the destination object key: the forward-slash relative path
	// from the source directory root.
	Key string
	// Path is the absolute filesystem path of the source file.
	Path string
	// Size is the file size in bytes at enumeration time.
	Size int64
}

// Scan walks sourceDir, applies the exclusion rules, and returns a
// deterministically sorted list of items. Items are read-only after this:
// the engine consumes each one once per target.
func Scan(sourceDir string, userExcludes []string) ([]Item, error) {
	absRoot, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("batch: resolve source dir: %w", err)
	}

	var items []Item

	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return fmt.Errorf("batch: compute relative path: %w", err)
		}
		rel = filepath.ToSlash(rel)

		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if ShouldExclude(rel, userExcludes) || ShouldExclude(rel+"/", userExcludes) {
				return fs.SkipDir
			}
			return nil
		}

		if ShouldExclude(rel, userExcludes) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("batch: stat %q: %w", rel, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		items = append(items, Item{
			Key:  rel,
			Path: path,
			Size: info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("batch: walk source dir: %w", err)
	}

	// Sort lexicographically by key (byte order) so the upload order is
	// stable across runs and filesystems.
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})

	return items, nil
}

// TotalSize sums the byte sizes of all items in the batch.
func TotalSize(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += it.Size
	}
	return total
}
