package target

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// MemoryTarget is an in-memory implementation of Target, intended for tests
// and dry runs. The Fail* fields inject errors for specific operations; they
// must be set before the target is handed to concurrent code.
type MemoryTarget struct {
	name string

	mu      sync.RWMutex
	objects map[string]int64 // key -> size

	// Failure injection.
	FailEnsure  error            // returned from EnsureBucket
	FailList    error            // returned from List
	FailUpload  map[string]error // key -> error returned from Upload
	FailPresign map[string]error // key -> error returned from Presign
}

// NewMemoryTarget creates a new in-memory Target with the given name.
func NewMemoryTarget(name string) *MemoryTarget {
	return &MemoryTarget{
		name:    name,
		objects: make(map[string]int64),
	}
}

func (m *MemoryTarget) Name() string {
	return m.name
}

// Seed records a pre-existing object, as if a previous run had uploaded it.
func (m *MemoryTarget) Seed(key string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = size
}

// Has reports whether key is stored.
func (m *MemoryTarget) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok
}

func (m *MemoryTarget) EnsureBucket(_ context.Context) error {
	return m.FailEnsure
}

func (m *MemoryTarget) List(_ context.Context) ([]ObjectInfo, error) {
	if m.FailList != nil {
		return nil, m.FailList
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]ObjectInfo, 0, len(m.objects))
	for key, size := range m.objects {
		results = append(results, ObjectInfo{Key: key, Size: size})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Key < results[j].Key })
	return results, nil
}

func (m *MemoryTarget) Upload(ctx context.Context, key, localPath string, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.FailUpload[key]; err != nil {
		return err
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}

	// Report progress in part-size chunks like a real backend would.
	if opts.Progress != nil {
		part := opts.PartSize
		if part <= 0 {
			part = info.Size()
		}
		for remaining := info.Size(); remaining > 0; remaining -= part {
			n := part
			if remaining < part {
				n = remaining
			}
			opts.Progress(n)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = info.Size()
	return nil
}

func (m *MemoryTarget) Presign(_ context.Context, key string, expiry time.Duration) (string, error) {
	if err := m.FailPresign[key]; err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.objects[key]; !ok {
		return "", ErrNotFound
	}

	return fmt.Sprintf("memory://%s/%s?expires=%d", m.name, key, int64(expiry.Seconds())), nil
}
