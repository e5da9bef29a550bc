// Package target is the storage abstraction layer for replication
// destinations. Implementations exist for S3-compatible endpoints, Google
// Cloud Storage, and Azure Blob Storage, plus an in-memory backend for
// tests.
package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Target kinds accepted by the factory.
const (
	KindS3     = "s3"
	KindGCS    = "gcs"
	KindAzure  = "azure"
	KindMemory = "memory"
)

// Sentinel errors for target operations.
var (
	ErrNotFound           = errors.New("object not found")
	ErrPresignUnsupported = errors.New("presigned URLs not supported by this target configuration")
)

// ObjectInfo is a single entry returned from List.
type ObjectInfo struct {
	Key  string
	Size int64
}

// UploadOptions controls chunking and progress reporting for one upload.
type UploadOptions struct {
	// PartSize is the fixed chunk size in bytes for multipart transfers.
	PartSize int64
	// Concurrency bounds how many parts of this one upload may be in
	// flight at once against the target.
	Concurrency int
	// Progress, when non-nil, is invoked with byte deltas as chunks
	// complete. It must be safe for concurrent calls.
	Progress func(n int64)
}

// Target is one independent object-storage destination.
type Target interface {
	// Name returns the target name for logging and reporting.
	Name() string
	// EnsureBucket verifies the bucket exists, creating it when missing.
	EnsureBucket(ctx context.Context) error
	// List returns all objects in the bucket. Pagination is handled
	// internally; an error mid-listing truncates the result.
	List(ctx context.Context) ([]ObjectInfo, error)
	// Upload transfers the local file at localPath to the given key.
	Upload(ctx context.Context, key, localPath string, opts UploadOptions) error
	// Presign returns a time-bounded, credential-free GET URL for key.
	Presign(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Config describes one target: identity, connection descriptor, capacity
// policy, and enabled flag. It is constructed once at process start and is
// immutable for the run.
type Config struct {
	Name string
	Kind string // "s3", "gcs", "azure", "memory"

	// Connection descriptor. Endpoint and Region apply to S3-compatible
	// targets; StorageAccount/AccountKey to Azure; ProjectID to GCS
	// bucket creation.
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	StorageAccount  string
	AccountKey      string
	ProjectID       string
	PathStyle       bool

	// MaxBytes is the capacity quota; 0 means unconstrained.
	MaxBytes int64

	// Enabled excludes the target from all operations when false.
	Enabled bool

	// Retry policy for this target's operations.
	MaxRetries   int
	RetryBackoff string // "exponential" | "linear"
}

// EndpointDisplay returns the endpoint string used in reports. For kinds
// with implicit endpoints the canonical service URL is derived.
func (c Config) EndpointDisplay() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	switch c.Kind {
	case KindGCS:
		return "https://storage.googleapis.com"
	case KindAzure:
		return fmt.Sprintf("https://%s.blob.core.windows.net", c.StorageAccount)
	case KindMemory:
		return "memory://" + c.Name
	default:
		if c.Region != "" {
			return fmt.Sprintf("https://s3.%s.amazonaws.com", c.Region)
		}
		return "https://s3.amazonaws.com"
	}
}

// Handle pairs a target's configuration with its live client. Err records
// an initialization failure; such a target stays in the run's bookkeeping
// but is never used for transfers.
type Handle struct {
	Config Config
	Client Target // nil when initialization failed or target is disabled
	Err    error
}

// Connect constructs the client for cfg. Initialization failure is captured
// on the handle rather than returned, so one bad target never aborts the
// others. Disabled targets get no client at all.
func Connect(ctx context.Context, cfg Config) *Handle {
	h := &Handle{Config: cfg}
	if !cfg.Enabled {
		return h
	}
	t, err := NewTarget(ctx, cfg)
	if err != nil {
		h.Err = err
		return h
	}
	h.Client = t
	return h
}

// ConnectAll builds a handle for every configured target, in order.
func ConnectAll(ctx context.Context, cfgs []Config) []*Handle {
	handles := make([]*Handle, 0, len(cfgs))
	for _, cfg := range cfgs {
		handles = append(handles, Connect(ctx, cfg))
	}
	return handles
}

// progressReader wraps a reader and reports read byte counts to fn.
type progressReader struct {
	r  io.Reader
	fn func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.fn != nil {
		p.fn(int64(n))
	}
	return n, err
}
