package target

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryTarget wraps another Target and retries transient errors on the
// idempotent control-plane operations (EnsureBucket, List, Presign) with
// configurable backoff. Uploads pass through untouched: transfer retries
// are owned by the replication engine, which needs a fresh progress tracker
// per attempt.
type RetryTarget struct {
	inner      Target
	maxRetries int
	backoff    string // "exponential" or "linear"
}

// NewRetryTarget creates a Target that retries transient errors.
// backoff must be "exponential" or "linear". maxRetries is the maximum
// number of retry attempts (0 means no retries).
func NewRetryTarget(inner Target, maxRetries int, backoff string) Target {
	if backoff != "exponential" && backoff != "linear" {
		backoff = "exponential"
	}
	return &RetryTarget{
		inner:      inner,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

func (r *RetryTarget) Name() string {
	return r.inner.Name()
}

func (r *RetryTarget) EnsureBucket(ctx context.Context) error {
	return r.retryOp(ctx, func() error {
		return r.inner.EnsureBucket(ctx)
	})
}

func (r *RetryTarget) List(ctx context.Context) ([]ObjectInfo, error) {
	var items []ObjectInfo
	err := r.retryOp(ctx, func() error {
		var e error
		items, e = r.inner.List(ctx)
		return e
	})
	return items, err
}

func (r *RetryTarget) Upload(ctx context.Context, key, localPath string, opts UploadOptions) error {
	return r.inner.Upload(ctx, key, localPath, opts)
}

func (r *RetryTarget) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	var url string
	err := r.retryOp(ctx, func() error {
		var e error
		url, e = r.inner.Presign(ctx, key, expiry)
		return e
	})
	return url, err
}

// isTransient returns true if the error is transient and should be retried.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, ErrPresignUnsupported) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// retryOp executes the operation and retries on transient errors.
func (r *RetryTarget) retryOp(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt == r.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(BackoffDelay(r.backoff, attempt)):
		}
	}
	return lastErr
}

// BackoffDelay computes the sleep before retry number attempt+1, with
// +/- 25% jitter. It is shared with the engine's upload retry loop.
func BackoffDelay(backoff string, attempt int) time.Duration {
	const baseDelay = 100 * time.Millisecond
	const maxDelay = 30 * time.Second

	var delay time.Duration
	switch backoff {
	case "linear":
		delay = baseDelay * time.Duration(attempt+1)
	default: // "exponential"
		delay = baseDelay * time.Duration(math.Pow(2, float64(attempt)))
	}

	if delay > maxDelay {
		delay = maxDelay
	}

	jitter := time.Duration(rand.Int63n(int64(delay/2))) - delay/4
	delay += jitter

	if delay < 0 {
		delay = baseDelay
	}

	return delay
}
