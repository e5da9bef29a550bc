package target

import (
	"context"
	"fmt"
)

// NewTarget creates a Target based on the provided Config.
// It dispatches to the appropriate backend constructor and wraps the result
// in a RetryTarget if MaxRetries > 0. This is the single client-construction
// path: provider differences live in the Config descriptor, never in the
// engine.
func NewTarget(ctx context.Context, cfg Config) (Target, error) {
	var (
		t   Target
		err error
	)

	switch cfg.Kind {
	case KindS3:
		t, err = newS3Target(ctx, cfg)
	case KindGCS:
		t, err = newGCSTarget(ctx, cfg)
	case KindAzure:
		t, err = newAzureTarget(cfg)
	case KindMemory:
		return GetOrCreateMemoryTarget(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported target kind: %q (must be s3, gcs, azure, or memory)", cfg.Kind)
	}

	if err != nil {
		return nil, fmt.Errorf("creating %s target %q: %w", cfg.Kind, cfg.Name, err)
	}

	if cfg.MaxRetries > 0 {
		t = NewRetryTarget(t, cfg.MaxRetries, cfg.RetryBackoff)
	}

	return t, nil
}
