// Package publish turns a replication ledger into time-limited download
// links, one presigned URL per successfully uploaded (file, target) pair.
package publish

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudmirror/cloudmirror/internal/engine"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

// DefaultExpiry is 7 days, the longest presigned-URL lifetime commonly
// supported across providers. Some cap lower; the expiry is configurable
// for that reason.
const DefaultExpiry = 604800 * time.Second

// Link is one shareable download URL.
type Link struct {
	Key string
	URL string
}

// TargetLinks groups the links for one target, together with the connection
// identity shown in reports.
type TargetLinks struct {
	Target   string
	Endpoint string
	Bucket   string
	Links    []Link
}

// Publisher requests presigned URLs for ledger entries.
type Publisher struct {
	expiry time.Duration
	log    zerolog.Logger
}

// New creates a Publisher. expiry <= 0 falls back to DefaultExpiry.
func New(expiry time.Duration, log zerolog.Logger) *Publisher {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Publisher{expiry: expiry, log: log}
}

// Expiry returns the configured link lifetime.
func (p *Publisher) Expiry() time.Duration {
	return p.expiry
}

// Publish walks the handles in order and requests one URL per ledger entry.
// A presign failure is logged and that file omitted; it never aborts the
// remaining files or targets, and it never demotes the upload itself.
// Targets without ledger entries are skipped.
func (p *Publisher) Publish(ctx context.Context, handles []*target.Handle, ledger engine.Ledger) []TargetLinks {
	var groups []TargetLinks

	for _, h := range handles {
		keys := ledger[h.Config.Name]
		if len(keys) == 0 || h.Client == nil {
			continue
		}
		groups = append(groups, p.linksFor(ctx, h, keys))
	}

	return groups
}

// ForKeys builds a link group for an explicit key list, used when
// regenerating URLs for objects already in a bucket.
func (p *Publisher) ForKeys(ctx context.Context, h *target.Handle, keys []string) TargetLinks {
	return p.linksFor(ctx, h, keys)
}

func (p *Publisher) linksFor(ctx context.Context, h *target.Handle, keys []string) TargetLinks {
	group := TargetLinks{
		Target:   h.Config.Name,
		Endpoint: h.Config.EndpointDisplay(),
		Bucket:   h.Config.Bucket,
	}

	for _, key := range keys {
		url, err := h.Client.Presign(ctx, key, p.expiry)
		if err != nil {
			p.log.Warn().
				Str("target", h.Config.Name).
				Str("file", key).
				Err(err).
				Msg("presign failed, omitting file from link set")
			continue
		}
		group.Links = append(group.Links, Link{Key: key, URL: url})
	}

	return group
}
