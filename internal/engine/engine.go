// Package engine orchestrates one replication run: per-target capacity
// checks, fan-out of uploads across targets, and the ledger of what landed
// where. It is an attempt-everything, record-everything executor: one
// target's failure never blocks another, and every failure ends up as data
// in the result rather than an error up the stack.
package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudmirror/cloudmirror/internal/batch"
	"github.com/cloudmirror/cloudmirror/internal/capacity"
	"github.com/cloudmirror/cloudmirror/internal/progress"
	"github.com/cloudmirror/cloudmirror/internal/target"
)

// Transfer defaults, applied uniformly regardless of file size.
const (
	DefaultPartSize        = 8 * 1024 * 1024 // 8 MiB
	DefaultPartConcurrency = 10
)

// Run-level terminal conditions. Everything else is partial success.
var (
	// ErrNoFiles means source enumeration yielded nothing to upload.
	ErrNoFiles = errors.New("no files found to upload")
	// ErrNoEligibleTargets means zero targets survived initialization and
	// capacity checks; the run stops before attempting any transfer.
	ErrNoEligibleTargets = errors.New("no eligible targets")
)

// Status classifies the outcome of one (item, target) pair.
type Status int

const (
	// StatusSucceeded: the upload completed.
	StatusSucceeded Status = iota
	// StatusClientUnavailable: the target had no usable connection
	// (initialization failed or the bucket could not be ensured).
	StatusClientUnavailable
	// StatusCapacityRejected: the whole batch failed the target's quota
	// check, so this pair was never attempted.
	StatusCapacityRejected
	// StatusTransferFailed: the upload was attempted and failed.
	StatusTransferFailed
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusClientUnavailable:
		return "client unavailable"
	case StatusCapacityRejected:
		return "capacity rejected"
	case StatusTransferFailed:
		return "transfer failed"
	default:
		return "unknown"
	}
}

// Outcome is the recorded result for one (item, target) pair. Every pair
// belonging to an enabled target produces exactly one Outcome.
type Outcome struct {
	Target   string
	Key      string
	Status   Status
	Err      error // nil unless the status is a failure
	Attempts int   // upload attempts made; 0 when never attempted
}

// Ledger maps a target name to the ordered item keys that were uploaded
// successfully. Only admitted targets appear; only successes append.
type Ledger map[string][]string

// TargetState is the per-target pre-flight snapshot used for reporting.
type TargetState struct {
	Name        string
	Disabled    bool
	InitErr     error
	BucketErr   error
	Occupied    int64 // bytes already stored, 0 when the query failed
	ObjectCount int
	Decision    capacity.Decision
	Admitted    bool
}

// Result is everything a run produced. It is handed immutably to the link
// publisher and the reporter once Run returns.
type Result struct {
	Ledger       Ledger
	Outcomes     []Outcome
	States       []TargetState
	FileCount    int
	PendingBytes int64
}

// Succeeded returns the ledger entry for a target, in upload order.
func (r *Result) Succeeded(targetName string) []string {
	return r.Ledger[targetName]
}

// Config tunes a replication run.
type Config struct {
	// PartSize is the multipart chunk size in bytes.
	PartSize int64
	// PartConcurrency bounds concurrent parts within one upload.
	PartConcurrency int
	// TransferTimeout bounds one (item, target) transfer attempt so a
	// hung connection cannot stall the run forever. 0 disables it.
	TransferTimeout time.Duration
	// ProgressOut receives progress lines; nil discards them.
	ProgressOut io.Writer
}

// Engine executes replication runs.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// New creates an Engine, filling in transfer defaults.
func New(cfg Config, log zerolog.Logger) *Engine {
	if cfg.PartSize <= 0 {
		cfg.PartSize = DefaultPartSize
	}
	if cfg.PartConcurrency <= 0 {
		cfg.PartConcurrency = DefaultPartConcurrency
	}
	if cfg.ProgressOut == nil {
		cfg.ProgressOut = io.Discard
	}
	return &Engine{cfg: cfg, log: log}
}

// Run replicates items to every eligible target.
//
// Pre-flight, per enabled target with a live client: ensure the bucket,
// query occupied size (best-effort; failure means 0 and a degraded
// decision), and evaluate the whole batch against the quota. Targets that
// are disabled, unusable, or rejected are skipped for the run; if none
// remain, Run returns ErrNoEligibleTargets alongside the states gathered so
// far. Otherwise admitted targets proceed concurrently, each uploading
// items in enumeration order.
func (e *Engine) Run(ctx context.Context, handles []*target.Handle, items []batch.Item) (*Result, error) {
	res := &Result{Ledger: Ledger{}}

	if len(items) == 0 {
		return res, ErrNoFiles
	}
	res.FileCount = len(items)
	res.PendingBytes = batch.TotalSize(items)

	admitted := e.preflight(ctx, handles, items, res)
	if len(admitted) == 0 {
		return res, ErrNoEligibleTargets
	}

	var mu sync.Mutex
	var g errgroup.Group

	for _, h := range admitted {
		h := h
		g.Go(func() error {
			for _, item := range items {
				out := e.transferPair(ctx, h, item)

				mu.Lock()
				res.Outcomes = append(res.Outcomes, out)
				if out.Status == StatusSucceeded {
					res.Ledger[h.Config.Name] = append(res.Ledger[h.Config.Name], item.Key)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	// Workers never return errors; failures are data in res.
	_ = g.Wait()

	return res, nil
}

// preflight builds the per-target states, records outcomes for enabled
// targets that never reach the transfer phase, and returns the admitted
// handles.
func (e *Engine) preflight(ctx context.Context, handles []*target.Handle, items []batch.Item, res *Result) []*target.Handle {
	var admitted []*target.Handle

	for _, h := range handles {
		st := TargetState{Name: h.Config.Name}
		tlog := e.log.With().Str("target", h.Config.Name).Logger()

		switch {
		case !h.Config.Enabled:
			st.Disabled = true
			tlog.Info().Msg("target disabled, skipping")

		case h.Err != nil:
			st.InitErr = h.Err
			tlog.Warn().Err(h.Err).Msg("target unusable, skipping")
			recordAll(res, h.Config.Name, items, StatusClientUnavailable, h.Err)

		default:
			if err := h.Client.EnsureBucket(ctx); err != nil {
				st.BucketErr = err
				tlog.Warn().Err(err).Msg("bucket unavailable, skipping")
				recordAll(res, h.Config.Name, items, StatusClientUnavailable, err)
				break
			}

			occupied, count, degraded := e.occupiedSize(ctx, h, tlog)
			st.Occupied = occupied
			st.ObjectCount = count

			dec := capacity.Evaluate(h.Config.MaxBytes, occupied, res.PendingBytes)
			if degraded {
				dec = capacity.MarkDegraded(dec)
			}
			st.Decision = dec

			if !dec.Admitted {
				tlog.Warn().Str("reason", dec.Reason).Msg("batch rejected by capacity check")
				recordAll(res, h.Config.Name, items, StatusCapacityRejected, errors.New(dec.Reason))
				break
			}

			st.Admitted = true
			admitted = append(admitted, h)
			tlog.Info().
				Int64("occupied_bytes", occupied).
				Int64("pending_bytes", res.PendingBytes).
				Str("capacity", dec.Reason).
				Msg("target admitted")
		}

		res.States = append(res.States, st)
	}

	return admitted
}

// occupiedSize sums the sizes of objects already in the target's bucket.
// A listing failure is treated as zero occupancy (optimistic) and flagged
// degraded, so a transiently unlistable bucket does not block the run.
func (e *Engine) occupiedSize(ctx context.Context, h *target.Handle, tlog zerolog.Logger) (bytes int64, count int, degraded bool) {
	objs, err := h.Client.List(ctx)
	if err != nil {
		tlog.Warn().Err(err).Msg("occupancy query failed, assuming empty bucket")
		return 0, 0, true
	}
	for _, o := range objs {
		bytes += o.Size
		count++
	}
	return bytes, count, false
}

// transferPair uploads one item to one target, retrying per the target's
// retry policy with a fresh progress tracker per attempt.
func (e *Engine) transferPair(ctx context.Context, h *target.Handle, item batch.Item) Outcome {
	out := Outcome{Target: h.Config.Name, Key: item.Key}
	attempts := h.Config.MaxRetries + 1

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				out.Status = StatusTransferFailed
				out.Err = ctx.Err()
				return out
			case <-time.After(target.BackoffDelay(h.Config.RetryBackoff, attempt-1)):
			}
		}

		out.Attempts = attempt + 1
		err = e.uploadOnce(ctx, h, item)
		if err == nil {
			out.Status = StatusSucceeded
			e.log.Info().
				Str("target", h.Config.Name).
				Str("file", item.Key).
				Int64("bytes", item.Size).
				Msg("uploaded")
			return out
		}

		e.log.Warn().
			Str("target", h.Config.Name).
			Str("file", item.Key).
			Int("attempt", attempt+1).
			Err(err).
			Msg("upload failed")

		if ctx.Err() != nil {
			break
		}
	}

	out.Status = StatusTransferFailed
	out.Err = err
	return out
}

// uploadOnce performs a single upload attempt under the per-transfer
// deadline, driving a tracker owned exclusively by this attempt.
func (e *Engine) uploadOnce(ctx context.Context, h *target.Handle, item batch.Item) error {
	if e.cfg.TransferTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.TransferTimeout)
		defer cancel()
	}

	tracker := progress.New(h.Config.Name, item.Key, item.Size, e.cfg.ProgressOut)

	err := h.Client.Upload(ctx, item.Key, item.Path, target.UploadOptions{
		PartSize:    e.cfg.PartSize,
		Concurrency: e.cfg.PartConcurrency,
		Progress:    tracker.Add,
	})
	if err != nil {
		return err
	}

	tracker.Finish()
	return nil
}

// recordAll appends one outcome per item for a target that never reached
// the transfer phase, so no (item, target) pair is silently dropped.
func recordAll(res *Result, targetName string, items []batch.Item, status Status, err error) {
	for _, item := range items {
		res.Outcomes = append(res.Outcomes, Outcome{
			Target: targetName,
			Key:    item.Key,
			Status: status,
			Err:    err,
		})
	}
}
