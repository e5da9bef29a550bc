// Package progress renders per-transfer progress lines from byte-count
// callbacks. A Tracker belongs to exactly one (file, target) transfer;
// multipart parts of that transfer may report concurrently.
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const (
	mib = 1024 * 1024
	gib = 1024 * 1024 * 1024

	// emitInterval limits how often a progress line is written. It is a
	// presentation rate limit only; byte counts always accumulate.
	emitInterval = time.Second
)

// Tracker accumulates transferred bytes for a single transfer and writes a
// rate-limited progress line to its sink.
type Tracker struct {
	target string
	file   string
	total  int64

	out io.Writer
	now func() time.Time

	mu          sync.Mutex
	transferred int64
	start       time.Time
	lastEmit    time.Time
}

// New returns a Tracker for one (target, file) transfer. total <= 0 means
// the total size is unknown: percentage and ETA are suppressed rather than
// computed from garbage.
func New(target, file string, total int64, out io.Writer) *Tracker {
	return newTracker(target, file, total, out, time.Now)
}

func newTracker(target, file string, total int64, out io.Writer, now func() time.Time) *Tracker {
	t := &Tracker{
		target: target,
		file:   file,
		total:  total,
		out:    out,
		now:    now,
	}
	t.start = now()
	t.lastEmit = t.start
	return t
}

// Add records n more transferred bytes. At most one progress line per second
// is written; calls between emits only accumulate.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.transferred += n

	now := t.now()
	if now.Sub(t.lastEmit) < emitInterval {
		return
	}
	t.lastEmit = now
	t.emit(now)
}

// Finish writes a final progress line regardless of the rate limit and
// terminates it with a newline.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit(t.now())
	fmt.Fprintln(t.out)
}

// Transferred returns the cumulative byte count so far.
func (t *Tracker) Transferred() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transferred
}

// eta returns the estimated remaining time based on average throughput since
// start, or false when no bytes have been transferred yet.
func (t *Tracker) eta(now time.Time) (time.Duration, bool) {
	if t.transferred <= 0 || t.total <= 0 {
		return 0, false
	}
	elapsed := now.Sub(t.start)
	if elapsed <= 0 {
		return 0, false
	}
	remaining := t.total - t.transferred
	if remaining < 0 {
		remaining = 0
	}
	perByte := elapsed / time.Duration(t.transferred)
	return time.Duration(remaining) * perByte, true
}

// emit writes one progress line. Callers hold t.mu.
func (t *Tracker) emit(now time.Time) {
	elapsed := now.Sub(t.start).Seconds()
	if elapsed <= 0 {
		elapsed = 0.001
	}
	speed := float64(t.transferred) / mib / elapsed

	if t.total <= 0 {
		// Unknown total: bytes and speed only.
		fmt.Fprintf(t.out, "\r  [%s] %s: %.2f GB | %.2f MB/s",
			t.target, t.file, float64(t.transferred)/gib, speed)
		return
	}

	pct := float64(t.transferred) / float64(t.total) * 100

	etaText := "unknown"
	if d, ok := t.eta(now); ok {
		etaText = d.Round(time.Second).String()
	}

	fmt.Fprintf(t.out, "\r  [%s] %.1f%% | %.2f/%.2f GB | %.2f MB/s | ETA: %s",
		t.target, pct, float64(t.transferred)/gib, float64(t.total)/gib, speed, etaText)
}
