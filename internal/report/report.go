// Package report renders run results for humans: a console summary of what
// landed where, and a persisted plain-text document of shareable links.
// The link document is regenerated wholesale on every run.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/cloudmirror/cloudmirror/internal/engine"
	"github.com/cloudmirror/cloudmirror/internal/publish"
)

const rule = "======================================================================"
const thinRule = "----------------------------------------------------------------------"

// WriteSummary renders the per-target outcome of a run. Partial success is
// the expected common case, so every target gets its own verdict; the
// summary never implies all-or-nothing.
func WriteSummary(w io.Writer, res *engine.Result) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "REPLICATION SUMMARY")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Files in batch: %d (%s)\n", res.FileCount, units.BytesSize(float64(res.PendingBytes)))

	for _, st := range res.States {
		fmt.Fprintf(w, "\n[%s]\n", st.Name)

		switch {
		case st.Disabled:
			fmt.Fprintln(w, "  Disabled - skipped")
		case st.InitErr != nil:
			fmt.Fprintf(w, "  Unavailable: %v\n", st.InitErr)
		case st.BucketErr != nil:
			fmt.Fprintf(w, "  Bucket unavailable: %v\n", st.BucketErr)
		case !st.Decision.Admitted:
			fmt.Fprintf(w, "  Rejected: %s\n", st.Decision.Reason)
		default:
			uploaded := res.Succeeded(st.Name)
			fmt.Fprintf(w, "  Existing: %s (%d objects)\n",
				units.BytesSize(float64(st.Occupied)), st.ObjectCount)
			fmt.Fprintf(w, "  Capacity: %s\n", st.Decision.Reason)
			fmt.Fprintf(w, "  Uploaded: %d/%d file(s)\n", len(uploaded), res.FileCount)
		}
	}

	failures := transferFailures(res)
	if len(failures) > 0 {
		fmt.Fprintf(w, "\nFailed transfers:\n")
		for _, o := range failures {
			fmt.Fprintf(w, "  [%s] %s: %v\n", o.Target, o.Key, o.Err)
		}
	}

	fmt.Fprintln(w, rule)
}

func transferFailures(res *engine.Result) []engine.Outcome {
	var out []engine.Outcome
	for _, o := range res.Outcomes {
		if o.Status == engine.StatusTransferFailed {
			out = append(out, o)
		}
	}
	return out
}

// WriteLinks renders the shareable-link document grouped by target.
func WriteLinks(w io.Writer, groups []publish.TargetLinks, expiry time.Duration) {
	days := expiry.Hours() / 24

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "PRESIGNED URLs (valid for %s)\n", formatExpiry(days, expiry))
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	for _, g := range groups {
		if len(g.Links) == 0 {
			continue
		}
		fmt.Fprintf(w, "%s:\n", g.Target)
		fmt.Fprintf(w, "Endpoint: %s\n", g.Endpoint)
		fmt.Fprintf(w, "Bucket: %s\n", g.Bucket)
		fmt.Fprintln(w, thinRule)
		fmt.Fprintln(w)
		for _, l := range g.Links {
			fmt.Fprintf(w, "File: %s\n", l.Key)
			fmt.Fprintf(w, "URL: %s\n\n", l.URL)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "NOTE: These URLs expire in %s (%d seconds).\n",
		formatExpiry(days, expiry), int64(expiry.Seconds()))
	fmt.Fprintln(w, "Re-run to generate new URLs after expiration.")
	fmt.Fprintln(w, rule)
}

func formatExpiry(days float64, expiry time.Duration) string {
	if days == float64(int64(days)) && days >= 1 {
		return fmt.Sprintf("%d days", int64(days))
	}
	return expiry.String()
}

// SaveLinks writes the link document to path, replacing any previous one.
func SaveLinks(path string, groups []publish.TargetLinks, expiry time.Duration) error {
	var b strings.Builder
	WriteLinks(&b, groups, expiry)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	return nil
}
