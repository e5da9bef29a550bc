// Package capacity decides whether a pending upload batch fits inside a
// target's configured size quota. The decision covers the whole batch for a
// target: either every file is admitted or none is, so a batch can never
// half-fill a quota without the caller knowing.
package capacity

import (
	"fmt"

	"github.com/docker/go-units"
)

// Decision is the outcome of evaluating one target's quota against a batch.
type Decision struct {
	// Admitted reports whether the whole batch fits.
	Admitted bool
	// Reason is a human-readable explanation: the remaining margin, the
	// overage amount, or "unconstrained" when no quota is configured.
	Reason string
	// Degraded is set by the caller when the existing-occupancy figure
	// could not be queried and 0 was assumed.
	Degraded bool
}

// Evaluate checks existing+pending against maxBytes. maxBytes <= 0 means the
// target is unconstrained and any non-negative batch is admitted.
//
// Evaluate is pure: the existing-occupancy figure is supplied by the caller,
// which is also responsible for flagging a degraded (assumed-zero) figure
// via MarkDegraded.
func Evaluate(maxBytes, existingBytes, pendingBytes int64) Decision {
	if maxBytes <= 0 {
		return Decision{Admitted: true, Reason: "unconstrained"}
	}

	total := existingBytes + pendingBytes
	if total <= maxBytes {
		margin := maxBytes - total
		return Decision{
			Admitted: true,
			Reason:   fmt.Sprintf("fits, %s remaining", units.BytesSize(float64(margin))),
		}
	}

	overage := total - maxBytes
	return Decision{
		Admitted: false,
		Reason:   fmt.Sprintf("exceeds quota by %s", units.BytesSize(float64(overage))),
	}
}

// MarkDegraded returns a copy of d flagged as based on an assumed-zero
// occupancy figure.
func MarkDegraded(d Decision) Decision {
	d.Degraded = true
	d.Reason += " (occupancy unknown, assumed empty)"
	return d
}
