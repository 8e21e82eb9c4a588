// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

// DefaultVisibilityThreshold is the intersection ratio at which an element
// counts as on screen.
const DefaultVisibilityThreshold = 0.5

// Crossing is the edge produced by a visibility observation.
type Crossing int

const (
	CrossNone Crossing = iota
	CrossIn
	CrossOut
)

func (c Crossing) String() string {
	switch c {
	case CrossIn:
		return "in"
	case CrossOut:
		return "out"
	default:
		return "none"
	}
}

// VisibilityTracker turns a stream of intersection ratios into threshold
// crossings. It starts out not visible. Not safe for concurrent use.
type VisibilityTracker struct {
	threshold float64
	visible   bool
}

func NewVisibilityTracker(threshold float64) *VisibilityTracker {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultVisibilityThreshold
	}
	return &VisibilityTracker{threshold: threshold}
}

// Observe records one ratio and reports whether it crossed the threshold.
func (t *VisibilityTracker) Observe(ratio float64) Crossing {
	now := ratio >= t.threshold
	if now == t.visible {
		return CrossNone
	}
	t.visible = now
	if now {
		return CrossIn
	}
	return CrossOut
}

func (t *VisibilityTracker) Visible() bool { return t.visible }

func (t *VisibilityTracker) Threshold() float64 { return t.threshold }
