// Package trace turns raw sensor logs into per-run power traces: window
// computation, extraction, resampling to a canonical length and energy
// integration.
package trace

import (
	"time"

	"github.com/daryltucker/forest-energy/internal/model"
)

// Window is the half-open execution interval [Start, End) of a run.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow returns the execution window of a completed run.
func NewWindow(r model.RunRecord) Window {
	return Window{Start: r.StartedAt, End: r.StartedAt.Add(r.Latency())}
}

// Empty reports whether the window contains no instant.
func (w Window) Empty() bool {
	return !w.End.After(w.Start)
}

// Contains reports whether t lies in [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether [first, last] intersects the window.
func (w Window) Overlaps(first, last time.Time) bool {
	if w.Empty() {
		return false
	}
	return last.Compare(w.Start) >= 0 && first.Before(w.End)
}
