package demo

import (
	"slices"
	"sync"
)

// Status is the coarse state of the demo pipeline.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
)

// Progress is what /status reports to polling clients.
type Progress struct {
	Status       Status    `json:"status"`
	Step         int       `json:"step"`
	StepName     string    `json:"step_name"`
	Progress     float64   `json:"progress"`
	PartialTrace []float64 `json:"partial_trace,omitempty"`
}

func idle() Progress {
	return Progress{Status: StatusIdle, StepName: "Ready"}
}

// Tracker owns the progress of the single in-flight generate request.
// Updates are tagged with the generation returned by Begin, so a late
// reset from an older request cannot clobber a newer one.
type Tracker struct {
	mu    sync.Mutex
	state Progress
	gen   uint64
	busy  bool
}

// NewTracker returns an idle Tracker.
func NewTracker() *Tracker {
	return &Tracker{state: idle()}
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.state
	p.PartialTrace = slices.Clone(t.state.PartialTrace)
	return p
}

// Begin claims the tracker for a new request. It fails while another
// request is processing.
func (t *Tracker) Begin() (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.busy {
		return 0, false
	}
	t.busy = true
	t.gen++
	t.state = Progress{Status: StatusProcessing}
	return t.gen, true
}

// Step moves request gen to a new pipeline step.
func (t *Tracker) Step(gen uint64, step int, name string, progress float64) {
	t.update(gen, func(p *Progress) {
		p.Status = StatusProcessing
		p.Step = step
		p.StepName = name
		p.Progress = progress
	})
}

// Append records one more replayed point.
func (t *Tracker) Append(gen uint64, watts, progress float64) {
	t.update(gen, func(p *Progress) {
		p.PartialTrace = append(p.PartialTrace, watts)
		p.Progress = progress
	})
}

// Complete marks request gen done and releases the tracker. The completed
// state stays visible until Reset.
func (t *Tracker) Complete(gen uint64, step int, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.state.Status = StatusComplete
	t.state.Step = step
	t.state.StepName = name
	t.state.Progress = 1
	t.busy = false
}

// Reset returns the tracker to idle if gen is still the latest request.
func (t *Tracker) Reset(gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	t.state = idle()
	t.busy = false
}

func (t *Tracker) update(gen uint64, fn func(*Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	fn(&t.state)
}
