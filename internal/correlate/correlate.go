// Package correlate matches runs to standalone power-log rows by start time
// when no trace can be cut out of the raw sensor logs.
//
// The matching is a single greedy pass in run order: each run takes the
// closest unconsumed row of its backend within the tolerance. It is not a
// minimum-cost assignment, and with dense rows an earlier run can take a
// row a later run would have matched better.
package correlate

import (
	"fmt"
	"time"

	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
)

// DefaultTolerance is the largest start-time delta accepted for a match.
const DefaultTolerance = 10 * time.Second

// ToleranceMiss reports a run with no row within tolerance.
type ToleranceMiss struct {
	RunID     string
	Backend   model.Backend
	Tolerance time.Duration
}

func (e *ToleranceMiss) Error() string {
	return fmt.Sprintf("run %s (%s): no power row within %s", e.RunID, e.Backend, e.Tolerance)
}

// Pair is a run with the row it was matched to, if any. Run is a copy of
// the input enriched with the matched energy.
type Pair struct {
	Run model.RunRecord
	// Sample is nil when nothing matched; Miss then holds the reason.
	Sample      *model.SummarySample
	SampleIndex int
	Delta       time.Duration
	Miss        error
}

// Result holds one Pair per input run, in input order, and the rows no run
// consumed.
type Result struct {
	Pairs     []Pair
	Unmatched []model.SummarySample
}

// Correlator runs the greedy fallback match.
type Correlator struct {
	Tolerance time.Duration
}

// New returns a Correlator; a non-positive tolerance selects the default.
func New(tolerance time.Duration) Correlator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Correlator{Tolerance: tolerance}
}

// Correlate pairs each run with the nearest unconsumed row of the same
// backend whose delta is below the tolerance. Ties go to the lower row
// index. A matched run takes the row's energy; an unmatched run keeps its
// declared energy. Neither input slice is modified.
func (c Correlator) Correlate(runs []model.RunRecord, samples []model.SummarySample) Result {
	consumed := make([]bool, len(samples))
	res := Result{Pairs: make([]Pair, 0, len(runs))}

	for _, run := range runs {
		best := -1
		var bestDelta time.Duration
		for i, s := range samples {
			if consumed[i] || s.Backend != run.Backend {
				continue
			}
			d := absDuration(s.RecordedAt.Sub(run.StartedAt))
			if d >= c.Tolerance {
				continue
			}
			if best < 0 || d < bestDelta {
				best, bestDelta = i, d
			}
		}

		p := Pair{Run: run, SampleIndex: -1}
		if best < 0 {
			p.Miss = &ToleranceMiss{RunID: run.RunID, Backend: run.Backend, Tolerance: c.Tolerance}
			metrics.CorrelationOutcomes.WithLabelValues(string(run.Backend), "miss").Inc()
			output.Logger.Debug("No power row within tolerance", "run_id", run.RunID, "backend", run.Backend, "tolerance", c.Tolerance)
		} else {
			consumed[best] = true
			s := samples[best]
			p.Sample = &s
			p.SampleIndex = best
			p.Delta = bestDelta
			p.Run.SetEnergy(s.EnergyJoules)
			metrics.CorrelationOutcomes.WithLabelValues(string(run.Backend), "matched").Inc()
		}
		res.Pairs = append(res.Pairs, p)
	}

	for i, s := range samples {
		if !consumed[i] {
			res.Unmatched = append(res.Unmatched, s)
			metrics.CorrelationOutcomes.WithLabelValues(string(s.Backend), "power_only").Inc()
		}
	}
	return res
}

// Records returns the enriched runs followed by one power-only record per
// unmatched row. Power-only records have zero latency and carry the row's
// energy.
func (r Result) Records() []model.RunRecord {
	out := make([]model.RunRecord, 0, len(r.Pairs)+len(r.Unmatched))
	for _, p := range r.Pairs {
		out = append(out, p.Run)
	}
	for i, s := range r.Unmatched {
		rec := model.RunRecord{
			RunID:     fmt.Sprintf("power-only-%03d", i+1),
			Backend:   s.Backend,
			StartedAt: s.RecordedAt,
			Notes:     s.Notes,
			PowerOnly: true,
		}
		rec.SetEnergy(s.EnergyJoules)
		out = append(out, rec)
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
