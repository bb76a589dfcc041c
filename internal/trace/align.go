package trace

import (
	"sort"
	"time"

	"github.com/daryltucker/forest-energy/internal/model"
)

// AlignedPoint is one grid instant of a CPU/GPU timeline. A nil reading
// means no sample lay within one step of the instant.
type AlignedPoint struct {
	At  time.Time
	CPU *float64
	GPU *float64
}

// Align places two sample streams on a shared grid of the given step,
// spanning the earliest to the latest sample of either stream. Each grid
// instant takes the nearest sample of each stream within one step.
func Align(cpu, gpu []model.PowerSample, step time.Duration) []AlignedPoint {
	if step <= 0 || (len(cpu) == 0 && len(gpu) == 0) {
		return nil
	}
	cpu = sortedCopy(cpu)
	gpu = sortedCopy(gpu)

	start, end := bounds(cpu, gpu)
	var out []AlignedPoint
	for at := start; !at.After(end); at = at.Add(step) {
		out = append(out, AlignedPoint{
			At:  at,
			CPU: nearest(cpu, at, step),
			GPU: nearest(gpu, at, step),
		})
	}
	return out
}

func sortedCopy(in []model.PowerSample) []model.PowerSample {
	out := make([]model.PowerSample, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out
}

func bounds(a, b []model.PowerSample) (time.Time, time.Time) {
	var start, end time.Time
	for _, s := range [][]model.PowerSample{a, b} {
		if len(s) == 0 {
			continue
		}
		if start.IsZero() || s[0].RecordedAt.Before(start) {
			start = s[0].RecordedAt
		}
		if end.IsZero() || s[len(s)-1].RecordedAt.After(end) {
			end = s[len(s)-1].RecordedAt
		}
	}
	return start, end
}

// nearest returns the reading closest to at, if within tolerance. The
// earlier sample wins a tie.
func nearest(samples []model.PowerSample, at time.Time, tolerance time.Duration) *float64 {
	i := sort.Search(len(samples), func(i int) bool { return !samples[i].RecordedAt.Before(at) })

	best := -1
	var bestDelta time.Duration
	for _, j := range []int{i - 1, i} {
		if j < 0 || j >= len(samples) {
			continue
		}
		d := samples[j].RecordedAt.Sub(at)
		if d < 0 {
			d = -d
		}
		if d > tolerance {
			continue
		}
		if best < 0 || d < bestDelta {
			best, bestDelta = j, d
		}
	}
	if best < 0 {
		return nil
	}
	v := samples[best].PowerW
	return &v
}
