package trace

import (
	"slices"
	"time"
)

// DefaultPoints is the length of the canonical trace shown by the client.
const DefaultPoints = 100

// Resample returns a trace of exactly n points by linear interpolation over
// the source index. An empty trace resamples to n zeros.
func Resample(trace []float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if len(trace) == 0 {
		return make([]float64, n)
	}
	if len(trace) == n {
		return slices.Clone(trace)
	}

	src := len(trace)
	out := make([]float64, n)
	for i := range out {
		var x float64
		if n > 1 {
			x = float64(i) * float64(src-1) / float64(n-1)
		}
		idx := int(x)
		if idx >= src-1 {
			out[i] = trace[src-1]
			continue
		}
		f := x - float64(idx)
		out[i] = trace[idx]*(1-f) + trace[idx+1]*f
	}
	return out
}

// Integrate estimates energy in joules with the rectangular rule: every
// sample is assumed to hold for one interval.
func Integrate(trace []float64, interval time.Duration) float64 {
	var sum float64
	for _, w := range trace {
		sum += w
	}
	return sum * interval.Seconds()
}

// Flat is the synthetic trace used when no samples cover a run: the mean
// power implied by the declared energy and latency, or zeros when either
// is missing.
func Flat(energyJoules, latencyMs float64, points int) []float64 {
	if points <= 0 {
		return []float64{}
	}
	out := make([]float64, points)
	if energyJoules > 0 && latencyMs > 0 {
		avg := energyJoules / (latencyMs / 1000.0)
		for i := range out {
			out[i] = avg
		}
	}
	return out
}
