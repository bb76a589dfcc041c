package trace

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
)

// Loader reads the samples of one sensor log.
type Loader func(logs.SensorLogFile) ([]model.PowerSample, error)

type span struct {
	samples     []model.PowerSample
	first, last time.Time
}

// Extractor pulls the samples inside a run window out of a set of sensor
// logs. Each file is read once and kept for later windows; it is safe for
// concurrent use.
type Extractor struct {
	load Loader

	mu    sync.Mutex
	files map[string]span
}

// NewExtractor returns an Extractor reading files with load.
func NewExtractor(load Loader) *Extractor {
	return &Extractor{load: load, files: make(map[string]span)}
}

// Extract returns the power readings of backend that fall in w, ordered by
// recording time. Files are not assumed to be ordered relative to each
// other. No files, unreadable files or no overlap all give an empty trace.
func (e *Extractor) Extract(w Window, backend model.Backend, files []logs.SensorLogFile) []float64 {
	samples := e.Samples(w, backend, files)
	if len(samples) == 0 {
		return nil
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.PowerW
	}
	return out
}

// Samples is Extract returning the matched samples themselves.
func (e *Extractor) Samples(w Window, backend model.Backend, files []logs.SensorLogFile) []model.PowerSample {
	if w.Empty() {
		return nil
	}

	var matched []model.PowerSample
	for _, f := range files {
		if f.Backend != backend {
			continue
		}
		sp, ok := e.span(f)
		if !ok || !w.Overlaps(sp.first, sp.last) {
			continue
		}
		for _, s := range sp.samples {
			if s.Backend == backend && w.Contains(s.RecordedAt) {
				matched = append(matched, s)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RecordedAt.Before(matched[j].RecordedAt)
	})
	return matched
}

func (e *Extractor) span(f logs.SensorLogFile) (span, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sp, ok := e.files[f.Path]; ok {
		return sp, len(sp.samples) > 0
	}

	samples, err := e.load(f)
	if err != nil {
		var schemaErr *logs.SchemaError
		reason := "read"
		if logs.IsMissing(err) {
			reason = "missing"
		} else if errors.As(err, &schemaErr) {
			reason = "schema"
		}
		metrics.FilesSkipped.WithLabelValues(reason).Inc()
		output.Logger.Warn("Skipping trace file", "file", f.Path, "reason", reason, "error", err)
	}

	var sp span
	sp.samples = samples
	for i, s := range samples {
		if i == 0 || s.RecordedAt.Before(sp.first) {
			sp.first = s.RecordedAt
		}
		if i == 0 || s.RecordedAt.After(sp.last) {
			sp.last = s.RecordedAt
		}
	}
	e.files[f.Path] = sp
	return sp, len(sp.samples) > 0
}
