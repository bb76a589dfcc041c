/*
PURPOSE:
  High-level runner that orchestrates the batch pipelines.
  Loads job and power logs, attributes energy and a trace to every run,
  and writes the export document.

REQUIREMENTS:
  User-specified:
  - Export every run with a canonical trace for the visualization client.
  - Never abort the batch because of one bad row or file.

  Implementation-discovered:
  - Read everything first, then process to completion; nothing is written
    until the document is complete.
  - Runs without samples in their window fall back to the power summary
    log, then to a synthetic flat line.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/logs, internal/trace, internal/correlate, internal/output

ERROR HANDLING:
  - Logs missing/invalid inputs and continues with empty sets (resilience).
  - Only output-file failures are returned.

IMPLEMENTATION RULES:
  - Load runs -> discover trace files -> extract per run -> correlate the rest.
  - Keep run order from the job log.

USAGE:
  engine.Export(cfg)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/report.go
  - internal/engine/sync.go

MAINTENANCE:
  - Update iteration logic if parallelism is introduced.
*/

package engine

import (
	"fmt"
	"os"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/correlate"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
	"github.com/daryltucker/forest-energy/internal/trace"
)

// Trace origins recorded on enriched runs.
const (
	OriginRaw       = "raw"
	OriginSynthetic = "synthetic"
)

// Pipeline holds what the batch commands share: the config, the timestamp
// normalizer and an extractor caching parsed trace files.
type Pipeline struct {
	Config     *config.Config
	Normalizer clock.Normalizer
	Extractor  *trace.Extractor
}

// New creates a Pipeline for cfg.
func New(cfg *config.Config) *Pipeline {
	n := clock.New(cfg.LocalOffset)
	return &Pipeline{
		Config:     cfg,
		Normalizer: n,
		Extractor: trace.NewExtractor(func(f logs.SensorLogFile) ([]model.PowerSample, error) {
			return logs.ReadSensorFile(f, n)
		}),
	}
}

// Enriched is a run after energy attribution.
type Enriched struct {
	Run model.RunRecord
	// Origin is OriginRaw when Run.Trace came from sensor logs.
	Origin string
	// Match is set when the fallback correlator paired the run.
	Match *correlate.Pair
}

// LoadRuns reads the job log; a missing or invalid log yields no runs.
func (p *Pipeline) LoadRuns() []model.RunRecord {
	runs, err := logs.LoadRuns(p.Config.LatencyFile, p.Normalizer)
	if err != nil {
		skipFile("Job log unavailable", p.Config.LatencyFile, err)
		return nil
	}
	output.Logger.Info("Loaded runs", "file", p.Config.LatencyFile, "count", len(runs))
	return runs
}

// LoadSummary reads the standalone power log; missing means empty.
func (p *Pipeline) LoadSummary() []model.SummarySample {
	samples, err := logs.LoadSummary(p.Config.PowerLogFile, p.Normalizer)
	if err != nil {
		skipFile("Power log unavailable", p.Config.PowerLogFile, err)
		return nil
	}
	output.Logger.Info("Loaded power rows", "file", p.Config.PowerLogFile, "count", len(samples))
	return samples
}

// Discover lists the trace files of a backend; a missing directory is empty.
func (p *Pipeline) Discover(backend model.Backend) []logs.SensorLogFile {
	files, err := logs.Discover(p.Config.DataDir, backend, p.Normalizer)
	if err != nil {
		skipFile("Trace directory unavailable", p.Config.DataDir, err)
		return nil
	}
	return files
}

// Enrich attributes a trace and energy to every run. Runs whose window
// yields samples keep that raw trace (and, without declared energy, get
// the integrated value). The rest go through the fallback correlator
// against summary and receive a flat synthetic trace.
func (p *Pipeline) Enrich(runs []model.RunRecord, summary []model.SummarySample) []Enriched {
	files := map[model.Backend][]logs.SensorLogFile{
		model.BackendCPU: p.Discover(model.BackendCPU),
		model.BackendGPU: p.Discover(model.BackendGPU),
	}

	out := make([]Enriched, len(runs))
	var pending []int
	for i, run := range runs {
		raw := p.Extractor.Extract(trace.NewWindow(run), run.Backend, files[run.Backend])
		if len(raw) == 0 {
			pending = append(pending, i)
			out[i] = Enriched{Run: run, Origin: OriginSynthetic}
			continue
		}

		run.Trace = raw
		if run.EnergyJoules == nil {
			run.SetEnergy(trace.Integrate(raw, p.Config.SampleInterval))
		}
		out[i] = Enriched{Run: run, Origin: OriginRaw}
	}

	if len(pending) == 0 {
		return out
	}

	missing := make([]model.RunRecord, len(pending))
	for j, i := range pending {
		missing[j] = runs[i]
	}
	res := correlate.New(p.Config.Tolerance).Correlate(missing, summary)
	for j, i := range pending {
		pair := res.Pairs[j]
		run := pair.Run
		run.Trace = trace.Flat(run.Energy(), run.LatencyMs, p.Config.FallbackPoints)
		out[i].Run = run
		if pair.Sample != nil {
			out[i].Match = &pair
		}
		output.Logger.Warn("No power trace found, using synthetic trace",
			"run_id", run.RunID, "backend", run.Backend, "matched_power_row", pair.Sample != nil)
	}
	if len(res.Unmatched) > 0 {
		output.Logger.Info("Power rows left unmatched", "count", len(res.Unmatched))
	}
	return out
}

// BuildExport turns enriched runs into the visualization document.
func (p *Pipeline) BuildExport(enriched []Enriched) model.ExportDocument {
	doc := model.ExportDocument{Runs: make([]model.ExportRun, 0, len(enriched))}
	for _, e := range enriched {
		doc.Runs = append(doc.Runs, model.ExportRun{
			RunID:        e.Run.RunID,
			Backend:      e.Run.Backend,
			LatencyMs:    e.Run.LatencyMs,
			EnergyJoules: e.Run.Energy(),
			PowerTrace:   trace.Resample(e.Run.Trace, p.Config.TracePoints),
		})
		metrics.RunsExported.WithLabelValues(string(e.Run.Backend), e.Origin).Inc()
	}
	return doc
}

// Export executes the export pipeline and writes the document.
func Export(cfg *config.Config) error {
	p := New(cfg)

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}

	runs := p.LoadRuns()
	enriched := p.Enrich(runs, p.LoadSummary())
	doc := p.BuildExport(enriched)

	path := cfg.OutputPath(cfg.ExportFile)
	w, err := output.NewJSONWriter(path)
	if err != nil {
		return fmt.Errorf("failed to init JSON writer at %s: %w", path, err)
	}
	if err := w.Write(doc); err != nil {
		w.Close()
		return fmt.Errorf("failed to write export document: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}

	output.Logger.Info("Export complete", "file", path, "runs", len(doc.Runs))
	return nil
}

func skipFile(msg, path string, err error) {
	reason := "read"
	if logs.IsMissing(err) {
		reason = "missing"
	} else if isSchemaError(err) {
		reason = "schema"
	}
	metrics.FilesSkipped.WithLabelValues(reason).Inc()
	output.Logger.Warn(msg, "path", path, "reason", reason, "error", err)
}
