package engine

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/correlate"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
)

// ReportHeader is the column layout of the correlation report.
var ReportHeader = []string{
	"run_id", "backend", "prompt_id", "started_at", "latency_ms",
	"energy_joules", "sample_at", "delta_s", "power_only",
}

// ReportRows renders a correlation result, power-only records last.
func ReportRows(res correlate.Result) [][]string {
	rows := make([][]string, 0, len(res.Pairs)+len(res.Unmatched))
	for _, p := range res.Pairs {
		var sampleAt, delta string
		if p.Sample != nil {
			sampleAt = output.FormatTime(p.Sample.RecordedAt)
			delta = output.FormatFloat(p.Delta.Seconds(), 3)
		}
		rows = append(rows, reportRow(p.Run, sampleAt, delta))
	}
	for _, rec := range res.Records()[len(res.Pairs):] {
		rows = append(rows, reportRow(rec, output.FormatTime(rec.StartedAt), ""))
	}
	return rows
}

func reportRow(r model.RunRecord, sampleAt, delta string) []string {
	energy := ""
	if r.EnergyJoules != nil {
		energy = output.FormatFloat(*r.EnergyJoules, 4)
	}
	return []string{
		r.RunID,
		string(r.Backend),
		r.PromptID,
		output.FormatTime(r.StartedAt),
		output.FormatFloat(r.LatencyMs, 2),
		energy,
		sampleAt,
		delta,
		strconv.FormatBool(r.PowerOnly),
	}
}

// CorrelateReport matches every run of the job log against the power log
// and writes the report CSV.
func CorrelateReport(cfg *config.Config) error {
	p := New(cfg)
	runs := p.LoadRuns()
	summary := p.LoadSummary()

	res := correlate.New(cfg.Tolerance).Correlate(runs, summary)
	matched := 0
	for _, pair := range res.Pairs {
		if pair.Sample != nil {
			matched++
		}
	}

	path := cfg.OutputPath(cfg.ReportFile)
	if err := writeCSV(cfg, path, ReportHeader, ReportRows(res)); err != nil {
		return err
	}
	output.Logger.Info("Correlation complete",
		"file", path, "runs", len(runs), "matched", matched, "power_only", len(res.Unmatched))
	return nil
}

// EDPGroup is an average energy-delay product over a set of runs.
type EDPGroup struct {
	Backend        model.Backend
	PromptTemplate string
	RunID          string
	Runs           int
	MeanEnergy     float64
	MeanLatencyMs  float64
	MeanEDP        float64
}

type edpKey struct {
	backend model.Backend
	key     string
}

type edpAcc struct {
	n                    int
	energy, latency, edp float64
}

// Summarize averages EDP by (backend, prompt template) and by run id.
// Template groups are ordered by backend then template; run groups by
// ascending EDP, run id breaking ties.
func Summarize(runs []model.RunRecord) (byTemplate, byRun []EDPGroup) {
	tmpl := map[edpKey]*edpAcc{}
	ids := map[edpKey]*edpAcc{}
	add := func(m map[edpKey]*edpAcc, k edpKey, r model.RunRecord) {
		a, ok := m[k]
		if !ok {
			a = &edpAcc{}
			m[k] = a
		}
		a.n++
		a.energy += r.Energy()
		a.latency += r.LatencyMs
		a.edp += r.EDP()
	}
	for _, r := range runs {
		if r.PowerOnly {
			continue
		}
		add(tmpl, edpKey{r.Backend, r.PromptTemplate}, r)
		add(ids, edpKey{r.Backend, r.RunID}, r)
	}

	byTemplate = collect(tmpl, func(g *EDPGroup, k string) { g.PromptTemplate = k })
	sort.Slice(byTemplate, func(i, j int) bool {
		if byTemplate[i].Backend != byTemplate[j].Backend {
			return byTemplate[i].Backend < byTemplate[j].Backend
		}
		return byTemplate[i].PromptTemplate < byTemplate[j].PromptTemplate
	})

	byRun = collect(ids, func(g *EDPGroup, k string) { g.RunID = k })
	sort.Slice(byRun, func(i, j int) bool {
		if byRun[i].MeanEDP != byRun[j].MeanEDP {
			return byRun[i].MeanEDP < byRun[j].MeanEDP
		}
		return byRun[i].RunID < byRun[j].RunID
	})
	return byTemplate, byRun
}

func collect(m map[edpKey]*edpAcc, label func(*EDPGroup, string)) []EDPGroup {
	out := make([]EDPGroup, 0, len(m))
	for k, a := range m {
		n := float64(a.n)
		g := EDPGroup{
			Backend:       k.backend,
			Runs:          a.n,
			MeanEnergy:    a.energy / n,
			MeanLatencyMs: a.latency / n,
			MeanEDP:       a.edp / n,
		}
		label(&g, k.key)
		out = append(out, g)
	}
	return out
}

// StatsHeader is the column layout of the stats summary. group is
// "template" or "run".
var StatsHeader = []string{
	"group", "backend", "prompt_template", "run_id", "runs",
	"mean_energy_joules", "mean_latency_ms", "mean_edp",
}

func statsRows(kind string, groups []EDPGroup) [][]string {
	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			kind,
			string(g.Backend),
			g.PromptTemplate,
			g.RunID,
			strconv.Itoa(g.Runs),
			output.FormatFloat(g.MeanEnergy, 4),
			output.FormatFloat(g.MeanLatencyMs, 2),
			output.FormatFloat(g.MeanEDP, 6),
		})
	}
	return rows
}

// Stats attributes energy to every run the way Export does, then writes
// the EDP summary.
func Stats(cfg *config.Config) error {
	p := New(cfg)
	enriched := p.Enrich(p.LoadRuns(), p.LoadSummary())

	runs := make([]model.RunRecord, len(enriched))
	for i, e := range enriched {
		runs[i] = e.Run
	}
	byTemplate, byRun := Summarize(runs)

	for _, g := range byTemplate {
		output.Logger.Info("EDP by prompt template",
			"backend", g.Backend, "prompt_template", g.PromptTemplate, "runs", g.Runs, "mean_edp", g.MeanEDP)
	}
	if len(byRun) > 0 {
		best := byRun[0]
		output.Logger.Info("Lowest EDP run", "run_id", best.RunID, "backend", best.Backend, "mean_edp", best.MeanEDP)
	}

	rows := append(statsRows("template", byTemplate), statsRows("run", byRun)...)
	path := cfg.OutputPath(cfg.StatsFile)
	if err := writeCSV(cfg, path, StatsHeader, rows); err != nil {
		return err
	}
	output.Logger.Info("Stats complete", "file", path, "runs", len(runs))
	return nil
}

func writeCSV(cfg *config.Config, path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	w, err := output.NewCSVWriter(path, header)
	if err != nil {
		return fmt.Errorf("failed to init CSV writer at %s: %w", path, err)
	}
	return finishCSV(w, path, rows)
}

// rowWriter is the part of output.CSVWriter the report pipelines use.
type rowWriter interface {
	Write(record []string) error
	Close() error
}

// finishCSV writes rows and closes w, reporting a failed close as a failed
// write.
func finishCSV(w rowWriter, path string, rows [][]string) error {
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			w.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", path, err)
	}
	return nil
}

func isSchemaError(err error) bool {
	var se *logs.SchemaError
	return errors.As(err, &se)
}
