package engine

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
)

const latencyLog = "timestamp,run_id,backend,prompt_id,prompt_template,prompt_length_chars,latency_ms,tokens_generated,energy_joules,notes\n" +
	"2025-11-23T23:35:10.000,cpu-a,cpu,sd-001,short_dialogue,42,500.0,12,,\n" +
	"2025-11-23T23:36:00.000,gpu-b,gpu,sd-002,short_dialogue,42,1000.0,,,\n" +
	"2025-11-23T23:40:00.000,gpu-c,gpu,lf-001,long_form,900,2000,,4.0,\n"

const powerLog = "timestamp,backend,power_w,energy_joules,notes\n" +
	"2025-11-23T23:36:00.500,gpu,20,20.0,\n" +
	"2025-11-23T23:50:00.000,cpu,5,1.0,idle\n"

// Local collector clock is UTC-5: 18:35 local is 23:35 UTC.
const cpuTrace = "System Time,Processor Power_0(Watt)\n" +
	"18:35:10:000,10\n" +
	"18:35:10:100,20\n" +
	"18:35:10:200,30\n" +
	"18:35:10:500,99\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.OutputDir = filepath.Join(dir, "out")
	cfg.LatencyFile = writeFile(t, dir, "latency_results.csv", latencyLog)
	cfg.PowerLogFile = writeFile(t, dir, "power_logs.csv", powerLog)
	writeFile(t, dir, "raw_cpu_power_20251123_183500.csv", cpuTrace)
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEnrich(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg)

	runs := p.LoadRuns()
	require.Len(t, runs, 3)
	enriched := p.Enrich(runs, p.LoadSummary())
	require.Len(t, enriched, 3)

	cpu := enriched[0]
	assert.Equal(t, "cpu-a", cpu.Run.RunID)
	assert.Equal(t, OriginRaw, cpu.Origin)
	assert.Equal(t, []float64{10, 20, 30}, cpu.Run.Trace, "sample at the window end is excluded")
	assert.InDelta(t, 6.0, cpu.Run.Energy(), 1e-9)
	assert.Nil(t, cpu.Match)

	matched := enriched[1]
	assert.Equal(t, OriginSynthetic, matched.Origin)
	require.NotNil(t, matched.Match)
	assert.Equal(t, 500*time.Millisecond, matched.Match.Delta)
	assert.Equal(t, 20.0, matched.Run.Energy())
	require.Len(t, matched.Run.Trace, cfg.FallbackPoints)
	for _, w := range matched.Run.Trace {
		assert.InDelta(t, 20.0, w, 1e-9)
	}

	declared := enriched[2]
	assert.Nil(t, declared.Match)
	assert.Equal(t, 4.0, declared.Run.Energy())
	for _, w := range declared.Run.Trace {
		assert.InDelta(t, 2.0, w, 1e-9)
	}

	assert.Nil(t, runs[1].EnergyJoules, "loaded runs are not modified")
}

func TestExport(t *testing.T) {
	cfg := testConfig(t)
	rawBefore := testutil.ToFloat64(metrics.RunsExported.WithLabelValues("cpu", OriginRaw))

	require.NoError(t, Export(cfg))

	data, err := os.ReadFile(cfg.OutputPath(cfg.ExportFile))
	require.NoError(t, err)
	var doc model.ExportDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Runs, 3)
	ids := []string{doc.Runs[0].RunID, doc.Runs[1].RunID, doc.Runs[2].RunID}
	assert.Equal(t, []string{"cpu-a", "gpu-b", "gpu-c"}, ids)
	for _, r := range doc.Runs {
		assert.Len(t, r.PowerTrace, cfg.TracePoints)
	}
	assert.Equal(t, 10.0, doc.Runs[0].PowerTrace[0])
	assert.Equal(t, 30.0, doc.Runs[0].PowerTrace[cfg.TracePoints-1])
	assert.Equal(t, 20.0, doc.Runs[1].EnergyJoules)
	assert.Equal(t, 2000.0, doc.Runs[2].LatencyMs)

	assert.Equal(t, rawBefore+1, testutil.ToFloat64(metrics.RunsExported.WithLabelValues("cpu", OriginRaw)))
	_, err = os.Stat(cfg.OutputPath(cfg.ExportFile) + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestExportWithoutLogsWritesEmptyDocument(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "missing")
	cfg.OutputDir = dir
	cfg.LatencyFile = filepath.Join(dir, "missing.csv")
	cfg.PowerLogFile = filepath.Join(dir, "missing_power.csv")

	require.NoError(t, Export(cfg))

	data, err := os.ReadFile(cfg.OutputPath(cfg.ExportFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"runs": []}`, string(data))
}

func TestCorrelateReport(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, CorrelateReport(cfg))

	rows := readCSV(t, cfg.OutputPath(cfg.ReportFile))
	require.Len(t, rows, 5)
	assert.Equal(t, ReportHeader, rows[0])

	assert.Equal(t, "cpu-a", rows[1][0])
	assert.Equal(t, "", rows[1][6], "no cpu row within tolerance")

	assert.Equal(t, "gpu-b", rows[2][0])
	assert.Equal(t, "20.0000", rows[2][5])
	assert.Equal(t, "2025-11-23T23:36:00.500Z", rows[2][6])
	assert.Equal(t, "0.500", rows[2][7])

	assert.Equal(t, "4.0000", rows[3][5], "declared energy survives a miss")

	assert.Equal(t, []string{
		"power-only-001", "cpu", "", "2025-11-23T23:50:00.000Z", "0.00",
		"1.0000", "2025-11-23T23:50:00.000Z", "", "true",
	}, rows[4])
}

func TestSummarize(t *testing.T) {
	at := time.Date(2025, 11, 23, 23, 35, 10, 0, time.UTC)
	mk := func(id string, b model.Backend, tmpl string, latencyMs, energy float64) model.RunRecord {
		r, err := model.NewRunRecord(id, b, "p", at, latencyMs)
		require.NoError(t, err)
		r.PromptTemplate = tmpl
		r.SetEnergy(energy)
		return r
	}
	runs := []model.RunRecord{
		mk("gpu-l11", model.BackendGPU, "short", 1000, 20), // 20
		mk("cpu-t4", model.BackendCPU, "short", 500, 6),    // 3
		mk("cpu-t4", model.BackendCPU, "long", 2000, 4),    // 8
		{RunID: "power-only-001", Backend: model.BackendCPU, PowerOnly: true},
	}

	byTemplate, byRun := Summarize(runs)

	require.Len(t, byTemplate, 3)
	assert.Equal(t, model.BackendCPU, byTemplate[0].Backend)
	assert.Equal(t, "long", byTemplate[0].PromptTemplate)
	assert.InDelta(t, 8.0, byTemplate[0].MeanEDP, 1e-9)
	assert.Equal(t, "short", byTemplate[1].PromptTemplate)
	assert.Equal(t, model.BackendGPU, byTemplate[2].Backend)

	require.Len(t, byRun, 2)
	assert.Equal(t, "cpu-t4", byRun[0].RunID)
	assert.Equal(t, 2, byRun[0].Runs)
	assert.InDelta(t, 5.5, byRun[0].MeanEDP, 1e-9)
	assert.InDelta(t, 1250.0, byRun[0].MeanLatencyMs, 1e-9)
	assert.Equal(t, "gpu-l11", byRun[1].RunID)
}

func TestStats(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, Stats(cfg))

	rows := readCSV(t, cfg.OutputPath(cfg.StatsFile))
	require.Len(t, rows, 1+3+3)
	assert.Equal(t, StatsHeader, rows[0])

	assert.Equal(t, []string{"template", "cpu", "short_dialogue"}, rows[1][:3])
	assert.Equal(t, []string{"template", "gpu", "long_form"}, rows[2][:3])

	// EDP: cpu-a 6 J * 0.5 s, gpu-c 4 J * 2 s, gpu-b 20 J * 1 s
	runOrder := []string{rows[4][3], rows[5][3], rows[6][3]}
	assert.Equal(t, []string{"cpu-a", "gpu-c", "gpu-b"}, runOrder)
	assert.Equal(t, "3.000000", rows[4][7])
}

func TestSync(t *testing.T) {
	cfg := testConfig(t)
	cpuPath := filepath.Join(cfg.DataDir, "raw_cpu_power_20251123_183500.csv")
	gpuPath := writeFile(t, cfg.DataDir, "raw_gpu_power_20251123_183510.csv",
		"timestamp,power_w\n2025-11-23T23:35:10.000,50\n")

	require.NoError(t, Sync(cfg, cpuPath, gpuPath))

	rows := readCSV(t, cfg.OutputPath(cfg.SyncFile))
	assert.Equal(t, [][]string{
		SyncHeader,
		{"2025-11-23T23:35:10.000Z", "10.000", "50.000"},
		{"2025-11-23T23:35:10.200Z", "30.000", "50.000"},
		{"2025-11-23T23:35:10.400Z", "99.000", ""},
	}, rows)
}

func TestSyncRejectsUnknownFileName(t *testing.T) {
	cfg := testConfig(t)
	bad := writeFile(t, cfg.DataDir, "cpu.csv", cpuTrace)

	err := Sync(cfg, bad, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cpu trace")
}

func TestExportSkipsNonFiniteReadings(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, cfg.DataDir, "latency_results.csv", latencyLog+
		"2025-11-23T23:45:00.000,gpu-d,gpu,lf-002,long_form,900,2000,,nan,\n")
	writeFile(t, cfg.DataDir, "raw_gpu_power_20251123_183600.csv",
		"timestamp,power_w\n2025-11-23T23:36:00.100,NaN\n2025-11-23T23:36:00.200,40\n")

	require.NoError(t, Export(cfg))

	data, err := os.ReadFile(cfg.OutputPath(cfg.ExportFile))
	require.NoError(t, err)
	var doc model.ExportDocument
	require.NoError(t, json.Unmarshal(data, &doc))

	require.Len(t, doc.Runs, 3, "row with a NaN energy is skipped")
	assert.Equal(t, "gpu-b", doc.Runs[1].RunID)
	assert.InDelta(t, 4.0, doc.Runs[1].EnergyJoules, 1e-9)
	assert.Equal(t, 40.0, doc.Runs[1].PowerTrace[0])
}

type failingWriter struct {
	rows     int
	closeErr error
	closed   bool
}

func (w *failingWriter) Write([]string) error {
	w.rows++
	return nil
}

func (w *failingWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestFinishCSVReportsCloseError(t *testing.T) {
	w := &failingWriter{closeErr: errors.New("disk full")}
	err := finishCSV(w, "report.csv", [][]string{{"a"}, {"b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 2, w.rows)
	assert.True(t, w.closed)

	require.NoError(t, finishCSV(&failingWriter{}, "report.csv", nil))
}
