package logs

import (
	"fmt"
	"math"
	"strconv"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/model"
)

// Job log columns.
const (
	ColTimestamp       = "timestamp"
	ColRunID           = "run_id"
	ColBackend         = "backend"
	ColPromptID        = "prompt_id"
	ColPromptTemplate  = "prompt_template"
	ColPromptLength    = "prompt_length_chars"
	ColLatencyMs       = "latency_ms"
	ColTokensGenerated = "tokens_generated"
	ColEnergyJoules    = "energy_joules"
	ColNotes           = "notes"
)

// LoadRuns reads completed jobs from the latency log. Timestamps are UTC
// (the job logger writes naive utcnow values). Rows that fail to parse are
// skipped; older logs without a run_id column get one derived from the row.
func LoadRuns(path string, n clock.Normalizer) ([]model.RunRecord, error) {
	t, err := openTable(path, "latency")
	if err != nil {
		return nil, err
	}
	if err := t.require(ColTimestamp, ColBackend, ColLatencyMs); err != nil {
		return nil, err
	}

	var runs []model.RunRecord
	for {
		rec, ok := t.next()
		if !ok {
			break
		}

		startedAt, err := n.Normalize(t.get(rec, ColTimestamp), clock.ISO)
		if err != nil {
			t.skip("timestamp", err)
			continue
		}
		backend, err := model.ParseBackend(t.get(rec, ColBackend))
		if err != nil {
			t.skip("backend", err)
			continue
		}
		latency, err := optionalFloat(t.get(rec, ColLatencyMs))
		if err != nil {
			t.skip("latency_ms", err)
			continue
		}
		runID := t.get(rec, ColRunID)
		if runID == "" {
			runID = fmt.Sprintf("%s-row%d", backend, t.line)
		}

		run, err := model.NewRunRecord(runID, backend, t.get(rec, ColPromptID), startedAt, latency)
		if err != nil {
			t.skip("record", err)
			continue
		}
		run.PromptTemplate = t.get(rec, ColPromptTemplate)
		run.Notes = t.get(rec, ColNotes)

		if raw := t.get(rec, ColTokensGenerated); raw != "" {
			// Older runners wrote tokens as floats ("42.0").
			if v, err := parseFinite(raw); err == nil && v >= 0 {
				run.TokensGenerated = int(v)
			}
		}
		if raw := t.get(rec, ColEnergyJoules); raw != "" {
			v, err := parseFinite(raw)
			if err != nil || v < 0 {
				t.skip("energy_joules", fmt.Errorf("invalid energy %q", raw))
				continue
			}
			run.SetEnergy(v)
		}

		runs = append(runs, run)
	}
	return runs, nil
}

func optionalFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return parseFinite(raw)
}

// parseFinite is strconv.ParseFloat rejecting NaN and infinities, which
// no log value may carry and which cannot be encoded in the export.
func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite value %q", raw)
	}
	return v, nil
}
