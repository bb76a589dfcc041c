/*
PURPOSE:
  Defines the core data structures used throughout Forest Energy.
  These models represent completed benchmark jobs, power readings and
  the export document handed to the visualization client.

REQUIREMENTS:
  User-specified:
  - Record run id, backend, prompt, start time, latency and energy.
  - Keep the raw power trace alongside the job.

  Implementation-discovered:
  - start/latency/run id must not change once the record exists.
  - Energy is optional in the job log; a nil pointer means "not declared".
  - Need JSON tags for the export document.

ARCHITECTURE INTEGRATION:
  - Used by: internal/logs, internal/trace, internal/correlate, internal/engine, internal/output, internal/demo
  - Shared across boundaries.

ERROR HANDLING:
  - NewRunRecord validates and returns an explicit error.

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time and time.Duration for high precision.

USAGE:
  rec, err := model.NewRunRecord("cpu-t4", model.BackendCPU, "sd-001", start, 812.5)

SELF-HEALING INSTRUCTIONS:
  - If new job columns are needed, add the field and update internal/logs/latency.go.

RELATED FILES:
  - internal/logs/latency.go
  - internal/output/json.go

MAINTENANCE:
  - Update when the job log schema changes.
*/

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend identifies the execution backend a job ran on.
type Backend string

const (
	BackendCPU Backend = "cpu"
	BackendGPU Backend = "gpu"
)

// ParseBackend maps a log value onto a known backend.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendCPU, BackendGPU:
		return b, nil
	default:
		return "", fmt.Errorf("unknown backend %q", s)
	}
}

// RunRecord is one completed benchmark job. RunID, StartedAt and LatencyMs
// are fixed at construction; Trace and EnergyJoules are enriched later.
type RunRecord struct {
	RunID           string
	Backend         Backend
	PromptID        string
	PromptTemplate  string
	StartedAt       time.Time
	LatencyMs       float64
	TokensGenerated int
	Notes           string

	EnergyJoules *float64
	Trace        []float64

	// PowerOnly marks synthetic records built from unmatched power rows.
	PowerOnly bool
}

// NewRunRecord validates the immutable part of a job record.
func NewRunRecord(runID string, backend Backend, promptID string, startedAt time.Time, latencyMs float64) (RunRecord, error) {
	if runID == "" {
		return RunRecord{}, errors.New("run id is required")
	}
	if backend != BackendCPU && backend != BackendGPU {
		return RunRecord{}, fmt.Errorf("unknown backend %q", backend)
	}
	if startedAt.IsZero() {
		return RunRecord{}, errors.New("start time is required")
	}
	if latencyMs < 0 {
		return RunRecord{}, fmt.Errorf("latency must be >= 0, got %v", latencyMs)
	}
	return RunRecord{
		RunID:     runID,
		Backend:   backend,
		PromptID:  promptID,
		StartedAt: startedAt,
		LatencyMs: latencyMs,
	}, nil
}

// Latency returns the job latency as a duration.
func (r RunRecord) Latency() time.Duration {
	return time.Duration(r.LatencyMs * float64(time.Millisecond))
}

// Energy returns the declared energy, or 0 when none is set.
func (r RunRecord) Energy() float64 {
	if r.EnergyJoules == nil {
		return 0
	}
	return *r.EnergyJoules
}

// SetEnergy records an energy value on the run.
func (r *RunRecord) SetEnergy(joules float64) {
	r.EnergyJoules = &joules
}

// EDP returns the energy-delay product in J*s.
func (r RunRecord) EDP() float64 {
	return r.Energy() * (r.LatencyMs / 1000.0)
}

// PowerSample is a single sensor reading.
type PowerSample struct {
	RecordedAt time.Time `json:"recorded_at"`
	Backend    Backend   `json:"backend"`
	PowerW     float64   `json:"power_w"`
}

// SummarySample is a row of the standalone power log: a reading with the
// energy attributed to it by the collector.
type SummarySample struct {
	PowerSample
	EnergyJoules float64 `json:"energy_joules"`
	Notes        string  `json:"notes,omitempty"`
}

// ExportRun is one entry of the visualization document.
type ExportRun struct {
	RunID        string    `json:"run_id"`
	Backend      Backend   `json:"backend"`
	LatencyMs    float64   `json:"latency_ms"`
	EnergyJoules float64   `json:"energy_joules"`
	PowerTrace   []float64 `json:"power_trace"`
	Text         string    `json:"text,omitempty"`
}

// ExportDocument is the JSON document consumed by the visualization client.
type ExportDocument struct {
	Runs []ExportRun `json:"runs"`
}
