package engine

import (
	"fmt"
	"path/filepath"

	"github.com/daryltucker/forest-energy/internal/config"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
	"github.com/daryltucker/forest-energy/internal/trace"
)

// SyncHeader is the column layout of the aligned timeline.
var SyncHeader = []string{"timestamp", "cpu_power_w", "gpu_power_w"}

// SyncRows renders aligned points; a missing reading is an empty cell.
func SyncRows(points []trace.AlignedPoint) [][]string {
	rows := make([][]string, 0, len(points))
	for _, pt := range points {
		rows = append(rows, []string{output.FormatTime(pt.At), reading(pt.CPU), reading(pt.GPU)})
	}
	return rows
}

func reading(v *float64) string {
	if v == nil {
		return ""
	}
	return output.FormatFloat(*v, 3)
}

// Sync aligns one CPU and one GPU trace file on a grid of cfg.SyncStep and
// writes the timeline. Unlike the batch pipelines, an unreadable input is
// an error: there is nothing to align without both files.
func Sync(cfg *config.Config, cpuPath, gpuPath string) error {
	p := New(cfg)

	cpu, err := p.readTrace(cpuPath, model.BackendCPU)
	if err != nil {
		return err
	}
	gpu, err := p.readTrace(gpuPath, model.BackendGPU)
	if err != nil {
		return err
	}

	points := trace.Align(cpu, gpu, cfg.SyncStep)
	path := cfg.OutputPath(cfg.SyncFile)
	if err := writeCSV(cfg, path, SyncHeader, SyncRows(points)); err != nil {
		return err
	}
	output.Logger.Info("Sync complete", "file", path,
		"cpu_samples", len(cpu), "gpu_samples", len(gpu), "points", len(points), "step", cfg.SyncStep)
	return nil
}

func (p *Pipeline) readTrace(path string, backend model.Backend) ([]model.PowerSample, error) {
	f, err := logs.ParseFileName(filepath.Base(path), backend, p.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("failed to identify %s trace: %w", backend, err)
	}
	f.Path = path
	samples, err := logs.ReadSensorFile(f, p.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s trace: %w", backend, err)
	}
	return samples, nil
}
