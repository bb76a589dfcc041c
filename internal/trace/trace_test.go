package trace

import (
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/logs"
	"github.com/daryltucker/forest-energy/internal/model"
)

var t0 = time.Date(2025, 11, 23, 23, 35, 10, 0, time.UTC)

func TestResampleScenarios(t *testing.T) {
	assert.Equal(t, []float64{10, 15, 20, 25, 30}, Resample([]float64{10, 20, 30}, 5))
	assert.Equal(t, make([]float64, 50), Resample(nil, 50))
	assert.Equal(t, []float64{7}, Resample([]float64{7, 9, 11}, 1))
	assert.Equal(t, []float64{4, 4, 4}, Resample([]float64{4}, 3))
	assert.Empty(t, Resample([]float64{1, 2}, 0))
}

func TestResampleIdentityReturnsCopy(t *testing.T) {
	in := []float64{1, 5, 3}
	out := Resample(in, len(in))
	assert.Equal(t, in, out)

	out[0] = 99
	assert.Equal(t, 1.0, in[0])
}

func TestResampleProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for iter := 0; iter < 200; iter++ {
		src := make([]float64, rng.IntN(40))
		for i := range src {
			src[i] = rng.Float64()*300 - 50
		}
		n := 1 + rng.IntN(150)

		out := Resample(src, n)
		require.Len(t, out, n)
		if len(src) == 0 {
			continue
		}
		lo, hi := slices.Min(src), slices.Max(src)
		for _, v := range out {
			assert.GreaterOrEqual(t, v, lo-1e-9)
			assert.LessOrEqual(t, v, hi+1e-9)
		}
	}
}

func TestIntegrate(t *testing.T) {
	assert.InDelta(t, 39.55, Integrate([]float64{15.0, 80.5, 150.0, 150.0}, 100*time.Millisecond), 1e-9)
	assert.Equal(t, 0.0, Integrate(nil, time.Second))

	trace := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	var sum float64
	for _, v := range trace {
		sum += v
	}
	assert.InDelta(t, sum*0.25, Integrate(trace, 250*time.Millisecond), 1e-9)
}

func TestFlat(t *testing.T) {
	assert.Equal(t, []float64{20, 20, 20}, Flat(10, 500, 3))
	assert.Equal(t, []float64{0, 0}, Flat(10, 0, 2))
	assert.Equal(t, []float64{0, 0}, Flat(0, 500, 2))
}

func TestWindow(t *testing.T) {
	run, err := model.NewRunRecord("r1", model.BackendCPU, "p", t0, 500)
	require.NoError(t, err)

	w := NewWindow(run)
	assert.Equal(t, t0.Add(500*time.Millisecond), w.End)
	assert.True(t, w.Contains(t0))
	assert.True(t, w.Contains(t0.Add(499*time.Millisecond)))
	assert.False(t, w.Contains(t0.Add(500*time.Millisecond)))
	assert.False(t, w.Contains(t0.Add(-time.Millisecond)))

	zero, err := model.NewRunRecord("r2", model.BackendCPU, "p", t0, 0)
	require.NoError(t, err)
	assert.True(t, NewWindow(zero).Empty())
	assert.False(t, NewWindow(zero).Contains(t0))
}

func samplesAt(backend model.Backend, offsetsMs []int, watts []float64) []model.PowerSample {
	out := make([]model.PowerSample, len(offsetsMs))
	for i, ms := range offsetsMs {
		out[i] = model.PowerSample{RecordedAt: t0.Add(time.Duration(ms) * time.Millisecond), Backend: backend, PowerW: watts[i]}
	}
	return out
}

func staticLoader(data map[string][]model.PowerSample) Loader {
	return func(f logs.SensorLogFile) ([]model.PowerSample, error) {
		s, ok := data[f.Path]
		if !ok {
			return nil, &logs.MissingFileError{Path: f.Path}
		}
		return s, nil
	}
}

func TestExtractSortsAcrossFiles(t *testing.T) {
	// The later session is listed first; extraction must still be ordered.
	data := map[string][]model.PowerSample{
		"b.csv": samplesAt(model.BackendGPU, []int{300, 400, 900}, []float64{3, 4, 9}),
		"a.csv": samplesAt(model.BackendGPU, []int{-100, 0, 100, 200}, []float64{-1, 0, 1, 2}),
	}
	files := []logs.SensorLogFile{
		{Path: "b.csv", Backend: model.BackendGPU},
		{Path: "a.csv", Backend: model.BackendGPU},
	}
	e := NewExtractor(staticLoader(data))

	got := e.Extract(Window{Start: t0, End: t0.Add(500 * time.Millisecond)}, model.BackendGPU, files)
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, got)
}

func TestExtractEmptyCases(t *testing.T) {
	data := map[string][]model.PowerSample{
		"cpu.csv": samplesAt(model.BackendCPU, []int{0, 100}, []float64{1, 2}),
	}
	files := []logs.SensorLogFile{
		{Path: "cpu.csv", Backend: model.BackendCPU},
		{Path: "gone.csv", Backend: model.BackendCPU},
	}
	e := NewExtractor(staticLoader(data))
	w := Window{Start: t0, End: t0.Add(time.Second)}

	assert.Empty(t, e.Extract(w, model.BackendCPU, nil))
	assert.Empty(t, e.Extract(w, model.BackendGPU, files))
	assert.Empty(t, e.Extract(Window{Start: t0.Add(time.Hour), End: t0.Add(2 * time.Hour)}, model.BackendCPU, files))
	assert.Empty(t, e.Extract(Window{Start: t0, End: t0}, model.BackendCPU, files))
	assert.Equal(t, []float64{1, 2}, e.Extract(w, model.BackendCPU, files))
}

func TestExtractReadsEachFileOnce(t *testing.T) {
	calls := 0
	e := NewExtractor(func(f logs.SensorLogFile) ([]model.PowerSample, error) {
		calls++
		return samplesAt(model.BackendCPU, []int{0}, []float64{5}), nil
	})
	files := []logs.SensorLogFile{{Path: "x.csv", Backend: model.BackendCPU}}
	w := Window{Start: t0, End: t0.Add(time.Second)}

	e.Extract(w, model.BackendCPU, files)
	e.Extract(w, model.BackendCPU, files)
	assert.Equal(t, 1, calls)
}

func TestExtractFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw_gpu_power_20251123_233600.csv"), []byte(
		"timestamp,power_w\n"+
			"2025-11-23T23:35:10.300,30\n"+
			"2025-11-23T23:35:10.400,40\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "raw_gpu_power_20251123_233500.csv"), []byte(
		"timestamp,power_w\n"+
			"2025-11-23T23:35:10.000,10\n"+
			"bogus,99\n"+
			"2025-11-23T23:35:10.100,20\n"), 0o644))

	n := clock.New(clock.DefaultOffset)
	files, err := logs.Discover(dir, model.BackendGPU, n)
	require.NoError(t, err)

	e := NewExtractor(func(f logs.SensorLogFile) ([]model.PowerSample, error) {
		return logs.ReadSensorFile(f, n)
	})
	got := e.Extract(Window{Start: t0, End: t0.Add(time.Second)}, model.BackendGPU, files)
	assert.Equal(t, []float64{10, 20, 30, 40}, got)
}

func TestAlign(t *testing.T) {
	cpu := samplesAt(model.BackendCPU, []int{0, 210, 400}, []float64{1, 2, 3})
	gpu := samplesAt(model.BackendGPU, []int{590}, []float64{9})

	points := Align(cpu, gpu, 200*time.Millisecond)
	require.Len(t, points, 3)

	assert.Equal(t, t0, points[0].At)
	require.NotNil(t, points[0].CPU)
	assert.Equal(t, 1.0, *points[0].CPU)
	assert.Nil(t, points[0].GPU)

	require.NotNil(t, points[1].CPU)
	assert.Equal(t, 2.0, *points[1].CPU)

	require.NotNil(t, points[2].CPU)
	assert.Equal(t, 3.0, *points[2].CPU)
	require.NotNil(t, points[2].GPU)
	assert.Equal(t, 9.0, *points[2].GPU)

	assert.Nil(t, Align(nil, nil, time.Second))
}

func TestLoaderErrorsAreSkipped(t *testing.T) {
	e := NewExtractor(func(logs.SensorLogFile) ([]model.PowerSample, error) {
		return nil, errors.New("disk on fire")
	})
	got := e.Extract(Window{Start: t0, End: t0.Add(time.Second)}, model.BackendCPU,
		[]logs.SensorLogFile{{Path: "x.csv", Backend: model.BackendCPU}})
	assert.Empty(t, got)
}
