package logs

import (
	"fmt"
	"time"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/model"
)

// Vendor trace columns.
const (
	ColCPUTime  = "System Time"
	ColCPUPower = "Processor Power_0(Watt)"
	ColGPUTime  = "timestamp"
	ColGPUPower = "power_w"
)

// rolloverGap is how far a CPU time of day may step backwards before it is
// read as crossing midnight.
const rolloverGap = 12 * time.Hour

// ReadSensorFile returns the samples of a raw trace file in file order.
func ReadSensorFile(f SensorLogFile, n clock.Normalizer) ([]model.PowerSample, error) {
	switch f.Backend {
	case model.BackendCPU:
		return readCPUFile(f, n)
	case model.BackendGPU:
		return readGPUFile(f, n)
	default:
		return nil, fmt.Errorf("%s: unknown backend %q", f.Path, f.Backend)
	}
}

// readCPUFile reads a vendor CPU collector log. Rows carry only a local time
// of day, anchored to the date in the file name. The vendor appends summary
// lines after the samples; they fail to parse and are skipped.
func readCPUFile(f SensorLogFile, n clock.Normalizer) ([]model.PowerSample, error) {
	t, err := openTable(f.Path, "cpu_trace")
	if err != nil {
		return nil, err
	}
	if err := t.require(ColCPUTime, ColCPUPower); err != nil {
		return nil, err
	}

	var (
		samples []model.PowerSample
		prev    time.Time
		shift   time.Duration
	)
	for {
		rec, ok := t.next()
		if !ok {
			break
		}

		at, err := n.Normalize(t.get(rec, ColCPUTime), clock.Gadget(f.Date))
		if err != nil {
			t.skip("timestamp", err)
			continue
		}
		at = at.Add(shift)
		if !prev.IsZero() && at.Before(prev.Add(-rolloverGap)) {
			shift += 24 * time.Hour
			at = at.Add(24 * time.Hour)
		}

		watts, err := parseFinite(t.get(rec, ColCPUPower))
		if err != nil {
			t.skip("power", err)
			continue
		}

		prev = at
		samples = append(samples, model.PowerSample{RecordedAt: at, Backend: model.BackendCPU, PowerW: watts})
	}
	return samples, nil
}

func readGPUFile(f SensorLogFile, n clock.Normalizer) ([]model.PowerSample, error) {
	t, err := openTable(f.Path, "gpu_trace")
	if err != nil {
		return nil, err
	}
	if err := t.require(ColGPUTime, ColGPUPower); err != nil {
		return nil, err
	}

	var samples []model.PowerSample
	for {
		rec, ok := t.next()
		if !ok {
			break
		}

		at, err := n.Normalize(t.get(rec, ColGPUTime), clock.ISO)
		if err != nil {
			t.skip("timestamp", err)
			continue
		}
		watts, err := parseFinite(t.get(rec, ColGPUPower))
		if err != nil {
			t.skip("power", err)
			continue
		}
		samples = append(samples, model.PowerSample{RecordedAt: at, Backend: model.BackendGPU, PowerW: watts})
	}
	return samples, nil
}
