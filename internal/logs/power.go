package logs

import (
	"fmt"
	"strings"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/model"
)

// PowerColumn returns the first header naming a power reading ("power" or
// "watt", case-insensitive), or "" when there is none.
func PowerColumn(header []string) string {
	for _, h := range header {
		l := strings.ToLower(h)
		if strings.Contains(l, "power") || strings.Contains(l, "watt") {
			return h
		}
	}
	return ""
}

// LoadSummary reads the standalone power log used for fallback correlation.
// The reading column is optional; energy_joules defaults to 0.
func LoadSummary(path string, n clock.Normalizer) ([]model.SummarySample, error) {
	t, err := openTable(path, "power_summary")
	if err != nil {
		return nil, err
	}
	if err := t.require(ColTimestamp, ColBackend); err != nil {
		return nil, err
	}
	powerCol := PowerColumn(t.header)

	var samples []model.SummarySample
	for {
		rec, ok := t.next()
		if !ok {
			break
		}

		at, err := n.Normalize(t.get(rec, ColTimestamp), clock.ISO)
		if err != nil {
			t.skip("timestamp", err)
			continue
		}
		backend, err := model.ParseBackend(t.get(rec, ColBackend))
		if err != nil {
			t.skip("backend", err)
			continue
		}

		s := model.SummarySample{
			PowerSample: model.PowerSample{RecordedAt: at, Backend: backend},
			Notes:       t.get(rec, ColNotes),
		}
		if raw := t.get(rec, ColEnergyJoules); raw != "" {
			v, err := parseFinite(raw)
			if err != nil || v < 0 {
				t.skip("energy_joules", fmt.Errorf("invalid energy %q", raw))
				continue
			}
			s.EnergyJoules = v
		}
		if powerCol != "" {
			if raw := t.get(rec, powerCol); raw != "" {
				v, err := parseFinite(raw)
				if err != nil {
					t.skip("power", err)
					continue
				}
				s.PowerW = v
			}
		}

		samples = append(samples, s)
	}
	return samples, nil
}
