package logs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/daryltucker/forest-energy/internal/clock"
	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/model"
	"github.com/daryltucker/forest-energy/internal/output"
)

// SensorLogFile is one raw trace file written by a collector session.
type SensorLogFile struct {
	Path    string
	Name    string
	Backend model.Backend
	// StartedAt is the session start encoded in the file name.
	StartedAt time.Time
	// Date is the YYYYMMDD fragment of the name; CPU rows only carry a
	// time of day and are anchored to it.
	Date string
}

// FilePrefix returns the raw trace file prefix for a backend.
func FilePrefix(b model.Backend) string {
	return "raw_" + string(b) + "_power_"
}

// ParseFileName decodes a raw trace file name. CPU names must be
// raw_cpu_power_YYYYMMDD_HHMMSS.csv; GPU names may also carry unix seconds.
func ParseFileName(name string, backend model.Backend, n clock.Normalizer) (SensorLogFile, error) {
	prefix := FilePrefix(backend)
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
		return SensorLogFile{}, fmt.Errorf("%s: not a %s trace file", name, backend)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")
	f := SensorLogFile{Name: name, Backend: backend}

	if at, err := n.Normalize(stamp, clock.Stamp); err == nil {
		f.StartedAt = at
		f.Date = stamp[:8]
		return f, nil
	}
	if backend == model.BackendGPU {
		if secs, err := strconv.ParseInt(stamp, 10, 64); err == nil && secs > 0 {
			f.StartedAt = time.Unix(secs, 0).UTC()
			f.Date = f.StartedAt.Format("20060102")
			return f, nil
		}
	}
	return SensorLogFile{}, fmt.Errorf("%s: unrecognized timestamp %q", name, stamp)
}

// Discover lists the raw trace files of one backend in dir, ordered by the
// session start encoded in their names (name breaks ties). CPU names that
// do not parse are skipped with a warning. GPU files with an unknown stamp
// are kept with a zero StartedAt and sorted by name after the others.
func Discover(dir string, backend model.Backend, n clock.Normalizer) ([]SensorLogFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Path: dir, Err: err}
		}
		return nil, err
	}

	prefix := FilePrefix(backend)
	var files []SensorLogFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		f, err := ParseFileName(e.Name(), backend, n)
		if err != nil {
			// GPU rows carry full timestamps, so only the file order is lost.
			if backend == model.BackendGPU && strings.HasSuffix(e.Name(), ".csv") {
				output.Logger.Warn("Trace file name has no known timestamp, ordering by name", "file", e.Name(), "error", err)
				f = SensorLogFile{Name: e.Name(), Backend: backend}
			} else {
				metrics.FilesSkipped.WithLabelValues("name").Inc()
				output.Logger.Warn("Skipping trace file with unparseable name", "file", e.Name(), "error", err)
				continue
			}
		}
		f.Path = filepath.Join(dir, e.Name())
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		zi, zj := files[i].StartedAt.IsZero(), files[j].StartedAt.IsZero()
		if zi != zj {
			return zj
		}
		if !files[i].StartedAt.Equal(files[j].StartedAt) {
			return files[i].StartedAt.Before(files[j].StartedAt)
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}
