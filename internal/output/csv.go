/*
PURPOSE:
  Writes report tables (correlation report, stats summary, aligned
  timeline) to CSV files.
  Ensures data integrity by flushing writes immediately.

REQUIREMENTS:
  User-specified:
  - Output to CSV.

  Implementation-discovered:
  - Every report has its own header; the writer is column-agnostic and the
    caller (internal/engine) maps domain values to strings.
  - Reports are regenerated from the logs each time, so files are overwritten.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine

ERROR HANDLING:
  - Returns error on file creation or write failure.
  - Rejects rows whose width differs from the header.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every write (critical for crash resilience).
  - Use Mutex if concurrent writes are expected.

USAGE:
  w, err := output.NewCSVWriter("report.csv", []string{"run_id", "energy_joules"})
  w.Write([]string{"cpu-t4", "12.5"})
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If a report format changes, update the header and row mapping in internal/engine.

RELATED FILES:
  - internal/engine/report.go
  - internal/engine/sync.go

MAINTENANCE:
  - None.
*/

package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// CSVWriter handles writing report rows to a CSV file.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	width  int
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter and writes the header.
// It overwrites the file if it exists.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
		width:  len(header),
	}, nil
}

// Write writes a single row to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(record []string) error {
	if len(record) != cw.width {
		return fmt.Errorf("csv row has %d fields, header has %d", len(record), cw.width)
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes pending rows and closes the underlying file. A failed
// flush is reported even if the close succeeds.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	return errors.Join(cw.writer.Error(), cw.file.Close())
}

// FormatFloat renders a float with a fixed number of decimals.
func FormatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

// FormatTime renders an instant as ISO-8601 UTC with milliseconds.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
