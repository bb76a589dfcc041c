// Package logs reads the CSV logs written by the job runner and the power
// collectors. Files may still be appended to while they are read, so every
// read works on a snapshot of the bytes present when it started.
package logs

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/daryltucker/forest-energy/internal/metrics"
	"github.com/daryltucker/forest-energy/internal/output"
)

// MissingFileError reports an absent file or directory. Callers treat it as
// an empty result.
type MissingFileError struct {
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s not found", e.Path)
}

func (e *MissingFileError) Unwrap() error { return e.Err }

// SchemaError reports a file lacking a required column.
type SchemaError struct {
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing columns %s", e.Path, strings.Join(e.Missing, ", "))
}

// IsMissing reports whether err is a MissingFileError.
func IsMissing(err error) bool {
	var m *MissingFileError
	return errors.As(err, &m)
}

// ReadSnapshot returns the bytes of path up to its size at open time. A
// trailing row without a line terminator is treated as still being written
// and is dropped; the drop is counted under rows skipped.
func ReadSnapshot(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingFileError{Path: path, Err: err}
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	data := make([]byte, info.Size())
	n, err := io.ReadFull(f, data)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	data = data[:n]

	end := bytes.LastIndexByte(data, '\n')
	if tail := data[end+1:]; len(bytes.TrimSpace(tail)) > 0 {
		metrics.RowsSkipped.WithLabelValues("snapshot", "partial").Inc()
		output.Logger.Debug("Dropping unterminated trailing row", "file", path, "bytes", len(tail))
	}
	return data[:end+1], nil
}

// table is a header-indexed view over a CSV snapshot.
type table struct {
	path   string
	source string
	index  map[string]int
	header []string
	r      *csv.Reader
	line   int
}

func openTable(path, source string) (*table, error) {
	data, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaError{Path: path, Missing: []string{"header"}}
		}
		return nil, fmt.Errorf("%s: read header: %w", path, err)
	}

	t := &table{path: path, source: source, index: make(map[string]int, len(header)), r: r, line: 1}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.header = append(t.header, h)
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	return t, nil
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if _, ok := t.index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Path: t.path, Missing: missing}
	}
	return nil
}

func (t *table) has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// next returns the next well-formed row, skipping rows the CSV reader rejects.
func (t *table) next() ([]string, bool) {
	for {
		rec, err := t.r.Read()
		if errors.Is(err, io.EOF) {
			return nil, false
		}
		t.line++
		if err != nil {
			t.skip("csv", err)
			continue
		}
		return rec, true
	}
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (t *table) skip(reason string, err error) {
	metrics.RowsSkipped.WithLabelValues(t.source, reason).Inc()
	output.Logger.Warn("Skipping malformed row", "file", t.path, "line", t.line, "reason", reason, "error", err)
}
