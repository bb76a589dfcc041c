/*
PURPOSE:
  Writes the export document consumed by the visualization client.

REQUIREMENTS:
  User-specified:
  - JSON output `{ "runs": [ ... ] }` with a fixed-length power trace per run.

  Implementation-discovered:
  - The client polls the file; it must never observe a half-written document,
    so the document is written to a temp file and renamed into place.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.ExportDocument

ERROR HANDLING:
  - Returns error on file creation, encode or rename failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder with two-space indentation.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("data/gamemaker_export.json")
  w.Write(doc)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if the client switches to streaming updates.
*/

package output

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/daryltucker/forest-energy/internal/model"
)

// JSONWriter handles writing an export document.
type JSONWriter struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
	failed  bool
}

// NewJSONWriter creates a new JSONWriter. The target only appears on Close.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path + ".tmp")
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return &JSONWriter{
		path:    path,
		file:    f,
		encoder: enc,
	}, nil
}

// Write encodes the document.
func (jw *JSONWriter) Write(doc model.ExportDocument) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if doc.Runs == nil {
		doc.Runs = []model.ExportRun{}
	}
	if err := jw.encoder.Encode(doc); err != nil {
		jw.failed = true
		return err
	}
	return nil
}

// Close closes the temp file and moves it into place.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	tmp := jw.file.Name()
	if err := jw.file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if jw.failed {
		return os.Remove(tmp)
	}
	return os.Rename(tmp, jw.path)
}
