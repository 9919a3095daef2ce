// Package sink persists asset records.
package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robert-at-pretension-io/verilog-assets/internal/asset"
)

// Output formats
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// ErrUnknownFormat is returned by Write for formats other than csv and json
var ErrUnknownFormat = errors.New("unknown output format")

// ErrCSVTarget is returned when a JSON write would replace an asset CSV
var ErrCSVTarget = errors.New("output file holds asset CSV rows")

// Header is the fixed CSV column order
var Header = []string{"Filename", "Asset", "width", "Signal_type", "Appeared in", "CIA"}

// mu serializes writers within the process so rows never interleave
var mu sync.Mutex

// Row renders a record in Header order
func Row(r asset.Record) []string {
	return []string{
		strings.ToLower(filepath.Base(r.SourceFile)),
		r.Signal,
		r.Width.String(),
		string(r.Category),
		r.AppearedIn,
		r.CIA,
	}
}

// Write persists records in the given format and returns the number written
func Write(path, format string, records []asset.Record) (int, error) {
	switch format {
	case "", FormatCSV:
		return AppendCSV(path, records)
	case FormatJSON:
		if holdsCSV(path) {
			return 0, fmt.Errorf("%w: %s", ErrCSVTarget, path)
		}
		doc := jsonDocument{Records: records, Summary: asset.Counts(records)}
		if err := WriteJSONAtomic(path, doc); err != nil {
			return 0, err
		}
		return len(records), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

type jsonDocument struct {
	Records []asset.Record         `json:"records"`
	Summary map[asset.Category]int `json:"summary"`
}

// holdsCSV reports whether path starts with the asset CSV header
func holdsCSV(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	line, _ := bufio.NewReader(f).ReadString('\n')
	return strings.TrimRight(line, "\r\n") == strings.Join(Header, ",")
}

// AppendCSV appends records to path. The header is written only when the
// file did not exist, so repeated runs accumulate rows.
func AppendCSV(path string, records []asset.Record) (int, error) {
	mu.Lock()
	defer mu.Unlock()

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open output: %w", err)
	}

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(Header); err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("write header: %w", err)
		}
	}
	for _, r := range records {
		if err := w.Write(Row(r)); err != nil {
			_ = f.Close()
			return 0, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return 0, fmt.Errorf("flush output: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close output: %w", err)
	}
	return len(records), nil
}

// WriteJSONAtomic writes v as indented JSON through a temp file and rename
func WriteJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// ReadJSON loads a document written with FormatJSON
func ReadJSON(path string) ([]asset.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc.Records, nil
}
