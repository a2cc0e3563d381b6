// Package corpus builds and opens the vector index and metadata artifacts as
// one aligned pair.
package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/storage"
)

// ErrBuildInput marks malformed or unusable build input.
var ErrBuildInput = errors.New("invalid build input")

// InputStats counts what happened to raw input items.
type InputStats struct {
	Read    int `json:"read"`
	Kept    int `json:"kept"`
	Skipped int `json:"skipped"` // No descriptive text
}

func (s *InputStats) add(o InputStats) {
	s.Read += o.Read
	s.Kept += o.Kept
	s.Skipped += o.Skipped
}

// ReadJSONL decodes one record per non-empty line. Lines without any
// descriptive text are skipped and counted; any malformed line fails the
// whole read with ErrBuildInput.
func ReadJSONL(r io.Reader) ([]record.CanonicalRecord, InputStats, error) {
	var (
		recs  []record.CanonicalRecord
		stats InputStats
	)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, storage.MaxJSONLLineCapacity)
	scanner.Buffer(buf, storage.MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Read++

		rec, ok, err := record.DecodeLine(line)
		if err != nil {
			return nil, stats, fmt.Errorf("%w: line %d: %v", ErrBuildInput, lineNum, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		recs = append(recs, rec)
		stats.Kept++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("%w: reading input: %v", ErrBuildInput, err)
	}
	return recs, stats, nil
}

// ReadCSV reads a checklist or weakness CSV export. An empty kind detects
// the schema from the header: a vuln_id column means checklist, otherwise
// weakness.
func ReadCSV(r io.Reader, kind record.SourceKind) ([]record.CanonicalRecord, InputStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, InputStats{}, fmt.Errorf("%w: reading csv: %v", ErrBuildInput, err)
	}

	if kind == "" {
		kind = record.KindWeakness
		if _, err := record.ReadChecklistCSV(bytes.NewReader(data)); err == nil {
			kind = record.KindChecklist
		}
	}

	var (
		recs  []record.CanonicalRecord
		stats InputStats
	)
	keep := func(rec record.CanonicalRecord, ok bool) {
		stats.Read++
		if !ok {
			stats.Skipped++
			return
		}
		recs = append(recs, rec)
		stats.Kept++
	}

	switch kind {
	case record.KindChecklist:
		items, err := record.ReadChecklistCSV(bytes.NewReader(data))
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrBuildInput, err)
		}
		for _, it := range items {
			keep(record.NormalizeChecklist(it))
		}
	case record.KindWeakness:
		items, err := record.ReadWeaknessCSV(bytes.NewReader(data))
		if err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrBuildInput, err)
		}
		for _, it := range items {
			keep(record.NormalizeWeakness(it))
		}
	default:
		return nil, stats, fmt.Errorf("%w: unknown source kind %q", ErrBuildInput, kind)
	}

	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return nil, stats, fmt.Errorf("%w: %v", ErrBuildInput, err)
		}
	}
	return recs, stats, nil
}

// ReadFile reads build input from path. Files ending in .csv are read as CSV
// with the given kind; everything else is JSONL. "-" reads JSONL from stdin.
func ReadFile(path string, kind record.SourceKind) ([]record.CanonicalRecord, InputStats, error) {
	if path == "-" {
		return ReadJSONL(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, InputStats{}, fmt.Errorf("%w: %v", ErrBuildInput, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReadCSV(f, kind)
	}
	return ReadJSONL(f)
}

// ReadFiles reads and concatenates several inputs in the order given.
func ReadFiles(paths []string, kind record.SourceKind) ([]record.CanonicalRecord, InputStats, error) {
	var (
		all   []record.CanonicalRecord
		total InputStats
	)
	for _, p := range paths {
		recs, stats, err := ReadFile(p, kind)
		total.add(stats)
		if err != nil {
			return nil, total, fmt.Errorf("%s: %w", p, err)
		}
		all = append(all, recs...)
	}
	return all, total, nil
}
