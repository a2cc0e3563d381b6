package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyberrag/crag/internal/record"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
// This constant is shared across all JSONL file readers.
const MaxJSONLLineCapacity = 1024 * 1024

// MemoryStore is a MetadataStore held fully in memory, loaded from JSONL.
type MemoryStore struct {
	rows []record.Metadata
}

// NewMemoryStore wraps rows, which must already be in slot order.
func NewMemoryStore(rows []record.Metadata) (*MemoryStore, error) {
	if err := checkSlots(rows); err != nil {
		return nil, err
	}
	return &MemoryStore{rows: rows}, nil
}

// Get returns the row for slot.
func (s *MemoryStore) Get(slot int) (record.Metadata, error) {
	if slot < 0 || slot >= len(s.rows) {
		return record.Metadata{}, fmt.Errorf("%w: %d (size %d)", ErrSlotOutOfRange, slot, len(s.rows))
	}
	return s.rows[slot], nil
}

// Size returns the number of rows.
func (s *MemoryStore) Size() int {
	return len(s.rows)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

// ReadJSONL reads metadata rows from a JSONL file.
func ReadJSONL(path string) ([]record.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("opening metadata file: %w", err)
	}
	defer f.Close()

	var rows []record.Metadata
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var row record.Metadata
		if err := json.Unmarshal(line, &row); err != nil {
			return nil, fmt.Errorf("%w: parsing line %d: %v", ErrCorruptMetadata, lineNum, err)
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	return rows, nil
}

// OpenJSONL loads a JSONL metadata artifact into memory.
func OpenJSONL(path string) (*MemoryStore, error) {
	rows, err := ReadJSONL(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(rows)
}

// WriteJSONL writes rows to path, replacing existing content. The file is
// written next to path and renamed into place so readers never see a
// partial artifact.
func WriteJSONL(path string, rows []record.Metadata) error {
	if err := checkSlots(rows); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	w := bufio.NewWriter(f)
	for i, row := range rows {
		data, err := json.Marshal(row)
		if err != nil {
			f.Close()
			os.Remove(tempPath)
			return fmt.Errorf("encoding row %d: %w", i, err)
		}
		w.Write(data)
		w.WriteByte('\n')
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
