// Package storage persists the metadata artifact that sits beside the vector
// index: one row per index slot, in slot order.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cyberrag/crag/internal/record"
	"golang.org/x/crypto/blake2b"
)

// Errors returned by metadata stores.
var (
	ErrNotFound        = errors.New("metadata artifact not found")
	ErrSlotOutOfRange  = errors.New("slot out of range")
	ErrCorruptMetadata = errors.New("corrupt metadata artifact")
)

// MetadataStore maps an index slot to the record stored there.
type MetadataStore interface {
	// Get returns the row for slot, or ErrSlotOutOfRange.
	Get(slot int) (record.Metadata, error)

	// Size returns the number of rows.
	Size() int

	// Close releases any resources held by the store.
	Close() error
}

// IsSQLitePath reports whether path names a SQLite metadata artifact.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// Open opens the metadata artifact at path, choosing the format by extension.
func Open(path string) (MetadataStore, error) {
	if IsSQLitePath(path) {
		return OpenSQLite(path)
	}
	return OpenJSONL(path)
}

// Write writes rows to path, choosing the format by extension.
func Write(path string, rows []record.Metadata) error {
	if IsSQLitePath(path) {
		return WriteSQLite(path, rows)
	}
	return WriteJSONL(path, rows)
}

// checkSlots verifies that rows[i].Slot == i for every row.
func checkSlots(rows []record.Metadata) error {
	for i, row := range rows {
		if row.Slot != i {
			return fmt.Errorf("%w: row %d carries slot %d", ErrCorruptMetadata, i, row.Slot)
		}
	}
	return nil
}

// Digest returns a hex BLAKE2b-256 digest over the rows in order. It depends
// only on row contents, so a JSONL and a SQLite artifact holding the same
// rows have the same digest.
func Digest(rows []record.Metadata) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("creating hash: %w", err)
	}
	enc := json.NewEncoder(h)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return "", fmt.Errorf("hashing slot %d: %w", row.Slot, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadAll returns every row of s in slot order.
func ReadAll(s MetadataStore) ([]record.Metadata, error) {
	rows := make([]record.Metadata, 0, s.Size())
	for i := 0; i < s.Size(); i++ {
		row, err := s.Get(i)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DigestStore computes Digest over every row of s.
func DigestStore(s MetadataStore) (string, error) {
	rows, err := ReadAll(s)
	if err != nil {
		return "", err
	}
	return Digest(rows)
}

// CountByKind returns the number of rows per source kind. Stores that can
// count natively (SQLite) do so; others are scanned.
func CountByKind(s MetadataStore) (map[record.SourceKind]int, error) {
	if c, ok := s.(interface {
		CountByKind() (map[record.SourceKind]int, error)
	}); ok {
		return c.CountByKind()
	}
	counts := make(map[record.SourceKind]int)
	for i := 0; i < s.Size(); i++ {
		row, err := s.Get(i)
		if err != nil {
			return nil, err
		}
		counts[row.SourceKind]++
	}
	return counts, nil
}
