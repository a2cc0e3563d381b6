package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cyberrag/crag/internal/record"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a MetadataStore backed by a SQLite database. Rows are read
// on demand, so large corpora do not need to be held in memory.
type SQLiteStore struct {
	db   *sql.DB
	size int
}

// selectMetadataFields contains the standard field list for SELECT queries.
const selectMetadataFields = `slot, id, title, source_kind, severity, body_text`

// createSchema creates the metadata table.
func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			slot INTEGER PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			severity TEXT NOT NULL DEFAULT '',
			body_text TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_metadata_kind ON metadata(source_kind);
	`
	_, err := db.Exec(schema)
	return err
}

// WriteSQLite writes rows to a fresh SQLite database at path. The database
// is built under a temp name and renamed into place.
func WriteSQLite(path string, rows []record.Metadata) error {
	if err := checkSlots(rows); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	tempPath := path + ".tmp"
	os.Remove(tempPath)

	if err := writeSQLiteFile(tempPath, rows); err != nil {
		os.Remove(tempPath)
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func writeSQLiteFile(path string, rows []record.Metadata) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO metadata (` + selectMetadataFields + `) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row.Slot, row.ID, row.Title, string(row.SourceKind), row.Severity, row.BodyText); err != nil {
			return fmt.Errorf("inserting slot %d (%s): %w", row.Slot, row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return db.Close()
}

// OpenSQLite opens an existing SQLite metadata artifact and checks that its
// slots are contiguous from zero.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("checking metadata file: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var count int
	var minSlot, maxSlot sql.NullInt64
	err = db.QueryRow(`SELECT COUNT(*), MIN(slot), MAX(slot) FROM metadata`).Scan(&count, &minSlot, &maxSlot)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCorruptMetadata, err)
	}
	if count > 0 && (minSlot.Int64 != 0 || maxSlot.Int64 != int64(count-1)) {
		db.Close()
		return nil, fmt.Errorf("%w: slots %d..%d for %d rows", ErrCorruptMetadata, minSlot.Int64, maxSlot.Int64, count)
	}

	return &SQLiteStore{db: db, size: count}, nil
}

// Get returns the row for slot.
func (s *SQLiteStore) Get(slot int) (record.Metadata, error) {
	var m record.Metadata
	var kind string
	err := s.db.QueryRow(`SELECT `+selectMetadataFields+` FROM metadata WHERE slot = ?`, slot).
		Scan(&m.Slot, &m.ID, &m.Title, &kind, &m.Severity, &m.BodyText)
	if errors.Is(err, sql.ErrNoRows) {
		return record.Metadata{}, fmt.Errorf("%w: %d (size %d)", ErrSlotOutOfRange, slot, s.size)
	}
	if err != nil {
		return record.Metadata{}, fmt.Errorf("reading slot %d: %w", slot, err)
	}
	m.SourceKind = record.SourceKind(kind)
	return m, nil
}

// Size returns the number of rows.
func (s *SQLiteStore) Size() int {
	return s.size
}

// CountByKind returns the number of rows per source kind.
func (s *SQLiteStore) CountByKind() (map[record.SourceKind]int, error) {
	rows, err := s.db.Query(`SELECT source_kind, COUNT(*) FROM metadata GROUP BY source_kind`)
	if err != nil {
		return nil, fmt.Errorf("counting by kind: %w", err)
	}
	defer rows.Close()

	counts := make(map[record.SourceKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[record.SourceKind(kind)] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
