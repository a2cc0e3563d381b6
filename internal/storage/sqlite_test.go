package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cyberrag/crag/internal/record"
)

func TestWriteSQLite_OpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	rows := testRows()

	if err := WriteSQLite(path, rows); err != nil {
		t.Fatalf("WriteSQLite() error = %v", err)
	}

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()

	if store.Size() != len(rows) {
		t.Fatalf("Size() = %d, want %d", store.Size(), len(rows))
	}
	for i, want := range rows {
		got, err := store.Get(i)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", i, err)
		}
		if got != want {
			t.Errorf("Get(%d) = %+v, want %+v", i, got, want)
		}
	}

	if _, err := store.Get(len(rows)); !errors.Is(err, ErrSlotOutOfRange) {
		t.Errorf("Get(out of range) error = %v, want ErrSlotOutOfRange", err)
	}
}

func TestWriteSQLite_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.sqlite")
	if err := WriteSQLite(path, testRows()); err != nil {
		t.Fatalf("WriteSQLite() error = %v", err)
	}
	if err := WriteSQLite(path, testRows()[:2]); err != nil {
		t.Fatalf("second WriteSQLite() error = %v", err)
	}

	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()
	if store.Size() != 2 {
		t.Errorf("Size() = %d, want 2", store.Size())
	}
}

func TestWriteSQLite_DuplicateID(t *testing.T) {
	rows := testRows()
	rows[2].ID = rows[0].ID
	path := filepath.Join(t.TempDir(), "meta.db")
	if err := WriteSQLite(path, rows); err == nil {
		t.Error("expected error for duplicate id")
	}
	if _, err := OpenSQLite(path); !errors.Is(err, ErrNotFound) {
		t.Errorf("failed write left an artifact behind: %v", err)
	}
}

func TestOpenSQLite_NotFound(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "missing.db"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("OpenSQLite() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteStore_CountByKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.db")
	WriteSQLite(path, testRows())
	store, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	defer store.Close()

	counts, err := CountByKind(store)
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	if counts[record.KindChecklist] != 2 || counts[record.KindWeakness] != 1 {
		t.Errorf("CountByKind() = %v", counts)
	}
}
