package storage

import (
	"path/filepath"
	"testing"

	"github.com/cyberrag/crag/internal/record"
)

func TestIsSQLitePath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"meta.db", true},
		{"meta.SQLite", true},
		{"dir/meta.sqlite3", true},
		{"meta.jsonl", false},
		{"meta", false},
	}
	for _, tt := range tests {
		if got := IsSQLitePath(tt.path); got != tt.want {
			t.Errorf("IsSQLitePath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestWriteOpen_Dispatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"meta.jsonl", "meta.db"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Write(path, testRows()); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			store, err := Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer store.Close()

			if store.Size() != 3 {
				t.Errorf("Size() = %d, want 3", store.Size())
			}
			_, isSQLite := store.(*SQLiteStore)
			if isSQLite != IsSQLitePath(path) {
				t.Errorf("Open(%s) returned %T", name, store)
			}
		})
	}
}

func TestDigest(t *testing.T) {
	a, err := Digest(testRows())
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	if len(a) != 64 {
		t.Errorf("Digest() length = %d, want 64 hex chars", len(a))
	}

	b, _ := Digest(testRows())
	if a != b {
		t.Error("Digest() is not deterministic")
	}

	changed := testRows()
	changed[1].BodyText = "edited"
	c, _ := Digest(changed)
	if a == c {
		t.Error("Digest() did not change with row content")
	}

	reordered := testRows()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	d, _ := Digest(reordered)
	if a == d {
		t.Error("Digest() did not change with row order")
	}
}

func TestDigestStore_SameAcrossFormats(t *testing.T) {
	dir := t.TempDir()
	want, _ := Digest(testRows())

	for _, name := range []string{"meta.jsonl", "meta.db"} {
		path := filepath.Join(dir, name)
		Write(path, testRows())
		store, err := Open(path)
		if err != nil {
			t.Fatalf("Open(%s) error = %v", name, err)
		}
		got, err := DigestStore(store)
		store.Close()
		if err != nil {
			t.Fatalf("DigestStore() error = %v", err)
		}
		if got != want {
			t.Errorf("%s digest = %s, want %s", name, got, want)
		}
	}
}

func TestCountByKind_Memory(t *testing.T) {
	store, _ := NewMemoryStore(testRows())
	counts, err := CountByKind(store)
	if err != nil {
		t.Fatalf("CountByKind() error = %v", err)
	}
	if counts[record.KindChecklist] != 2 || counts[record.KindWeakness] != 1 {
		t.Errorf("CountByKind() = %v", counts)
	}
}
