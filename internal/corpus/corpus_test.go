package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
)

type failProvider struct{ embedding.Provider }

func (failProvider) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	return embedding.Embedding{}, embedding.ErrUnavailable
}

func sampleRecords(t *testing.T) []record.CanonicalRecord {
	t.Helper()
	recs, _, err := ReadJSONL(strings.NewReader(sampleJSONL))
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	return recs
}

func buildSample(t *testing.T, metaName string, metric semantic.Metric) (BuildOptions, *BuildResult) {
	t.Helper()
	dir := t.TempDir()
	opts := BuildOptions{
		Records:      sampleRecords(t),
		Provider:     embedding.NewHashingProvider(128),
		Metric:       metric,
		IndexPath:    filepath.Join(dir, "corpus.index"),
		MetadataPath: filepath.Join(dir, metaName),
	}
	res, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return opts, res
}

func TestBuildAndOpen(t *testing.T) {
	for _, metaName := range []string{"corpus.jsonl", "corpus.db"} {
		t.Run(metaName, func(t *testing.T) {
			opts, res := buildSample(t, metaName, semantic.MetricCosine)
			if res.BuildID == "" {
				t.Error("BuildID should be set")
			}
			if res.Stats.RecordsIndexed != 3 {
				t.Errorf("RecordsIndexed = %d, want 3", res.Stats.RecordsIndexed)
			}

			c, err := Open(OpenOptions{
				IndexPath:    opts.IndexPath,
				MetadataPath: opts.MetadataPath,
				Metric:       semantic.MetricCosine,
				ModelName:    "hashing-bow-v1-128",
			})
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer c.Close()

			if c.Index.Size() != c.Store.Size() {
				t.Errorf("index size %d != store size %d", c.Index.Size(), c.Store.Size())
			}
			if c.Index.BuildID != res.BuildID {
				t.Errorf("BuildID = %s, want %s", c.Index.BuildID, res.BuildID)
			}
			row, _ := c.Store.Get(2)
			if row.ID != "CWE-79" {
				t.Errorf("slot 2 = %s, want CWE-79", row.ID)
			}
		})
	}
}

func TestBuild_InputErrors(t *testing.T) {
	dir := t.TempDir()
	dup := sampleRecords(t)
	dup[2].ID = dup[0].ID
	noID := sampleRecords(t)
	noID[1].ID = ""

	tests := []struct {
		name    string
		records []record.CanonicalRecord
	}{
		{"empty input", nil},
		{"duplicate id", dup},
		{"missing id", noID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := BuildOptions{
				Records:      tt.records,
				Provider:     embedding.NewHashingProvider(16),
				Metric:       semantic.MetricCosine,
				IndexPath:    filepath.Join(dir, "x.index"),
				MetadataPath: filepath.Join(dir, "x.jsonl"),
			}
			_, err := Build(context.Background(), opts)
			if !errors.Is(err, ErrBuildInput) {
				t.Fatalf("Build() error = %v, want ErrBuildInput", err)
			}
			if _, err := os.Stat(opts.IndexPath); !os.IsNotExist(err) {
				t.Error("index artifact written for rejected input")
			}
			if _, err := os.Stat(opts.MetadataPath); !os.IsNotExist(err) {
				t.Error("metadata artifact written for rejected input")
			}
		})
	}
}

func TestBuild_SamePaths(t *testing.T) {
	path := filepath.Join(t.TempDir(), "same")
	_, err := Build(context.Background(), BuildOptions{
		Records:      sampleRecords(t),
		Provider:     embedding.NewHashingProvider(16),
		Metric:       semantic.MetricL2,
		IndexPath:    path,
		MetadataPath: path,
	})
	if !errors.Is(err, ErrBuildInput) {
		t.Errorf("Build() error = %v, want ErrBuildInput", err)
	}
}

func TestBuild_EncoderUnavailableLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	opts := BuildOptions{
		Records:      sampleRecords(t),
		Provider:     failProvider{embedding.NewHashingProvider(16)},
		Metric:       semantic.MetricCosine,
		IndexPath:    filepath.Join(dir, "corpus.index"),
		MetadataPath: filepath.Join(dir, "corpus.jsonl"),
	}
	_, err := Build(context.Background(), opts)
	if !errors.Is(err, embedding.ErrUnavailable) {
		t.Fatalf("Build() error = %v, want ErrUnavailable", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no artifacts, found %d files", len(entries))
	}
}

func TestBuild_FailedRebuildKeepsPreviousPair(t *testing.T) {
	opts, _ := buildSample(t, "corpus.jsonl", semantic.MetricCosine)
	before, err := os.ReadFile(opts.MetadataPath)
	if err != nil {
		t.Fatalf("reading metadata: %v", err)
	}

	// A non-empty directory at the index path cannot be replaced by a file.
	blocked := filepath.Join(filepath.Dir(opts.IndexPath), "blocked.index")
	if err := os.MkdirAll(filepath.Join(blocked, "keep"), 0755); err != nil {
		t.Fatal(err)
	}
	rebuild := opts
	rebuild.IndexPath = blocked
	rebuild.Records = sampleRecords(t)[:1]
	if _, err := Build(context.Background(), rebuild); err == nil {
		t.Fatal("Build() should fail when the index cannot be replaced")
	}

	after, err := os.ReadFile(opts.MetadataPath)
	if err != nil {
		t.Fatalf("metadata removed by failed rebuild: %v", err)
	}
	if string(after) != string(before) {
		t.Error("metadata replaced although the index was not")
	}

	entries, _ := os.ReadDir(filepath.Dir(opts.IndexPath))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Errorf("staging file left behind: %s", e.Name())
		}
	}

	c, err := Open(OpenOptions{IndexPath: opts.IndexPath, MetadataPath: opts.MetadataPath})
	if err != nil {
		t.Fatalf("previous pair no longer opens: %v", err)
	}
	c.Close()
}

func TestOpen_MetricMismatch(t *testing.T) {
	opts, _ := buildSample(t, "corpus.jsonl", semantic.MetricCosine)
	_, err := Open(OpenOptions{IndexPath: opts.IndexPath, MetadataPath: opts.MetadataPath, Metric: semantic.MetricL2})
	if !errors.Is(err, semantic.ErrMetricMismatch) {
		t.Errorf("Open() error = %v, want ErrMetricMismatch", err)
	}
}

func TestOpen_ModelMismatch(t *testing.T) {
	opts, _ := buildSample(t, "corpus.jsonl", semantic.MetricL2)
	_, err := Open(OpenOptions{IndexPath: opts.IndexPath, MetadataPath: opts.MetadataPath, ModelName: "all-minilm:l6-v2"})
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("Open() error = %v, want ErrModelMismatch", err)
	}
}

func TestOpen_Misalignment(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]record.Metadata) []record.Metadata
	}{
		{"short metadata", func(rows []record.Metadata) []record.Metadata {
			return rows[:2]
		}},
		{"swapped ids", func(rows []record.Metadata) []record.Metadata {
			rows[0].ID, rows[1].ID = rows[1].ID, rows[0].ID
			return rows
		}},
		{"edited body", func(rows []record.Metadata) []record.Metadata {
			rows[1].BodyText = "tampered"
			return rows
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := buildSample(t, "corpus.jsonl", semantic.MetricCosine)
			rows, err := storage.ReadJSONL(opts.MetadataPath)
			if err != nil {
				t.Fatalf("ReadJSONL() error = %v", err)
			}
			if err := storage.WriteJSONL(opts.MetadataPath, tt.mutate(rows)); err != nil {
				t.Fatalf("WriteJSONL() error = %v", err)
			}

			_, err = Open(OpenOptions{IndexPath: opts.IndexPath, MetadataPath: opts.MetadataPath})
			if !errors.Is(err, ErrAlignment) {
				t.Errorf("Open() error = %v, want ErrAlignment", err)
			}
		})
	}
}

func TestOpen_MissingArtifacts(t *testing.T) {
	opts, _ := buildSample(t, "corpus.jsonl", semantic.MetricCosine)

	_, err := Open(OpenOptions{IndexPath: opts.IndexPath + ".nope", MetadataPath: opts.MetadataPath})
	if !errors.Is(err, semantic.ErrIndexNotFound) {
		t.Errorf("Open(missing index) error = %v, want ErrIndexNotFound", err)
	}

	_, err = Open(OpenOptions{IndexPath: opts.IndexPath, MetadataPath: opts.MetadataPath + ".nope"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Open(missing metadata) error = %v, want ErrNotFound", err)
	}
}
