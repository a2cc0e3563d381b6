package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cyberrag/crag/internal/config"
	"github.com/cyberrag/crag/internal/corpus"
	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/query"
	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
	"github.com/spf13/cobra"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"build input", fmt.Errorf("reading: %w", corpus.ErrBuildInput), ExitDataError},
		{"alignment", corpus.ErrAlignment, ExitAlignmentError},
		{"model mismatch", corpus.ErrModelMismatch, ExitAlignmentError},
		{"metric mismatch", fmt.Errorf("open: %w", semantic.ErrMetricMismatch), ExitAlignmentError},
		{"encoder unavailable", fmt.Errorf("embedding query: %w", embedding.ErrUnavailable), ExitEncoderUnavailable},
		{"model not found", embedding.ErrModelNotFound, ExitModelNotFound},
		{"index missing", semantic.ErrIndexNotFound, ExitConfigError},
		{"metadata missing", storage.ErrNotFound, ExitConfigError},
		{"unsupported version", semantic.ErrUnsupportedVersion, ExitConfigError},
		{"other", errors.New("boom"), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHintFor(t *testing.T) {
	if hintFor(semantic.ErrIndexNotFound) == "" {
		t.Error("expected a hint for a missing index")
	}
	if hintFor(errors.New("boom")) != "" {
		t.Error("expected no hint for an unknown error")
	}
}

func TestIsEncoderFailure(t *testing.T) {
	if !isEncoderFailure(fmt.Errorf("embedding query: %w", embedding.ErrUnavailable)) {
		t.Error("ErrUnavailable should end the session")
	}
	if isEncoderFailure(semantic.ErrInvalidK) {
		t.Error("ErrInvalidK should not end the session")
	}
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		current, total int
		want           string
	}{
		{0, 0, ""},
		{0, 10, "\r[>                             ] 0/10 (0%)"},
		{5, 10, "\r[===============>              ] 5/10 (50%)"},
		{10, 10, "\r[==============================] 10/10 (100%)"},
	}
	for _, tt := range tests {
		if got := progressLine(tt.current, tt.total); got != tt.want {
			t.Errorf("progressLine(%d, %d) = %q, want %q", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewSearchResponse(t *testing.T) {
	result := &query.Result{
		Query:          "CWE-79 impact",
		RetrievalQuery: "CWE-79 impact Related CWE IDs: CWE-79",
		Metric:         semantic.MetricL2,
		Hits: []query.Hit{{
			Rank:  1,
			Slot:  3,
			Score: 0.25,
			Record: record.Metadata{
				Slot: 3, ID: "CWE-79", Title: "Cross-site Scripting",
				SourceKind: record.KindWeakness, BodyText: "body",
			},
		}},
	}

	resp := newSearchResponse(result)
	if resp.Total != 1 || len(resp.Results) != 1 {
		t.Fatalf("Total = %d, results = %d, want 1", resp.Total, len(resp.Results))
	}
	if resp.ScoreLabel != "Distance" {
		t.Errorf("ScoreLabel = %q, want Distance", resp.ScoreLabel)
	}
	hit := resp.Results[0]
	if hit.Title != "CWE-79: Cross-site Scripting" || hit.Source != "CWE" {
		t.Errorf("unexpected hit: %+v", hit)
	}
}

func TestNewSearchResponse_NoHits(t *testing.T) {
	resp := newSearchResponse(&query.Result{Metric: semantic.MetricCosine, Hits: []query.Hit{}})
	if resp.Results == nil {
		t.Error("Results should be an empty slice, not nil")
	}
}

func TestWriteRecords_ReadsBackAsCanonical(t *testing.T) {
	recs := []record.CanonicalRecord{
		{ID: "V-1001", SourceKind: record.KindChecklist, Title: "Disable unused services", BodyText: "Disable unused services. Services add risk.", Severity: "high"},
		{ID: "CWE-22", SourceKind: record.KindWeakness, Title: "Path Traversal", BodyText: "Path Traversal. Validate <paths> & names."},
	}

	var buf bytes.Buffer
	if err := writeRecords(&buf, recs); err != nil {
		t.Fatalf("writeRecords() error = %v", err)
	}
	if strings.Contains(buf.String(), `\u003c`) {
		t.Error("output should not HTML-escape text")
	}

	got, stats, err := corpus.ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if stats.Kept != 2 || len(got) != 2 {
		t.Fatalf("read %d records, want 2", len(got))
	}
	for i := range recs {
		if got[i].ID != recs[i].ID || got[i].BodyText != recs[i].BodyText || got[i].SourceKind != recs[i].SourceKind {
			t.Errorf("record %d = %+v, want %+v", i, got[i], recs[i])
		}
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg = config.Default()
	t.Cleanup(func() { cfg = nil })

	cmd := &cobra.Command{Use: "test"}
	addArtifactFlags(cmd)
	addProviderFlags(cmd)
	addQueryFlags(cmd)
	if err := cmd.ParseFlags([]string{"--index", "out/c.index", "--metric", "l2", "--provider", "hashing", "-k", "3", "--no-rewrite"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	applyOverrides(cmd)

	if cfg.Index.Path != "out/c.index" {
		t.Errorf("Index.Path = %q", cfg.Index.Path)
	}
	if cfg.Index.MetadataPath != config.DefaultMetadataPath {
		t.Errorf("MetadataPath = %q, want default", cfg.Index.MetadataPath)
	}
	if cfg.Index.Metric != "l2" || cfg.Embedding.Provider != "hashing" || cfg.Query.TopK != 3 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Rewrite() {
		t.Error("Rewrite() = true after --no-rewrite")
	}
}
