package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cyberrag/crag/internal/embedding"
	"github.com/cyberrag/crag/internal/record"
	"github.com/cyberrag/crag/internal/semantic"
	"github.com/cyberrag/crag/internal/storage"
	"github.com/google/uuid"
)

// BuildOptions configures Build.
type BuildOptions struct {
	Records      []record.CanonicalRecord
	Provider     embedding.Provider
	Metric       semantic.Metric
	IndexPath    string
	MetadataPath string
	Progress     semantic.ProgressReporter
	Logger       *slog.Logger
}

// BuildResult describes a completed build.
type BuildResult struct {
	BuildID           string               `json:"build_id"`
	ModelName         string               `json:"model_name"`
	Metric            semantic.Metric      `json:"metric"`
	Dimensions        int                  `json:"dimensions"`
	Stats             *semantic.BuildStats `json:"stats"`
	MetadataSizeBytes int64                `json:"metadata_size_bytes"`
	IndexPath         string               `json:"index_path"`
	MetadataPath      string               `json:"metadata_path"`
}

// ValidateRecords checks build input before any embedding happens: at least
// one record, every record valid, and no id used twice.
func ValidateRecords(recs []record.CanonicalRecord) error {
	if len(recs) == 0 {
		return fmt.Errorf("%w: no records with descriptive text", ErrBuildInput)
	}
	seen := make(map[string]int, len(recs))
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrBuildInput, i, err)
		}
		if j, dup := seen[rec.ID]; dup {
			return fmt.Errorf("%w: duplicate id %s (records %d and %d)", ErrBuildInput, rec.ID, j, i)
		}
		seen[rec.ID] = i
	}
	return nil
}

// Build embeds the records, then writes the metadata artifact and the index
// artifact. The index header carries a fresh build id and the digest of the
// metadata rows. A failure before the index is moved into place leaves any
// previous pair untouched.
func Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.IndexPath == "" || opts.MetadataPath == "" {
		return nil, fmt.Errorf("%w: index and metadata paths are required", ErrBuildInput)
	}
	if filepath.Clean(opts.IndexPath) == filepath.Clean(opts.MetadataPath) {
		return nil, fmt.Errorf("%w: index and metadata paths must differ", ErrBuildInput)
	}
	if err := ValidateRecords(opts.Records); err != nil {
		return nil, err
	}

	builder := semantic.NewBuilder(opts.Provider, opts.Metric)
	builder.SetLogger(logger)
	if opts.Progress != nil {
		builder.SetProgressReporter(opts.Progress)
	}

	idx, rows, stats, err := builder.Build(ctx, opts.Records)
	if err != nil {
		return nil, err
	}

	digest, err := storage.Digest(rows)
	if err != nil {
		return nil, err
	}
	idx.BuildID = uuid.NewString()
	idx.MetadataDigest = digest

	if err := writePair(idx, rows, opts.IndexPath, opts.MetadataPath); err != nil {
		return nil, err
	}

	result := &BuildResult{
		BuildID:      idx.BuildID,
		ModelName:    idx.ModelName,
		Metric:       idx.Metric,
		Dimensions:   idx.Dimensions,
		Stats:        stats,
		IndexPath:    opts.IndexPath,
		MetadataPath: opts.MetadataPath,
	}
	if size, err := semantic.FileSize(opts.IndexPath); err == nil {
		stats.IndexSizeBytes = size
	}
	if info, err := os.Stat(opts.MetadataPath); err == nil {
		result.MetadataSizeBytes = info.Size()
	}

	logger.Info("artifacts written",
		slog.String("build_id", idx.BuildID),
		slog.String("index", opts.IndexPath),
		slog.String("metadata", opts.MetadataPath),
		slog.Int("records", idx.Size()))

	return result, nil
}

// stagingPath returns a hidden sibling of path for build id. The extension
// is kept so the metadata format is still chosen by it.
func stagingPath(path, buildID string) string {
	return filepath.Join(filepath.Dir(path), "."+buildID[:8]+"."+filepath.Base(path))
}

// writePair writes both artifacts under staging names, then moves the index
// and finally the metadata into place. A failure before the index move
// leaves any previous pair untouched.
func writePair(idx *semantic.Index, rows []record.Metadata, indexPath, metadataPath string) error {
	stagedMeta := stagingPath(metadataPath, idx.BuildID)
	stagedIndex := stagingPath(indexPath, idx.BuildID)

	if err := storage.Write(stagedMeta, rows); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := idx.Save(stagedIndex); err != nil {
		os.Remove(stagedMeta)
		return fmt.Errorf("writing index: %w", err)
	}
	if err := os.Rename(stagedIndex, indexPath); err != nil {
		os.Remove(stagedIndex)
		os.Remove(stagedMeta)
		return fmt.Errorf("replacing index: %w", err)
	}
	// The new index is in place; an old metadata file left behind fails the
	// digest check at open.
	if err := os.Rename(stagedMeta, metadataPath); err != nil {
		os.Remove(stagedMeta)
		return fmt.Errorf("replacing metadata: %w", err)
	}
	return nil
}
