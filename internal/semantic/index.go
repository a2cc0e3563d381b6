package semantic

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyberrag/crag/internal/embedding"
)

// Errors returned by index operations.
var (
	ErrIndexNotFound      = errors.New("vector index not found")
	ErrUnsupportedVersion = errors.New("unsupported index version")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrMetricMismatch     = errors.New("index metric mismatch")
	ErrInvalidK           = errors.New("k must be positive")
	ErrCorruptIndex       = errors.New("corrupt vector index")
)

const (
	// DefaultIndexFileName is the default name of the vector index artifact.
	DefaultIndexFileName = "corpus.index"

	// CurrentIndexVersion is the format version for compatibility checking.
	// Increment this when making breaking changes to the index format.
	CurrentIndexVersion = 1
)

// NewIndex creates an empty index for vectors of the given model and width.
func NewIndex(modelName string, dimensions int, metric Metric) *Index {
	return &Index{
		Version:    CurrentIndexVersion,
		ModelName:  modelName,
		Dimensions: dimensions,
		Metric:     metric,
		CreatedAt:  time.Now().UTC(),
	}
}

// Add appends a vector for id at the next slot and returns that slot.
// Under MetricCosine the stored vector is L2-normalized.
func (idx *Index) Add(id string, vec []float32) (int, error) {
	if len(vec) != idx.Dimensions {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), idx.Dimensions)
	}
	stored := make([]float32, len(vec))
	copy(stored, vec)
	if idx.Metric == MetricCosine {
		stored = embedding.Normalize(stored)
	}
	idx.IDs = append(idx.IDs, id)
	idx.Vectors = append(idx.Vectors, stored)
	return len(idx.Vectors) - 1, nil
}

// Size returns the number of slots.
func (idx *Index) Size() int {
	return len(idx.Vectors)
}

// CheckMetric returns ErrMetricMismatch if the index was built under a
// different metric than m.
func (idx *Index) CheckMetric(m Metric) error {
	if idx.Metric != m {
		return fmt.Errorf("%w: index built with %q, configured %q", ErrMetricMismatch, idx.Metric, m)
	}
	return nil
}

// validate checks the internal consistency of a decoded index.
func (idx *Index) validate() error {
	if !idx.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %q", ErrCorruptIndex, idx.Metric)
	}
	if len(idx.IDs) != len(idx.Vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", ErrCorruptIndex, len(idx.IDs), len(idx.Vectors))
	}
	for i, v := range idx.Vectors {
		if len(v) != idx.Dimensions {
			return fmt.Errorf("%w: slot %d has %d dimensions, want %d", ErrCorruptIndex, i, len(v), idx.Dimensions)
		}
	}
	return nil
}

// Save persists the index to path using GOB encoding. The file is written to
// a temp file first and renamed into place.
func (idx *Index) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating index directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	enc := gob.NewEncoder(f)
	if err := enc.Encode(idx); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding index: %w", err)
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

// Load reads an index from path.
// Returns ErrUnsupportedVersion if the index was created with an incompatible format.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, path)
		}
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	var idx Index
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrCorruptIndex, path, err)
	}

	if idx.Version != CurrentIndexVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'crag build')",
			ErrUnsupportedVersion, idx.Version, CurrentIndexVersion)
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}

	return &idx, nil
}

// FileSize returns the size of the index file in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrIndexNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}
