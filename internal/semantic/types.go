// Package semantic provides the vector index over embedded corpus records.
package semantic

import (
	"fmt"
	"strings"
	"time"
)

// Metric selects how vectors are compared. It is fixed at build time and
// stored in the index.
type Metric string

const (
	// MetricCosine L2-normalizes vectors and ranks by inner product, highest first.
	MetricCosine Metric = "cosine"
	// MetricL2 keeps raw vectors and ranks by squared Euclidean distance, lowest first.
	MetricL2 Metric = "l2"
)

// ParseMetric parses a metric name. "ip" and "inner_product" are accepted as
// aliases for cosine since vectors are normalized either way.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine", "ip", "inner_product":
		return MetricCosine, nil
	case "l2", "euclidean":
		return MetricL2, nil
	default:
		return "", fmt.Errorf("unknown metric %q (valid: cosine, l2)", s)
	}
}

// Valid reports whether m is a known metric.
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricL2
}

// HigherIsBetter reports whether larger scores rank first.
func (m Metric) HigherIsBetter() bool {
	return m == MetricCosine
}

// Index holds one vector per slot, in build order, with the record id that
// produced it. Slots are never reordered after Add.
type Index struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentIndexVersion when loading.
	Version int `json:"version"`

	// Metadata about the index
	BuildID        string    `json:"build_id"`
	ModelName      string    `json:"model_name"` // e.g., "all-minilm:l6-v2"
	Dimensions     int       `json:"dimensions"`
	Metric         Metric    `json:"metric"`
	CreatedAt      time.Time `json:"created_at"`
	MetadataDigest string    `json:"metadata_digest"` // Digest of the aligned metadata artifact

	IDs     []string    `json:"-"`
	Vectors [][]float32 `json:"-"`
}

// SearchResult is one hit: the slot, the record id stored at that slot and
// the metric score (similarity for cosine, squared distance for l2).
type SearchResult struct {
	Slot  int     `json:"slot"`
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// BuildStats contains statistics from index building.
type BuildStats struct {
	RecordsIndexed int           `json:"records_indexed"`
	RecordsSkipped int           `json:"records_skipped"`
	SkippedReason  string        `json:"skipped_reason"`
	Duration       time.Duration `json:"duration"`
	IndexSizeBytes int64         `json:"index_size_bytes"`
}
