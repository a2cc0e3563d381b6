package semantic

import (
	"fmt"
	"sort"

	"github.com/cyberrag/crag/internal/embedding"
)

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 returns the squared Euclidean distance between two equal-length vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// score compares query against the vector at slot i under the index metric.
func (idx *Index) score(query []float32, i int) float32 {
	if idx.Metric == MetricCosine {
		return Dot(query, idx.Vectors[i])
	}
	return SquaredL2(query, idx.Vectors[i])
}

// Search returns the min(k, Size()) nearest slots to query, best first.
// Every slot is scored (exact search). Equal scores keep insertion order, so
// the earliest slot wins a tie. An empty index yields an empty result.
func (idx *Index) Search(query []float32, k int) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidK, k)
	}
	if len(query) != idx.Dimensions {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), idx.Dimensions)
	}
	if idx.Size() == 0 {
		return []SearchResult{}, nil
	}

	q := query
	if idx.Metric == MetricCosine {
		q = embedding.Normalize(query)
	}

	results := make([]SearchResult, idx.Size())
	for i := range idx.Vectors {
		results[i] = SearchResult{Slot: i, ID: idx.IDs[i], Score: idx.score(q, i)}
	}

	higher := idx.Metric.HigherIsBetter()
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Score, results[j].Score
		if higher {
			return a > b
		}
		return a < b
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}
