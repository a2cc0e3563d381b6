package semantic

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/cyberrag/crag/internal/embedding"
)

func TestDot(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical unit vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"45 degrees", embedding.Normalize([]float32{1, 1}), []float32{1, 0}, 0.7071067},
		{"unnormalized", []float32{2, 3}, []float32{4, 5}, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dot(tt.a, tt.b); math.Abs(float64(got-tt.want)) > 1e-4 {
				t.Errorf("Dot(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSquaredL2(t *testing.T) {
	if got := SquaredL2([]float32{1, 2}, []float32{4, 6}); got != 25 {
		t.Errorf("SquaredL2 = %v, want 25", got)
	}
	if got := SquaredL2([]float32{1, 2}, []float32{1, 2}); got != 0 {
		t.Errorf("SquaredL2 of identical vectors = %v, want 0", got)
	}
}

func slots(results []SearchResult) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Slot
	}
	return out
}

func TestSearch_Cosine(t *testing.T) {
	idx := NewIndex("test-model", 3, MetricCosine)
	idx.Add("V-1", []float32{1, 0, 0})
	idx.Add("V-2", []float32{0.9, 0.1, 0})
	idx.Add("V-3", []float32{0, 1, 0})
	idx.Add("V-4", []float32{0, 0, 1})

	results, err := idx.Search([]float32{2, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := slots(results); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Errorf("slots = %v, want [0 1 2]", got)
	}
	if results[0].ID != "V-1" {
		t.Errorf("top id = %s, want V-1", results[0].ID)
	}
	if math.Abs(float64(results[0].Score)-1) > 1e-5 {
		t.Errorf("top score = %v, want 1 (query is normalized)", results[0].Score)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not sorted descending at %d", i)
		}
	}
}

func TestSearch_L2(t *testing.T) {
	idx := NewIndex("test-model", 2, MetricL2)
	idx.Add("far", []float32{10, 10})
	idx.Add("near", []float32{1, 1})
	idx.Add("mid", []float32{3, 3})

	results, err := idx.Search([]float32{0, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if got := slots(results); !reflect.DeepEqual(got, []int{1, 2, 0}) {
		t.Errorf("slots = %v, want [1 2 0]", got)
	}
	if results[0].Score != 2 {
		t.Errorf("top distance = %v, want 2", results[0].Score)
	}
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	for _, metric := range []Metric{MetricCosine, MetricL2} {
		t.Run(string(metric), func(t *testing.T) {
			idx := NewIndex("m", 2, metric)
			idx.Add("x", []float32{0, 1})
			idx.Add("a", []float32{1, 0})
			idx.Add("b", []float32{1, 0})
			idx.Add("c", []float32{1, 0})

			results, err := idx.Search([]float32{1, 0}, 3)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if got := slots(results); !reflect.DeepEqual(got, []int{1, 2, 3}) {
				t.Errorf("slots = %v, want [1 2 3]", got)
			}
		})
	}
}

func TestSearch_Sizes(t *testing.T) {
	idx := NewIndex("m", 2, MetricCosine)
	idx.Add("a", []float32{1, 0})
	idx.Add("b", []float32{0, 1})
	idx.Add("c", []float32{1, 1})

	tests := []struct {
		name string
		k    int
		want int
	}{
		{"k larger than index", 5, 3},
		{"k equal to index", 3, 3},
		{"k smaller than index", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := idx.Search([]float32{1, 0}, tt.k)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d results, want %d", len(results), tt.want)
			}
			seen := map[int]bool{}
			for _, r := range results {
				if seen[r.Slot] {
					t.Errorf("duplicate slot %d", r.Slot)
				}
				seen[r.Slot] = true
			}
		})
	}
}

func TestSearch_Deterministic(t *testing.T) {
	idx := NewIndex("m", 3, MetricCosine)
	idx.Add("a", []float32{0.2, 0.5, 0.1})
	idx.Add("b", []float32{0.7, 0.1, 0.3})
	idx.Add("c", []float32{0.4, 0.4, 0.4})

	q := []float32{0.3, 0.3, 0.2}
	first, _ := idx.Search(q, 3)
	second, _ := idx.Search(q, 3)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated search differs: %v vs %v", first, second)
	}
}

func TestSearch_Errors(t *testing.T) {
	idx := NewIndex("m", 3, MetricCosine)
	idx.Add("a", []float32{1, 0, 0})

	t.Run("empty index returns empty result", func(t *testing.T) {
		empty := NewIndex("m", 3, MetricL2)
		results, err := empty.Search([]float32{1, 0, 0}, 5)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if results == nil || len(results) != 0 {
			t.Errorf("expected empty non-nil result, got %v", results)
		}
	})

	t.Run("rejects non-positive k", func(t *testing.T) {
		for _, k := range []int{0, -1} {
			if _, err := idx.Search([]float32{1, 0, 0}, k); !errors.Is(err, ErrInvalidK) {
				t.Errorf("Search(k=%d) error = %v, want ErrInvalidK", k, err)
			}
		}
	})

	t.Run("rejects wrong query dimensions", func(t *testing.T) {
		if _, err := idx.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("Search error = %v, want ErrDimensionMismatch", err)
		}
	})
}
