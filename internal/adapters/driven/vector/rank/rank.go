// Package rank scores vectors under a similarity metric and orders search
// results deterministically. It is shared by the embedded index backends and
// by the semantic segmenter.
package rank

import (
	"fmt"
	"math"
	"sort"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// Scorer returns a similarity score where higher means more similar.
type Scorer func(a, b []float32) float64

// ScorerFor returns the scorer for a metric.
func ScorerFor(metric domain.Metric) (Scorer, error) {
	switch metric {
	case domain.MetricCosine:
		return Cosine, nil
	case domain.MetricDotProduct:
		return DotProduct, nil
	case domain.MetricEuclidean:
		return NegEuclidean, nil
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}
}

// Cosine returns the cosine similarity of a and b, or 0 if either is a zero vector.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DotProduct returns the inner product of a and b.
func DotProduct(a, b []float32) float64 {
	var dot float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// NegEuclidean returns the negated Euclidean distance so that closer vectors
// score higher.
func NegEuclidean(a, b []float32) float64 {
	var sum float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return -math.Sqrt(sum)
}

// Sort orders results by descending score, then ascending chunk index, then
// record ID. Results with an unknown chunk index sort after known ones on ties.
func Sort(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ChunkIndex != b.ChunkIndex {
			return chunkKey(a.ChunkIndex) < chunkKey(b.ChunkIndex)
		}
		return a.RecordID < b.RecordID
	})
}

// Top sorts results and truncates them to at most k entries.
func Top(results []domain.SearchResult, k int) []domain.SearchResult {
	Sort(results)
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func chunkKey(idx int) int {
	if idx < 0 {
		return math.MaxInt
	}
	return idx
}
