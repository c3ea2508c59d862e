package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, DotProduct([]float32{1, 2}, []float32{3, 4}), 1e-9)
}

func TestNegEuclidean(t *testing.T) {
	assert.InDelta(t, -5.0, NegEuclidean([]float32{0, 0}, []float32{3, 4}), 1e-9)
	assert.Greater(t, NegEuclidean([]float32{1, 1}, []float32{1, 1.1}), NegEuclidean([]float32{1, 1}, []float32{2, 2}))
}

func TestScorerFor(t *testing.T) {
	for _, m := range []domain.Metric{domain.MetricCosine, domain.MetricDotProduct, domain.MetricEuclidean} {
		t.Run(string(m), func(t *testing.T) {
			s, err := ScorerFor(m)
			require.NoError(t, err)
			assert.False(t, math.IsNaN(s([]float32{1, 2}, []float32{3, 4})))
		})
	}

	_, err := ScorerFor("manhattan")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSort_TieBreaks(t *testing.T) {
	results := []domain.SearchResult{
		{RecordID: "3-doc", ChunkIndex: 3, Score: 0.5},
		{RecordID: "x", ChunkIndex: -1, Score: 0.5},
		{RecordID: "1-doc", ChunkIndex: 1, Score: 0.5},
		{RecordID: "0-doc", ChunkIndex: 0, Score: 0.9},
		{RecordID: "1-other", ChunkIndex: 1, Score: 0.5},
	}
	Sort(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.RecordID
	}
	assert.Equal(t, []string{"0-doc", "1-doc", "1-other", "3-doc", "x"}, ids)
}

func TestTop(t *testing.T) {
	results := []domain.SearchResult{
		{RecordID: "a", ChunkIndex: 0, Score: 0.1},
		{RecordID: "b", ChunkIndex: 1, Score: 0.3},
		{RecordID: "c", ChunkIndex: 2, Score: 0.2},
	}

	top := Top(results, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "b", top[0].RecordID)
	assert.Equal(t, "c", top[1].RecordID)

	assert.Len(t, Top(results, 10), 3)
	assert.Empty(t, Top(results, 0))
}
