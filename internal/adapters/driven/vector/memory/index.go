// Package memory provides an in-process vector index for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/rank"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index stores records in memory and scores them by brute force.
type Index struct {
	mu         sync.RWMutex
	dimension  int
	score      rank.Scorer
	namespaces map[string]map[string]domain.VectorRecord
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, metric domain.Metric) (*Index, error) {
	score, err := rank.ScorerFor(metric)
	if err != nil {
		return nil, err
	}
	return &Index{
		dimension:  dimension,
		score:      score,
		namespaces: make(map[string]map[string]domain.VectorRecord),
	}, nil
}

// Upsert stores copies of the records, replacing any with the same ID.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return domain.NewIndexError("upsert", namespace, err)
	}
	for _, r := range records {
		if len(r.Values) != i.dimension {
			return domain.NewIndexError("upsert", namespace, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Values), i.dimension))
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	ns, ok := i.namespaces[namespace]
	if !ok {
		ns = make(map[string]domain.VectorRecord)
		i.namespaces[namespace] = ns
	}
	for _, r := range records {
		r.Values = append([]float32(nil), r.Values...)
		ns[r.ID] = r
	}
	return nil
}

// Search scores every record in the namespace that matches filter.
func (i *Index) Search(ctx context.Context, namespace string, query []float32, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewIndexError("search", namespace, err)
	}
	if len(query) != i.dimension {
		return nil, domain.NewIndexError("search", namespace, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), i.dimension))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	var results []domain.SearchResult
	for id, r := range i.namespaces[namespace] {
		if !filter.Matches(r.Metadata) {
			continue
		}
		results = append(results, domain.ResultFromRecord(id, r.Metadata, i.score(query, r.Values)))
	}
	return rank.Top(results, topK), nil
}

// Exists reports whether the record is stored in the namespace.
func (i *Index) Exists(ctx context.Context, namespace, recordID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewIndexError("exists", namespace, err)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.namespaces[namespace][recordID]
	return ok, nil
}

// Count returns the number of records in a namespace.
func (i *Index) Count(namespace string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.namespaces[namespace])
}

// Dimension returns the vector size.
func (i *Index) Dimension() int {
	return i.dimension
}

// Close releases resources.
func (i *Index) Close() error {
	return nil
}
