package driven

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// VectorIndex stores vector records in namespaces and answers filtered
// similarity queries. Every failure is a *domain.IndexError carrying the cause.
type VectorIndex interface {
	// Upsert writes the records, overwriting any with the same ID.
	// A failed call leaves the namespace in an unknown state; there is no rollback.
	Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error

	// Search returns at most topK results matching filter, ordered by
	// descending score with ties broken by ascending chunk index.
	Search(ctx context.Context, namespace string, query []float32, topK int, filter domain.Filter) ([]domain.SearchResult, error)

	// Exists reports whether a record is stored. Absence is not an error.
	Exists(ctx context.Context, namespace, recordID string) (bool, error)

	// Dimension returns the vector size the index was created with.
	Dimension() int

	// Close releases resources.
	Close() error
}
