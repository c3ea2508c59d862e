package driving

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// IngestionService turns remote documents into searchable passages.
type IngestionService interface {
	// Ingest runs the pipeline for a document. Concurrent calls for the same
	// document share one run.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error)

	// Status reports whether a document is present and its latest run.
	Status(ctx context.Context, documentID string) (*domain.DocumentStatus, error)
}
