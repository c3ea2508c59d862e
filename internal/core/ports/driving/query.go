package driving

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// QueryService retrieves ranked passages scoped to one document.
type QueryService interface {
	// Query returns passages ordered by descending score. A document that
	// was never ingested yields *domain.NotIngestedError.
	Query(ctx context.Context, req domain.QueryRequest) ([]domain.SearchResult, error)
}
