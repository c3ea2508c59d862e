package driven

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// IngestionLedger records ingestion runs and their state transitions.
type IngestionLedger interface {
	// SaveRun creates or updates a run.
	SaveRun(ctx context.Context, run domain.IngestionRun) error

	// GetRun retrieves a run by ID. Returns domain.ErrNotFound if missing.
	GetRun(ctx context.Context, runID string) (*domain.IngestionRun, error)

	// LatestRun returns the most recently started run for a document.
	// Returns domain.ErrNotFound if the document was never ingested.
	LatestRun(ctx context.Context, documentID string) (*domain.IngestionRun, error)

	// ListRuns returns a document's runs, newest first.
	ListRuns(ctx context.Context, documentID string) ([]domain.IngestionRun, error)
}
