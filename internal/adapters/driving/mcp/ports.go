package mcp

import (
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Ingestion adds documents to the index.
	Ingestion driving.IngestionService

	// Query searches ingested documents.
	Query driving.QueryService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}
