// Package vector selects and opens the configured vector index backend.
package vector

import (
	"context"
	"fmt"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/bolt"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/memory"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/pinecone"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/qdrant"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Open opens the backend named by settings.Backend.
func Open(ctx context.Context, settings domain.VectorIndexSettings) (driven.VectorIndex, error) {
	switch settings.Backend {
	case domain.IndexBackendMemory:
		return memory.New(settings.Dimension, settings.Metric)
	case domain.IndexBackendBolt:
		if settings.Path == "" {
			return nil, fmt.Errorf("%w: bolt index path is required", domain.ErrInvalidInput)
		}
		return bolt.Open(settings.Path, settings.Dimension, settings.Metric)
	case domain.IndexBackendQdrant:
		return qdrant.Open(ctx, qdrant.Config{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Collection: settings.Name,
			Dimension:  settings.Dimension,
			Metric:     settings.Metric,
			Timeout:    settings.Timeout,
		})
	case domain.IndexBackendPinecone:
		return pinecone.Open(ctx, pinecone.Config{
			APIKey:     settings.APIKey,
			ControlURL: settings.URL,
			Name:       settings.Name,
			Dimension:  settings.Dimension,
			Metric:     settings.Metric,
			Cloud:      settings.Cloud,
			Region:     settings.Region,
			Timeout:    settings.Timeout,
		})
	default:
		return nil, fmt.Errorf("%w: unknown index backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}
