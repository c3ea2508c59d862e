// Package embedding selects and constructs the configured embedding provider.
package embedding

import (
	"context"
	"fmt"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/embedding/lazy"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/embedding/ollama"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/embedding/openai"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// New returns a lazily loaded embedding service for the settings. The
// provider is not contacted until the first embedding is requested. Vectors
// must have indexDimension elements.
func New(settings domain.EmbeddingSettings, indexDimension int) (*lazy.Service, error) {
	if !settings.Provider.IsValid() {
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, settings.Provider)
	}

	factory := func(_ context.Context) (driven.EmbeddingService, error) {
		return newProvider(settings, indexDimension)
	}

	return lazy.New(settings.Model, factory,
		lazy.WithBatchSize(settings.BatchSize),
		lazy.WithExpectedDimension(indexDimension),
	), nil
}

func newProvider(settings domain.EmbeddingSettings, dimension int) (driven.EmbeddingService, error) {
	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimension,
		}), nil
	case domain.AIProviderOpenAI:
		return openai.NewEmbeddingService(openai.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Timeout:    settings.Timeout,
			Dimensions: dimension,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}
