// Package segmenters builds text segmenters by strategy name.
package segmenters

import (
	"fmt"
	"sort"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Config is what a builder needs to construct a segmenter.
type Config struct {
	Settings domain.SegmenterSettings

	// Embedder is required by strategies that compare meaning.
	Embedder driven.EmbeddingService
}

// BuilderFunc creates a Segmenter from configuration.
type BuilderFunc func(cfg Config) (driven.Segmenter, error)

// Registry maps strategy names to their builders.
type Registry struct {
	builders map[string]BuilderFunc
}

// NewRegistry creates a new segmenter registry.
func NewRegistry() *Registry {
	return &Registry{
		builders: make(map[string]BuilderFunc),
	}
}

// Register adds a builder to the registry.
// Name should match the segmenter's Name() return value.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.builders[name] = builder
}

// Build creates a segmenter by name with the given config.
func (r *Registry) Build(name string, cfg Config) (driven.Segmenter, error) {
	builder, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown segmenter: %s", domain.ErrInvalidInput, name)
	}
	return builder(cfg)
}

// Has returns true if a segmenter with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.builders[name]
	return ok
}

// Names returns all registered strategy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
