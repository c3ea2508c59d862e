package segmenters

import (
	"errors"
	"fmt"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/segmenters/semantic"
	"github.com/the-momentum/fhir-mcp-server/internal/segmenters/window"
)

// RegisterDefaults registers all built-in strategies with the registry.
func RegisterDefaults(r *Registry) {
	r.Register(window.Name, buildWindow)
	r.Register(semantic.Name, buildSemantic)
}

// New builds the segmenter selected by settings using the default strategies.
func New(settings domain.SegmenterSettings, embedder driven.EmbeddingService) (driven.Segmenter, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.Build(string(settings.Strategy), Config{Settings: settings, Embedder: embedder})
}

// buildWindow uses chunk_size and chunk_overlap.
func buildWindow(cfg Config) (driven.Segmenter, error) {
	s := cfg.Settings
	if s.ChunkSize > 0 && s.ChunkOverlap >= s.ChunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be less than chunk size %d",
			domain.ErrInvalidInput, s.ChunkOverlap, s.ChunkSize)
	}

	var opts []window.Option
	if s.ChunkSize > 0 {
		opts = append(opts, window.WithChunkSize(s.ChunkSize))
	}
	if s.ChunkOverlap >= 0 {
		opts = append(opts, window.WithOverlap(s.ChunkOverlap))
	}
	return window.New(opts...), nil
}

// buildSemantic uses breakpoint_percentile and buffer_size.
func buildSemantic(cfg Config) (driven.Segmenter, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("semantic segmenter requires an embedding service")
	}

	var opts []semantic.Option
	if cfg.Settings.BreakpointPercentile > 0 {
		opts = append(opts, semantic.WithBreakpointPercentile(cfg.Settings.BreakpointPercentile))
	}
	if cfg.Settings.BufferSize >= 0 {
		opts = append(opts, semantic.WithBufferSize(cfg.Settings.BufferSize))
	}
	return semantic.New(cfg.Embedder, opts...), nil
}
