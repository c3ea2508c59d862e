// Package lazy defers construction of an embedding provider until the first
// request and enforces batch limits and output shape on every call.
package lazy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// DefaultBatchSize is the largest number of texts sent in one provider call.
const DefaultBatchSize = 96

// probeText is embedded once on load to learn the model's output dimension.
const probeText = "dimension probe"

// Ensure Service implements the interface.
var _ driven.EmbeddingService = (*Service)(nil)

// Factory constructs the underlying provider.
type Factory func(ctx context.Context) (driven.EmbeddingService, error)

// Service is an EmbeddingService whose provider is built on first use.
// Concurrent first callers wait for a single construction. A dimension
// mismatch with the index is permanent; other load failures are not cached
// and the next call tries again.
type Service struct {
	factory   Factory
	model     string
	expected  int
	batchSize int

	mu       sync.Mutex
	provider driven.EmbeddingService
	dims     int
	fatal    error
}

// Option configures the service.
type Option func(*Service)

// WithBatchSize caps the number of texts per provider call.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithExpectedDimension requires the model to produce vectors of size d.
// Zero accepts whatever the model produces.
func WithExpectedDimension(d int) Option {
	return func(s *Service) {
		if d >= 0 {
			s.expected = d
		}
	}
}

// New creates a lazy service for model built by factory.
func New(model string, factory Factory, opts ...Option) *Service {
	s := &Service{
		factory:   factory,
		model:     model,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load returns the provider, constructing it if needed.
func (s *Service) load(ctx context.Context) (driven.EmbeddingService, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil {
		return s.provider, s.dims, nil
	}
	if s.fatal != nil {
		return nil, 0, s.fatal
	}

	logger.Debug("embedding: loading model %s", s.model)

	provider, err := s.factory(ctx)
	if err != nil {
		return nil, 0, s.unavailable(fmt.Errorf("create provider: %w", err))
	}
	if err := provider.Ping(ctx); err != nil {
		_ = provider.Close()
		return nil, 0, s.unavailable(err)
	}
	probe, err := provider.EmbedBatch(ctx, []string{probeText})
	if err != nil {
		_ = provider.Close()
		return nil, 0, s.unavailable(fmt.Errorf("probe: %w", err))
	}
	if len(probe) != 1 || len(probe[0]) == 0 {
		_ = provider.Close()
		return nil, 0, s.unavailable(errors.New("probe returned no vector"))
	}

	dims := len(probe[0])
	if s.expected > 0 && dims != s.expected {
		_ = provider.Close()
		s.fatal = s.unavailable(fmt.Errorf("%w: model produces %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, dims, s.expected))
		return nil, 0, s.fatal
	}

	s.provider = provider
	s.dims = dims
	logger.Debug("embedding: model %s loaded (%d dimensions)", s.model, dims)
	return provider, dims, nil
}

func (s *Service) unavailable(err error) error {
	return &domain.EmbeddingUnavailableError{Model: s.model, Err: err}
}

// Embed generates a vector embedding for the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in provider calls of at most the batch size.
// The result has one vector per text, each of the loaded dimension.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	provider, dims, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch, err := provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, s.unavailable(err)
		}
		if len(batch) != end-start {
			return nil, s.unavailable(fmt.Errorf("got %d vectors for %d texts", len(batch), end-start))
		}
		for i, v := range batch {
			if len(v) != dims {
				return nil, s.unavailable(fmt.Errorf("%w: vector %d has %d dimensions, want %d",
					domain.ErrDimensionMismatch, start+i, len(v), dims))
			}
		}
		out = append(out, batch...)
	}

	return out, nil
}

// Dimensions returns the loaded model dimension, or the expected dimension
// before the model is loaded.
func (s *Service) Dimensions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != nil {
		return s.dims
	}
	return s.expected
}

// ModelName returns the configured model name.
func (s *Service) ModelName() string {
	return s.model
}

// Loaded reports whether the provider has been constructed.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider != nil
}

// Ping loads the model if needed.
func (s *Service) Ping(ctx context.Context) error {
	_, _, err := s.load(ctx)
	return err
}

// Close releases the provider if it was loaded.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		return nil
	}
	err := s.provider.Close()
	s.provider = nil
	return err
}
