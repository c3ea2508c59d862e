// Package window provides a fixed-size sliding window segmenter.
package window

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Name is the strategy name used in configuration.
const Name = "window"

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// Segmenter splits text into windows of chunkSize characters, each
// sharing overlap characters with the previous one. Sizes count runes,
// so multi-byte characters are never split.
type Segmenter struct {
	chunkSize int
	overlap   int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Segmenter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Segmenter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// New creates a new window segmenter with the given options.
func New(opts ...Option) *Segmenter {
	s := &Segmenter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Overlap must stay below chunk size for the window to advance.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// Name returns the strategy name.
func (s *Segmenter) Name() string {
	return Name
}

// Overlap returns the effective overlap in characters.
func (s *Segmenter) Overlap() int {
	return s.overlap
}

// Segment splits text into overlapping windows. Dropping the first Overlap()
// characters of every chunk after the first and concatenating reproduces text.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	n := len(runes)
	step := s.chunkSize - s.overlap
	chunks := make([]string, 0, n/step+1)

	for start := 0; ; start += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+s.chunkSize, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}

	return chunks, nil
}
