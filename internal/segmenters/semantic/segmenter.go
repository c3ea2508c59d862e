// Package semantic splits text where the meaning of neighbouring sentence
// groups shifts, measured by embedding distance.
package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/rank"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Name is the strategy name used in configuration.
const Name = "semantic"

// DefaultBreakpointPercentile is the default split sensitivity.
const DefaultBreakpointPercentile = 95.0

// DefaultBufferSize is the default number of neighbouring sentences grouped
// on each side of a sentence.
const DefaultBufferSize = 1

// Ensure Segmenter implements the interface.
var _ driven.Segmenter = (*Segmenter)(nil)

// Segmenter groups consecutive sentences into chunks, starting a new chunk
// where the cosine distance between adjacent sentence groups exceeds the
// configured percentile of all such distances.
type Segmenter struct {
	embedder   driven.EmbeddingService
	percentile float64
	bufferSize int
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithBreakpointPercentile sets the percentile (0-100] above which a distance
// becomes a breakpoint. Lower values produce more, smaller chunks.
func WithBreakpointPercentile(p float64) Option {
	return func(s *Segmenter) {
		if p > 0 && p <= 100 {
			s.percentile = p
		}
	}
}

// WithBufferSize sets how many neighbouring sentences are combined with each
// sentence before embedding.
func WithBufferSize(n int) Option {
	return func(s *Segmenter) {
		if n >= 0 {
			s.bufferSize = n
		}
	}
}

// New creates a semantic segmenter embedding through embedder.
func New(embedder driven.EmbeddingService, opts ...Option) *Segmenter {
	s := &Segmenter{
		embedder:   embedder,
		percentile: DefaultBreakpointPercentile,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the strategy name.
func (s *Segmenter) Name() string {
	return Name
}

// Segment splits text at semantic breakpoints. Chunks are whitespace-trimmed
// and empty chunks are dropped.
func (s *Segmenter) Segment(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences := SplitSentences(text)
	if len(sentences) == 1 {
		return []string{strings.TrimSpace(text)}, nil
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, s.combine(sentences))
	if err != nil {
		return nil, fmt.Errorf("embed sentence groups: %w", err)
	}
	if len(embeddings) != len(sentences) {
		return nil, fmt.Errorf("embed sentence groups: got %d vectors for %d groups", len(embeddings), len(sentences))
	}

	distances := make([]float64, len(embeddings)-1)
	for i := range distances {
		distances[i] = 1 - rank.Cosine(embeddings[i], embeddings[i+1])
	}
	threshold := Percentile(distances, s.percentile)

	var chunks []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			chunks = appendChunk(chunks, sentences[start:i+1])
			start = i + 1
		}
	}
	chunks = appendChunk(chunks, sentences[start:])

	return chunks, nil
}

// combine joins each sentence with its bufferSize neighbours on either side.
func (s *Segmenter) combine(sentences []string) []string {
	combined := make([]string, len(sentences))
	for i := range sentences {
		lo := max(0, i-s.bufferSize)
		hi := min(len(sentences), i+s.bufferSize+1)
		combined[i] = strings.Join(sentences[lo:hi], "")
	}
	return combined
}

func appendChunk(chunks []string, sentences []string) []string {
	chunk := strings.TrimSpace(strings.Join(sentences, ""))
	if chunk == "" {
		return chunks
	}
	return append(chunks, chunk)
}

// SplitSentences splits text after runs of sentence terminators that are
// followed by whitespace or the end of text. Trailing whitespace stays with
// its sentence, so concatenating the result reproduces text.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) {
			continue
		}
		j := i + 1
		for j < len(runes) && isTerminator(runes[j]) {
			j++
		}
		if j < len(runes) && !unicode.IsSpace(runes[j]) {
			// "e.g" or "3.5": not a boundary.
			i = j - 1
			continue
		}
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		sentences = append(sentences, string(runes[start:j]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	default:
		return false
	}
}

// Percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. It returns +Inf for no values.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}
