package decoders

import (
	"context"
	"sort"
	"sync"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/csv"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/jsondoc"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/pdf"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.DecoderRegistry = (*Registry)(nil)

// Registry maps formats to decoders.
// It implements the DecoderRegistry interface.
type Registry struct {
	mu       sync.RWMutex
	decoders map[domain.Format]driven.Decoder
}

// NewRegistry creates an empty decoder registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[domain.Format]driven.Decoder),
	}
}

// NewDefaultRegistry creates a registry with every built-in decoder.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// RegisterDefaults registers the pdf, text, csv and json decoders.
func RegisterDefaults(r driven.DecoderRegistry) {
	r.Register(pdf.New())
	r.Register(plaintext.New())
	r.Register(csv.New())
	r.Register(jsondoc.New())
}

// Register adds a decoder for each of its formats, replacing earlier ones.
func (r *Registry) Register(decoder driven.Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range decoder.Formats() {
		r.decoders[f] = decoder
	}
}

// Decode decodes data with the decoder for format. Aliases such as "text"
// or "application/pdf" are accepted.
func (r *Registry) Decode(ctx context.Context, data []byte, format domain.Format) (string, error) {
	resolved, ok := domain.ParseFormat(string(format))
	if !ok {
		return "", &domain.UnsupportedFormatError{Format: format}
	}

	r.mu.RLock()
	decoder, ok := r.decoders[resolved]
	r.mu.RUnlock()
	if !ok {
		return "", &domain.UnsupportedFormatError{Format: format}
	}

	return decoder.Decode(ctx, data)
}

// Formats returns all registered formats in sorted order.
func (r *Registry) Formats() []domain.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]domain.Format, 0, len(r.decoders))
	for f := range r.decoders {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })
	return formats
}
