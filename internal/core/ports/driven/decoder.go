package driven

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// Decoder converts raw bytes of one or more formats into normalised text.
// Decoders are pure: the same input always yields the same output.
type Decoder interface {
	// Formats returns the formats this decoder handles.
	Formats() []domain.Format

	// Decode parses the bytes. Parse failures are *domain.DecodeError.
	Decode(ctx context.Context, data []byte) (string, error)
}

// DecoderRegistry selects a decoder by declared format.
type DecoderRegistry interface {
	// Register adds a decoder for each of its formats.
	Register(decoder Decoder)

	// Decode decodes data with the decoder registered for format.
	// An absent or unknown format is a *domain.UnsupportedFormatError.
	Decode(ctx context.Context, data []byte, format domain.Format) (string, error)

	// Formats returns every registered format.
	Formats() []domain.Format
}
