// Package plaintext decodes plain text documents of any character encoding.
package plaintext

import (
	"context"
	"errors"
	"strings"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/charset"
)

// Ensure Decoder implements the interface.
var _ driven.Decoder = (*Decoder)(nil)

// errBinary is returned for content that is not text at all.
var errBinary = errors.New("content contains NUL bytes, not a text document")

// Decoder handles plain text documents.
type Decoder struct{}

// New creates a new plain text decoder.
func New() *Decoder {
	return &Decoder{}
}

// Formats returns the formats this decoder handles.
func (d *Decoder) Formats() []domain.Format {
	return []domain.Format{domain.FormatText}
}

// Decode converts the bytes to UTF-8 text using the detected charset.
func (d *Decoder) Decode(_ context.Context, data []byte) (string, error) {
	text, _ := charset.Decode(data)
	if strings.ContainsRune(text, 0) {
		return "", &domain.DecodeError{Format: domain.FormatText, Err: errBinary}
	}
	return text, nil
}
