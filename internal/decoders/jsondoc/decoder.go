// Package jsondoc decodes JSON documents into indented, normalised text.
package jsondoc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/charset"
)

// Ensure Decoder implements the interface.
var _ driven.Decoder = (*Decoder)(nil)

// indent is the per-level indentation of the rendered document.
const indent = "  "

var errInvalidJSON = errors.New("invalid JSON document")

// Decoder handles JSON documents, including FHIR resources.
type Decoder struct{}

// New creates a new JSON decoder.
func New() *Decoder {
	return &Decoder{}
}

// Formats returns the formats this decoder handles.
func (d *Decoder) Formats() []domain.Format {
	return []domain.Format{domain.FormatJSON}
}

// Decode validates the document and re-renders it with two-space indentation.
// Object key order and string contents are preserved.
func (d *Decoder) Decode(_ context.Context, data []byte) (string, error) {
	text, _ := charset.Decode(data)
	raw := []byte(text)

	if !json.Valid(raw) {
		return "", &domain.DecodeError{Format: domain.FormatJSON, Err: errInvalidJSON}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, bytes.TrimSpace(raw), "", indent); err != nil {
		return "", &domain.DecodeError{Format: domain.FormatJSON, Err: err}
	}
	return out.String(), nil
}
