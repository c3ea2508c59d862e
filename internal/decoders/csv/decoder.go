// Package csv decodes CSV documents into one line of text per row.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders/charset"
)

// Ensure Decoder implements the interface.
var _ driven.Decoder = (*Decoder)(nil)

// cellSeparator joins the cells of a row.
const cellSeparator = ", "

// Decoder handles comma separated values.
type Decoder struct{}

// New creates a new CSV decoder.
func New() *Decoder {
	return &Decoder{}
}

// Formats returns the formats this decoder handles.
func (d *Decoder) Formats() []domain.Format {
	return []domain.Format{domain.FormatCSV}
}

// Decode parses the rows and renders each as its cells joined by ", ".
// Rows may have differing numbers of fields.
func (d *Decoder) Decode(_ context.Context, data []byte) (string, error) {
	text, _ := charset.Decode(data)

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1

	var lines []string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", &domain.DecodeError{Format: domain.FormatCSV, Err: err}
		}
		lines = append(lines, strings.Join(row, cellSeparator))
	}
	return strings.Join(lines, "\n"), nil
}
