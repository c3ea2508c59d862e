// Package pdf extracts the plain text of PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure Decoder implements the interface.
var _ driven.Decoder = (*Decoder)(nil)

// Decoder handles PDF documents.
type Decoder struct{}

// New creates a new PDF decoder.
func New() *Decoder {
	return &Decoder{}
}

// Formats returns the formats this decoder handles.
func (d *Decoder) Formats() []domain.Format {
	return []domain.Format{domain.FormatPDF}
}

// Decode extracts the text of every page, joining pages with a newline.
// Malformed files are reported as *domain.DecodeError.
func (d *Decoder) Decode(ctx context.Context, data []byte) (text string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &domain.DecodeError{Format: domain.FormatPDF, Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &domain.DecodeError{Format: domain.FormatPDF, Err: err}
	}

	pages := make([]string, 0, reader.NumPage())
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			return "", &domain.DecodeError{Format: domain.FormatPDF, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}
