package domain

import (
	"mime"
	"path"
	"strings"
)

// Format is a declared document format.
type Format string

// Supported document formats.
const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// formatAliases maps accepted spellings, MIME types and extensions to formats.
var formatAliases = map[string]Format{
	"pdf":                   FormatPDF,
	".pdf":                  FormatPDF,
	"application/pdf":       FormatPDF,
	"txt":                   FormatText,
	".txt":                  FormatText,
	"text":                  FormatText,
	"plain":                 FormatText,
	"text/plain":            FormatText,
	"csv":                   FormatCSV,
	".csv":                  FormatCSV,
	"text/csv":              FormatCSV,
	"application/csv":       FormatCSV,
	"json":                  FormatJSON,
	".json":                 FormatJSON,
	"application/json":      FormatJSON,
	"application/fhir+json": FormatJSON,
	"text/json":             FormatJSON,
}

// ParseFormat resolves a format name, MIME type or file extension.
// It returns false when the value is empty or not recognised.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	if mediaType, _, err := mime.ParseMediaType(s); err == nil {
		s = mediaType
	}
	f, ok := formatAliases[s]
	return f, ok
}

// FormatFromURL guesses the format from the URL path extension.
func FormatFromURL(rawURL string) (Format, bool) {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := path.Ext(p)
	if ext == "" {
		return "", false
	}
	return ParseFormat(ext)
}

// String returns the string representation.
func (f Format) String() string {
	return string(f)
}
