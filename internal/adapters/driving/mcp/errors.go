// Package mcp exposes the document retrieval pipeline as MCP (Model Context
// Protocol) tools so AI agents can add FHIR documents and search them.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// ErrMissingIngestionService is returned when the ingestion service is not provided.
var ErrMissingIngestionService = errors.New("mcp: ingestion service is required")

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// toolError carries an agent-facing message while keeping the cause for errors.Is.
type toolError struct {
	msg string
	err error
}

func (e *toolError) Error() string { return e.msg }
func (e *toolError) Unwrap() error { return e.err }

func newToolError(err error) error {
	return &toolError{msg: toolMessage(err), err: err}
}

// toolMessage maps pipeline errors to messages an agent can act on.
//
//nolint:gocyclo // Flat mapping over the error taxonomy
func toolMessage(err error) string {
	var (
		notIngested *domain.NotIngestedError
		unsupported *domain.UnsupportedFormatError
		decodeErr   *domain.DecodeError
		fetchErr    *domain.FetchError
		embedErr    *domain.EmbeddingUnavailableError
		indexErr    *domain.IndexError
	)

	switch {
	case errors.As(err, &notIngested):
		return fmt.Sprintf("Document %q has not been added yet. Call add_document with its url and document_id, then search again.",
			notIngested.DocumentID)
	case errors.As(err, &unsupported):
		if unsupported.Format == "" {
			return "Could not determine the document format. Pass format as one of: " + supportedFormats() + "."
		}
		return fmt.Sprintf("Unsupported document format %q. Supported formats: %s.", string(unsupported.Format), supportedFormats())
	case errors.As(err, &decodeErr):
		return fmt.Sprintf("The document could not be read as %s: %v", decodeErr.Format, decodeErr.Err)
	case errors.As(err, &fetchErr):
		if fetchErr.StatusCode != 0 {
			return fmt.Sprintf("Downloading %s failed with HTTP status %d.", fetchErr.URL, fetchErr.StatusCode)
		}
		return fmt.Sprintf("Downloading %s failed: %v", fetchErr.URL, fetchErr.Err)
	case errors.As(err, &embedErr):
		return fmt.Sprintf("The embedding model %q is unavailable: %v", embedErr.Model, embedErr.Err)
	case errors.As(err, &indexErr):
		return fmt.Sprintf("The vector index is unavailable: %v", indexErr.Err)
	case errors.Is(err, domain.ErrIngestionInProgress):
		return "The document is being added by another process. Retry shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return "Timed out waiting for the result. Ingestion continues in the background; check document_status."
	case errors.Is(err, domain.ErrInvalidInput):
		return "Invalid request: " + strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	default:
		return err.Error()
	}
}

func supportedFormats() string {
	return strings.Join([]string{
		string(domain.FormatPDF),
		string(domain.FormatText),
		string(domain.FormatCSV),
		string(domain.FormatJSON),
	}, ", ")
}
