package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// The typed errors below wrap these so callers can use errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrFetchFailed indicates a document could not be downloaded.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrUnsupportedFormat indicates the document format is absent or unknown.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrDecodeFailed indicates bytes could not be parsed as the declared format.
	ErrDecodeFailed = errors.New("decode failed")

	// ErrEmbeddingUnavailable indicates the embedding model cannot be produced.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates a vector index operation failed.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates vectors and index disagree on dimension.
	// This is a configuration error and is never retried.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotIngested indicates the document has no records in the index yet.
	ErrNotIngested = errors.New("document not ingested")

	// ErrIngestionInProgress indicates another process is ingesting the document.
	ErrIngestionInProgress = errors.New("ingestion in progress")

	// ErrInvalidTransition indicates an illegal ingestion state change.
	ErrInvalidTransition = errors.New("invalid ingestion state transition")
)

// FetchError reports a failed document download.
type FetchError struct {
	URL string

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Err}
}

// UnsupportedFormatError reports an absent or unrecognised format.
type UnsupportedFormatError struct {
	Format Format
}

func (e *UnsupportedFormatError) Error() string {
	if e.Format == "" {
		return "unsupported format: format is required"
	}
	return fmt.Sprintf("unsupported format: %q", string(e.Format))
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// DecodeError reports bytes that could not be parsed as the declared format.
type DecodeError struct {
	Format Format
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecodeFailed, e.Err}
}

// EmbeddingUnavailableError reports that the embedding model could not be loaded.
// It is fatal for the calling orchestrator.
type EmbeddingUnavailableError struct {
	Model string
	Err   error
}

func (e *EmbeddingUnavailableError) Error() string {
	return fmt.Sprintf("embedding model %q unavailable: %v", e.Model, e.Err)
}

func (e *EmbeddingUnavailableError) Unwrap() []error {
	return []error{ErrEmbeddingUnavailable, e.Err}
}

// IndexError reports a vector index failure, connectivity or malformed response.
type IndexError struct {
	Op        string
	Namespace string
	Err       error
}

func (e *IndexError) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("vector index %s (namespace %q): %v", e.Op, e.Namespace, e.Err)
	}
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() []error {
	return []error{ErrVectorIndexUnavailable, e.Err}
}

// NewIndexError wraps err as an IndexError. A nil err returns nil, and an
// existing IndexError is returned unchanged.
func NewIndexError(op, namespace string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IndexError
	if errors.As(err, &ie) {
		return err
	}
	return &IndexError{Op: op, Namespace: namespace, Err: err}
}

// NotIngestedError reports a query against a document that was never ingested.
// It is a recoverable condition, distinct from failure.
type NotIngestedError struct {
	DocumentID string
}

func (e *NotIngestedError) Error() string {
	return fmt.Sprintf("document %q does not exist in the index", e.DocumentID)
}

func (e *NotIngestedError) Unwrap() error {
	return ErrNotIngested
}
