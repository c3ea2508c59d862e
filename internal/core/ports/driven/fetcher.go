package driven

import "context"

// Fetcher downloads raw document bytes.
// Failures are reported as *domain.FetchError; fetchers never retry.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*FetchedDocument, error)
}

// FetchedDocument is the body of a successful download.
type FetchedDocument struct {
	// Content is the raw response body.
	Content []byte

	// ContentType is the response Content-Type header, possibly empty.
	ContentType string
}
