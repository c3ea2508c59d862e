package driven

import "context"

// Segmenter splits normalised text into an ordered sequence of chunk texts.
// Empty text yields an empty sequence, not an error. Segmenters keep no
// per-call state but may hold a model reference across calls.
type Segmenter interface {
	// Name returns the strategy name for logging and configuration.
	Name() string

	// Segment returns the chunk texts in document order.
	Segment(ctx context.Context, text string) ([]string, error)
}
