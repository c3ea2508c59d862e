package driven

import "context"

// IngestionLock provides mutual exclusion for a document across processes.
type IngestionLock interface {
	// TryAcquire takes the lock for documentID without waiting.
	// It returns ok=false when another holder owns it. The returned release
	// function is safe to call once the work finishes.
	TryAcquire(ctx context.Context, documentID string) (release func(context.Context) error, ok bool, err error)
}
