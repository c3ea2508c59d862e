package driven

import "time"

// Metrics records pipeline counters and timings.
type Metrics interface {
	// ObserveIngestion records a finished ingest call.
	ObserveIngestion(outcome string, elapsed time.Duration, chunks int)

	// ObserveQuery records a finished query call.
	ObserveQuery(outcome string, elapsed time.Duration, results int)

	// IncCoalesced counts a caller that joined an in-flight ingestion.
	IncCoalesced()
}
