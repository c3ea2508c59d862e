package domain

import "time"

// IngestionState is a step of the per-document ingestion state machine.
type IngestionState string

// Ingestion states in pipeline order. Any non-terminal state may move to Failed.
const (
	IngestionNotStarted IngestionState = "NOT_STARTED"
	IngestionFetching   IngestionState = "FETCHING"
	IngestionDecoding   IngestionState = "DECODING"
	IngestionChunking   IngestionState = "CHUNKING"
	IngestionEmbedding  IngestionState = "EMBEDDING"
	IngestionUploading  IngestionState = "UPLOADING"
	IngestionDone       IngestionState = "DONE"
	IngestionFailed     IngestionState = "FAILED"
)

// ingestionSuccessor holds the single forward transition of each state.
var ingestionSuccessor = map[IngestionState]IngestionState{
	IngestionNotStarted: IngestionFetching,
	IngestionFetching:   IngestionDecoding,
	IngestionDecoding:   IngestionChunking,
	IngestionChunking:   IngestionEmbedding,
	IngestionEmbedding:  IngestionUploading,
	IngestionUploading:  IngestionDone,
}

// IsValid returns true if the state is recognised.
func (s IngestionState) IsValid() bool {
	_, ok := ingestionSuccessor[s]
	return ok || s == IngestionDone || s == IngestionFailed
}

// IsTerminal returns true for Done and Failed.
func (s IngestionState) IsTerminal() bool {
	return s == IngestionDone || s == IngestionFailed
}

// CanTransitionTo reports whether moving from s to next is legal.
// Embedding and Uploading alternate while batches are flushed, and a
// document without chunks may go straight from Chunking to Done.
func (s IngestionState) CanTransitionTo(next IngestionState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == IngestionFailed {
		return true
	}
	switch {
	case ingestionSuccessor[s] == next:
		return true
	case s == IngestionUploading && next == IngestionEmbedding:
		return true
	case s == IngestionChunking && next == IngestionDone:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s IngestionState) String() string {
	return string(s)
}

// IngestionRun records one pass of the ingestion pipeline for a document.
type IngestionRun struct {
	// ID uniquely identifies the run.
	ID string

	// DocumentID is the document being ingested.
	DocumentID string

	// SourceURL is where the document was fetched from.
	SourceURL string

	// Format is the resolved document format, empty until decoded.
	Format Format

	// State is the current state machine position.
	State IngestionState

	// Chunks is the number of chunks produced.
	Chunks int

	// Uploaded is the number of records written to the index so far.
	Uploaded int

	// Error holds the failure message when State is Failed.
	Error string

	// StartedAt is when the run began.
	StartedAt time.Time

	// UpdatedAt is the time of the last transition.
	UpdatedAt time.Time

	// FinishedAt is set once the run reaches a terminal state.
	FinishedAt *time.Time
}

// IngestRequest asks for a document to be ingested.
type IngestRequest struct {
	Document Document

	// Force re-ingests even when the document is already present.
	Force bool
}

// IngestOutcome describes what an ingest call did.
type IngestOutcome string

// Ingest outcomes.
const (
	// IngestOutcomeIngested means the pipeline ran to completion.
	IngestOutcomeIngested IngestOutcome = "ingested"

	// IngestOutcomeAlreadyPresent means the document was already in the index.
	IngestOutcomeAlreadyPresent IngestOutcome = "already_present"
)

// IngestResult is returned by a successful ingest call.
type IngestResult struct {
	// DocumentID is the ingested document.
	DocumentID string

	// RunID identifies the ledger run, empty when nothing ran.
	RunID string

	// Outcome is what the pipeline did.
	Outcome IngestOutcome

	// Chunks is the number of chunks uploaded.
	Chunks int

	// Coalesced is true when this caller joined another caller's in-flight run.
	Coalesced bool
}

// DocumentStatus reports presence plus the latest ingestion run.
type DocumentStatus struct {
	DocumentID string

	// Present is true when the presence record (chunk 0) exists.
	Present bool

	// InFlight is true when this process is currently ingesting the document.
	InFlight bool

	// LastRun is the most recent ledger entry, nil when none exists.
	LastRun *IngestionRun
}

// Incomplete reports the known gap where chunk 0 exists but the last
// recorded run did not finish.
func (s DocumentStatus) Incomplete() bool {
	return s.Present && !s.InFlight && s.LastRun != nil && s.LastRun.State != IngestionDone
}
