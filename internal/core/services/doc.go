// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// IngestionService runs the fetch, decode, chunk, embed and upload pipeline
// with at most one run per document in flight. QueryService answers
// document-scoped similarity queries and never ingests on a miss.
package services
