// Package domain defines the core entities of the document retrieval pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An externally hosted file to ingest, keyed by its record identifier
//   - Chunk: A bounded, ordered segment of a document's text
//   - VectorRecord: A chunk's embedding plus metadata as stored in the vector index
//   - SearchResult: A ranked passage returned for a query
//   - IngestionRun: One pass of the ingestion state machine for a document
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
