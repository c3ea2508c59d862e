// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - Fetcher: Downloads raw document bytes by URL
//   - DecoderRegistry: Converts bytes of a declared format into text
//   - Segmenter: Splits text into ordered chunks
//   - EmbeddingService: Converts texts into fixed-dimension vectors
//   - VectorIndex: Namespaced upsert, filtered top-k search and point lookup
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the services degrade gracefully:
//
//   - IngestionLedger: Records ingestion runs. Without it, status has no history.
//   - IngestionLock: Cross-process ingestion exclusion. Without it, single-flight is per process.
//   - Metrics: Pipeline counters and timings. Without it, nothing is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, decoder, or segmenter package
package driven
