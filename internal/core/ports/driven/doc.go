// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - AdvisorySource: Lists and fetches advisory documents (GitHub)
//   - RecordSink: Receives normalized batches (SQLite, PostgreSQL, BigQuery, CSV, memory)
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - Reconciler: Implemented by sinks that stage batches. Without it the merge step is skipped.
//   - RawStore: Raw document archive (bbolt, GCS). Without it archival and transform are disabled.
//   - PipelineMetrics: Prometheus counters. Defaults to NopMetrics.
//   - RunHistory: Run summaries shown by `vulnsync runs`.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
