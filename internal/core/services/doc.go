// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Extractor normalizes advisories, the Pipeline runs the bounded
// ingestion worker pool, the MergeCoordinator reconciles staging sinks and
// the ArchiveTransformer replays archived raw documents.
//
// Services are pure Go with no CGO. The only third-party import is uuid for
// run identifiers.
package services
