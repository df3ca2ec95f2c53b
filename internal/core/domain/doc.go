// Package domain defines the core entities for vulnsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Advisory: A CVE JSON 5 document with per-field presence
//   - Record: The normalized 26-column form of an advisory
//   - Manifest: The fetchable advisory files of one partition (year)
//   - Batch: The records of one partition handed to a sink
//
// It also holds the fixed lookup tables the extractor is configured with
// (CVSS version preference, vector code tables, the SSVC decision table) and
// the in-memory last-write-wins reconciliation used by the merge step.
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
