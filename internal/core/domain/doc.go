// Package domain defines the core business entities for Archeo.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawRecord: A parser's view of one message, chat turn or search entry
//   - Candidate: A canonicalised record awaiting identity resolution
//   - CanonicalEvent: A deduplicated, time-stamped unit of activity
//   - Participant: A resolved identity with its aliases
//   - RelationshipEdge: Directional interaction counts between two participants
//   - TimeBucket: A counted slice of the event timeline
//   - TopicSegment: A run of events sharing a vocabulary
//   - IngestionReport: Per-file accounting of a single ingestion run
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
