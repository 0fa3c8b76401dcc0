// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - FormatDetector: Classifies a source stream by its first bytes
//   - ParserFactory: Opens a RecordParser for one detected format
//   - ConfigStore: Application configuration
//   - FileDiscoverer: Expands input paths into archive files
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - SnapshotCache: Per-file parse results keyed by content hash. Without it
//     every ingestion re-parses every file.
//   - ReportStore: History of ingestion reports. Without it only the last
//     report of the running process is available.
//   - FileWatcher: Change notifications for watch mode.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or parser package
package driven
