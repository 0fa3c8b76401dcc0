// Package driving defines what the CLI and watch mode call into: ingestion,
// queries and settings. Implementations live in internal/core/services.
package driving
