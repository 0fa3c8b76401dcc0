package driving

import (
	"context"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Ingestor runs ingestion over archive files and publishes the result.
type Ingestor interface {
	// Ingest parses every file under paths, rebuilds the canonical store
	// and publishes it atomically. Directories are walked recursively.
	//
	// The returned report is non-nil whenever ingestion ran and records
	// per-file failures. The call fails only when files were found but none
	// could be ingested, in which case the error joins the file failures and
	// the previous store stays published. On cancellation nothing is
	// published.
	Ingest(ctx context.Context, paths []string) (*domain.IngestionReport, error)

	// Status returns progress of the current or last run.
	Status() domain.IngestStatus

	// LastReport returns the report of the last completed run, or nil.
	LastReport() *domain.IngestionReport
}
