package driven

import (
	"context"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// SnapshotCache persists per-file parse results keyed by content hash, so
// unchanged files are not re-parsed on the next ingestion.
type SnapshotCache interface {
	// Get retrieves the snapshot for a content hash.
	// Returns domain.ErrNotFound when none is stored.
	Get(ctx context.Context, contentHash string) (*domain.Snapshot, error)

	// Put stores or replaces a snapshot.
	Put(ctx context.Context, snapshot *domain.Snapshot) error

	// Delete removes a snapshot. Deleting a missing snapshot is not an error.
	Delete(ctx context.Context, contentHash string) error

	// Prune removes snapshots written by any version other than keepVersion
	// and returns how many were removed.
	Prune(ctx context.Context, keepVersion int) (int, error)
}

// ReportStore keeps the reports of completed ingestion runs.
type ReportStore interface {
	// SaveReport stores a run's report, replacing one with the same run id.
	SaveReport(ctx context.Context, report *domain.IngestionReport) error

	// LatestReport returns the most recently finished report.
	// Returns domain.ErrNotFound when no run has been recorded.
	LatestReport(ctx context.Context) (*domain.IngestionReport, error)

	// ListReports returns reports newest first, at most limit (0 = all).
	ListReports(ctx context.Context, limit int) ([]domain.IngestionReport, error)
}
