package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Ensure ReportStore implements the interface.
var _ driven.ReportStore = (*ReportStore)(nil)

// ReportStore is an in-memory implementation of driven.ReportStore.
type ReportStore struct {
	mu      sync.RWMutex
	reports map[string]domain.IngestionReport
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		reports: make(map[string]domain.IngestionReport),
	}
}

// SaveReport stores a run's report.
func (s *ReportStore) SaveReport(_ context.Context, report *domain.IngestionReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := *report
	r.Files = slices.Clone(report.Files)
	s.reports[r.RunID] = r
	return nil
}

// LatestReport returns the most recently finished report.
func (s *ReportStore) LatestReport(ctx context.Context) (*domain.IngestionReport, error) {
	reports, _ := s.ListReports(ctx, 1)
	if len(reports) == 0 {
		return nil, domain.ErrNotFound
	}
	return &reports[0], nil
}

// ListReports returns reports newest first.
func (s *ReportStore) ListReports(_ context.Context, limit int) ([]domain.IngestionReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := make([]domain.IngestionReport, 0, len(s.reports))
	for _, r := range s.reports {
		r.Files = slices.Clone(r.Files)
		reports = append(reports, r)
	}
	slices.SortFunc(reports, func(a, b domain.IngestionReport) int {
		if c := b.FinishedAt.Compare(a.FinishedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RunID, b.RunID)
	})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}
