package cli

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
)

// mockIngestor implements driving.Ingestor for testing.
type mockIngestor struct {
	report *domain.IngestionReport
	err    error
	paths  []string
}

func (m *mockIngestor) Ingest(_ context.Context, paths []string) (*domain.IngestionReport, error) {
	m.paths = paths
	return m.report, m.err
}

func (m *mockIngestor) Status() domain.IngestStatus { return domain.IngestStatus{} }

func (m *mockIngestor) LastReport() *domain.IngestionReport { return m.report }

// mockQuery implements driving.QueryEngine with canned results.
type mockQuery struct {
	events       []domain.CanonicalEvent
	participants map[string]domain.Participant
	ranked       []domain.RankedParticipant
	edge         *domain.RelationshipEdge
	edges        []domain.RelationshipEdge
	buckets      []domain.TimeBucket
	segments     []domain.TopicSegment
	counterparts []domain.Counterpart
	content      string

	lastRange   driving.TimeRange
	lastChannel *domain.Channel
	lastTop     domain.TopOptions
	lastMin     float64
}

func (m *mockQuery) EventsInRange(_ context.Context, r driving.TimeRange, ch *domain.Channel) ([]domain.CanonicalEvent, error) {
	m.lastRange, m.lastChannel = r, ch
	return m.events, nil
}

func (m *mockQuery) TopParticipants(_ context.Context, opts domain.TopOptions) ([]domain.RankedParticipant, error) {
	m.lastTop = opts
	return m.ranked, nil
}

func (m *mockQuery) Relationship(_ context.Context, _, _ string) (*domain.RelationshipEdge, error) {
	return m.edge, nil
}

func (m *mockQuery) Relationships(_ context.Context, _ domain.RelationshipFilter) ([]domain.RelationshipEdge, error) {
	return m.edges, nil
}

func (m *mockQuery) Segments(_ context.Context, ch domain.Channel) ([]domain.TopicSegment, error) {
	if !ch.IsValid() {
		return nil, fmt.Errorf("channel %q: %w", ch, domain.ErrNotFound)
	}
	return m.segments, nil
}

func (m *mockQuery) FrequencySeries(_ context.Context, g domain.Granularity, ch *domain.Channel, r driving.TimeRange) ([]domain.TimeBucket, error) {
	if !g.IsValid() {
		return nil, fmt.Errorf("granularity %q: %w", g, domain.ErrInvalidInput)
	}
	m.lastRange, m.lastChannel = r, ch
	return m.buckets, nil
}

func (m *mockQuery) Bursts(_ context.Context, _ domain.Granularity, _ *domain.Channel) ([]domain.TimeBucket, error) {
	return m.buckets, nil
}

func (m *mockQuery) Counterparts(_ context.Context, _ int) ([]domain.Counterpart, error) {
	return m.counterparts, nil
}

func (m *mockQuery) CoreTimeline(_ context.Context, minTotal float64) ([]domain.Counterpart, error) {
	m.lastMin = minTotal
	return m.counterparts, nil
}

func (m *mockQuery) Participant(_ context.Context, ref string) (*domain.Participant, error) {
	p, ok := m.participants[ref]
	if !ok {
		return nil, fmt.Errorf("participant %q: %w", ref, domain.ErrNotFound)
	}
	return &p, nil
}

func (m *mockQuery) Event(_ context.Context, id string) (*domain.CanonicalEvent, error) {
	for i := range m.events {
		if m.events[i].ID == id {
			ev := m.events[i]
			return &ev, nil
		}
	}
	return nil, fmt.Errorf("event %q: %w", id, domain.ErrNotFound)
}

func (m *mockQuery) Content(_ context.Context, _ string) (string, error) {
	return m.content, nil
}

// setupCLITest installs services and resets flag state shared between
// tests.
func setupCLITest(s Services) func() {
	old := Services{
		Ingestor: ingestService,
		Query:    queryService,
		Settings: settingsService,
		Reports:  reportStore,
		Watcher:  fileWatcher,
	}
	SetServices(s)
	outputFormat = formatText
	sourcePaths = nil
	eventsFrom, eventsTo, eventsChannel, eventsLimit = "", "", "", 50
	topMetric, topLimit = string(domain.MetricInteractions), 20
	timelineMin = 0
	seriesGranularity, seriesChannel, seriesFrom, seriesTo = string(domain.GranularityMonth), "", "", ""
	ingestShowWarnings = false
	return func() { SetServices(old) }
}

func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

var testTime = time.Date(2022, 1, 1, 10, 0, 0, 0, time.UTC)

func testReport() *domain.IngestionReport {
	return &domain.IngestionReport{
		RunID:        "run-1",
		StartedAt:    testTime,
		FinishedAt:   testTime.Add(1500 * time.Millisecond),
		Events:       1234,
		Participants: 56,
		Files: []domain.FileReport{
			{
				Path: "/archive/inbox.mbox", Format: domain.FormatMailbox, Ingested: 1200,
				SkippedRecoverable: 1, Duplicates: 2,
				Warnings: []domain.Warning{{Kind: domain.WarningParse, Offset: 4096, Message: "unterminated multipart boundary"}},
			},
			{Path: "/archive/chat.json", Format: domain.FormatJSON, Ingested: 34, Cached: true},
			{Path: "/archive/notes.txt", Error: "unrecognised format"},
		},
	}
}

// mockReportStore implements driven.ReportStore over a fixed list,
// newest first.
type mockReportStore struct {
	reports []domain.IngestionReport
}

func (m *mockReportStore) SaveReport(_ context.Context, r *domain.IngestionReport) error {
	m.reports = append([]domain.IngestionReport{*r}, m.reports...)
	return nil
}

func (m *mockReportStore) LatestReport(_ context.Context) (*domain.IngestionReport, error) {
	if len(m.reports) == 0 {
		return nil, domain.ErrNotFound
	}
	r := m.reports[0]
	return &r, nil
}

func (m *mockReportStore) ListReports(_ context.Context, limit int) ([]domain.IngestionReport, error) {
	if limit > 0 && len(m.reports) > limit {
		return m.reports[:limit], nil
	}
	return m.reports, nil
}
