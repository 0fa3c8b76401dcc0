package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
	"github.com/custodia-labs/archeo/internal/parsers/jsonexport"
	"github.com/custodia-labs/archeo/internal/parsers/mbox"
	"github.com/custodia-labs/archeo/internal/store"
)

// Ensure QueryService implements the interface.
var _ driving.QueryEngine = (*QueryService)(nil)

// QueryService answers queries against the published store. Each call
// loads the store once, so a query never mixes two ingestion runs.
type QueryService struct {
	publisher *store.Publisher
}

// NewQueryService creates a query service reading from publisher.
func NewQueryService(publisher *store.Publisher) *QueryService {
	return &QueryService{publisher: publisher}
}

func (s *QueryService) current(ctx context.Context) (*store.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.publisher.Load(), nil
}

func checkChannel(channel *domain.Channel) (domain.Channel, error) {
	if channel == nil {
		return "", nil
	}
	if !channel.IsValid() {
		return "", fmt.Errorf("channel %q: %w", *channel, domain.ErrNotFound)
	}
	return *channel, nil
}

func checkRange(r driving.TimeRange) error {
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("range ends before it starts: %w", domain.ErrInvalidInput)
	}
	return nil
}

// EventsInRange returns events in the range, ordered by timestamp.
func (s *QueryService) EventsInRange(ctx context.Context, r driving.TimeRange, channel *domain.Channel) ([]domain.CanonicalEvent, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	ch, err := checkChannel(channel)
	if err != nil {
		return nil, err
	}
	if err := checkRange(r); err != nil {
		return nil, err
	}
	return st.EventsInRange(r.Start, r.End, ch), nil
}

// TopParticipants ranks participants by interaction total or by recency.
// Self and automated participants are excluded unless requested.
func (s *QueryService) TopParticipants(ctx context.Context, opts domain.TopOptions) ([]domain.RankedParticipant, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Metric == "" {
		opts.Metric = domain.MetricInteractions
	}
	if !opts.Metric.IsValid() {
		return nil, fmt.Errorf("metric %q: %w", opts.Metric, domain.ErrInvalidInput)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", opts.Limit, domain.ErrInvalidInput)
	}

	var ranked []domain.RankedParticipant
	for _, p := range st.Participants() {
		if (p.Self && !opts.IncludeSelf) || (p.Automated && !opts.IncludeAutomated) {
			continue
		}
		rp := domain.RankedParticipant{Participant: p, Interactions: st.Interactions(p.ID)}
		switch opts.Metric {
		case domain.MetricRecency:
			if p.LastSeen.IsZero() {
				continue
			}
			rp.Score = float64(p.LastSeen.Unix())
		default:
			rp.Score = rp.Interactions
		}
		ranked = append(ranked, rp)
	}

	slices.SortStableFunc(ranked, func(a, b domain.RankedParticipant) int {
		switch {
		case a.Score != b.Score:
			if a.Score > b.Score {
				return -1
			}
			return 1
		case a.Participant.EventCount != b.Participant.EventCount:
			return b.Participant.EventCount - a.Participant.EventCount
		default:
			return strings.Compare(a.Participant.ID, b.Participant.ID)
		}
	})
	if opts.Limit > 0 && len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}
	return ranked, nil
}

// Relationship returns the edge between two participants, or nil when they
// never interacted.
func (s *QueryService) Relationship(ctx context.Context, a, b string) (*domain.RelationshipEdge, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	pa, err := st.Resolve(a)
	if err != nil {
		return nil, err
	}
	pb, err := st.Resolve(b)
	if err != nil {
		return nil, err
	}
	if pa.ID == pb.ID {
		return nil, fmt.Errorf("%q and %q are the same participant: %w", a, b, domain.ErrInvalidInput)
	}
	edge, ok := st.Edge(pa.ID, pb.ID)
	if !ok {
		return nil, nil
	}
	return &edge, nil
}

// Relationships lists edges matching the filter, strongest first.
func (s *QueryService) Relationships(ctx context.Context, filter domain.RelationshipFilter) ([]domain.RelationshipEdge, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	var edges []domain.RelationshipEdge
	if filter.Participant != "" {
		p, err := st.Resolve(filter.Participant)
		if err != nil {
			return nil, err
		}
		edges = st.EdgesOf(p.ID)
	} else {
		edges = st.Edges()
	}

	out := edges[:0]
	for _, e := range edges {
		if e.Total >= filter.MinTotal && e.ActiveDays >= filter.MinActiveDays {
			out = append(out, e)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Segments returns the topic segments of a channel in time order.
func (s *QueryService) Segments(ctx context.Context, channel domain.Channel) ([]domain.TopicSegment, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := checkChannel(&channel); err != nil {
		return nil, err
	}
	return st.Segments(channel), nil
}

// FrequencySeries returns the dense bucket series over the range.
func (s *QueryService) FrequencySeries(ctx context.Context, g domain.Granularity, channel *domain.Channel, r driving.TimeRange) ([]domain.TimeBucket, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if !g.IsValid() {
		return nil, fmt.Errorf("granularity %q: %w", g, domain.ErrInvalidInput)
	}
	ch, err := checkChannel(channel)
	if err != nil {
		return nil, err
	}
	if err := checkRange(r); err != nil {
		return nil, err
	}
	return st.Series(g, ch, r.Start, r.End), nil
}

// Bursts returns buckets whose count exceeds the configured threshold.
func (s *QueryService) Bursts(ctx context.Context, g domain.Granularity, channel *domain.Channel) ([]domain.TimeBucket, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if !g.IsValid() {
		return nil, fmt.Errorf("granularity %q: %w", g, domain.ErrInvalidInput)
	}
	ch, err := checkChannel(channel)
	if err != nil {
		return nil, err
	}
	return st.Bursts(g, ch), nil
}

// Counterparts summarises the owner's relationship with every other
// non-automated participant, strongest first.
func (s *QueryService) Counterparts(ctx context.Context, limit int) ([]domain.Counterpart, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, fmt.Errorf("limit %d: %w", limit, domain.ErrInvalidInput)
	}
	return counterparts(st, limit), nil
}

func counterparts(st *store.Store, limit int) []domain.Counterpart {
	var out []domain.Counterpart
	for _, c := range st.Counterparts() {
		if c.Participant.Automated {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CoreTimeline returns counterparts whose total reaches minTotal, ordered by
// first interaction. Zero selects the core tier threshold.
func (s *QueryService) CoreTimeline(ctx context.Context, minTotal float64) ([]domain.Counterpart, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if minTotal < 0 {
		return nil, fmt.Errorf("minimum total %g: %w", minTotal, domain.ErrInvalidInput)
	}
	if minTotal == 0 {
		minTotal = st.Settings().Tiers.Core
	}

	var out []domain.Counterpart
	for _, c := range counterparts(st, 0) {
		if c.Total >= minTotal {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Counterpart) int {
		if c := a.First.Compare(b.First); c != 0 {
			return c
		}
		return strings.Compare(a.Participant.ID, b.Participant.ID)
	})
	return out, nil
}

// Participant resolves a participant reference.
func (s *QueryService) Participant(ctx context.Context, ref string) (*domain.Participant, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	p, err := st.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Event returns one event by ID.
func (s *QueryService) Event(ctx context.Context, id string) (*domain.CanonicalEvent, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	ev, ok := st.Event(id)
	if !ok {
		return nil, fmt.Errorf("event %q: %w", id, domain.ErrNotFound)
	}
	return &ev, nil
}

// Content re-reads an event's text from the byte range recorded at
// ingestion. Mail is decoded again; JSON records are rendered indented.
func (s *QueryService) Content(ctx context.Context, id string) (string, error) {
	st, err := s.current(ctx)
	if err != nil {
		return "", err
	}
	ev, ok := st.Event(id)
	if !ok {
		return "", fmt.Errorf("event %q: %w", id, domain.ErrNotFound)
	}
	ref := ev.Content

	f, err := os.Open(ref.Path)
	if err != nil {
		return "", fmt.Errorf("open source of %s: %w", id, err)
	}
	defer f.Close()

	raw := make([]byte, ref.Length)
	if _, err := f.ReadAt(raw, ref.Offset); err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read source of %s: %w", id, err)
	}

	if ev.Metadata[domain.MetaSchema] != "" {
		return jsonexport.Render(raw, ref.Pointer)
	}

	settings := st.Settings()
	p := mbox.New(bytes.NewReader(raw), driven.ParserOptions{
		Path:             ref.Path,
		MaxMessageBytes:  settings.Ingest.MaxMessageBytes,
		CharsetFallbacks: settings.Charset.Fallbacks,
	})
	rec, err := p.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("decode source of %s: %w", id, err)
	}
	return rec.Body, nil
}
