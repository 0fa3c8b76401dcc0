package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// TimeRange is a half-open interval [Start, End). A zero bound is unbounded.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains returns true if t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// QueryEngine answers questions against the most recently published store.
//
// Participant arguments accept a participant ID, an identity key
// ("addr:..." / "name:..."), a raw address or an unambiguous alias.
// Unknown participants and channels fail with domain.ErrNotFound; queries
// that simply match nothing return empty results.
type QueryEngine interface {
	// EventsInRange returns events in the range, ordered by timestamp.
	// A nil channel selects every channel.
	EventsInRange(ctx context.Context, r TimeRange, channel *domain.Channel) ([]domain.CanonicalEvent, error)

	// TopParticipants ranks participants by interaction count or recency.
	TopParticipants(ctx context.Context, opts domain.TopOptions) ([]domain.RankedParticipant, error)

	// Relationship returns the edge between two participants, or nil when
	// they never interacted.
	Relationship(ctx context.Context, a, b string) (*domain.RelationshipEdge, error)

	// Relationships lists edges matching the filter, strongest first.
	Relationships(ctx context.Context, filter domain.RelationshipFilter) ([]domain.RelationshipEdge, error)

	// Segments returns the topic segments of a channel in time order.
	Segments(ctx context.Context, channel domain.Channel) ([]domain.TopicSegment, error)

	// FrequencySeries returns the dense bucket series over the range.
	FrequencySeries(ctx context.Context, g domain.Granularity, channel *domain.Channel, r TimeRange) ([]domain.TimeBucket, error)

	// Bursts returns buckets whose count exceeds the configured threshold.
	Bursts(ctx context.Context, g domain.Granularity, channel *domain.Channel) ([]domain.TimeBucket, error)

	// Counterparts summarises the owner's relationship with every other
	// non-automated participant, strongest first.
	Counterparts(ctx context.Context, limit int) ([]domain.Counterpart, error)

	// CoreTimeline returns counterparts whose total reaches minTotal, ordered
	// by first interaction. A minTotal of zero uses the core tier threshold.
	CoreTimeline(ctx context.Context, minTotal float64) ([]domain.Counterpart, error)

	// Participant resolves a participant reference.
	Participant(ctx context.Context, ref string) (*domain.Participant, error)

	// Event returns one event by ID.
	Event(ctx context.Context, id string) (*domain.CanonicalEvent, error)

	// Content re-reads an event's text from its source file.
	Content(ctx context.Context, id string) (string, error)
}
