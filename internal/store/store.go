package store

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/archeo/internal/aggregate/frequency"
	"github.com/custodia-labs/archeo/internal/aggregate/relationship"
	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Store is an immutable canonical store. Every accessor returns copies, so
// a published store can be read from many goroutines.
type Store struct {
	settings domain.EngineSettings

	events     []domain.CanonicalEvent
	eventIndex map[string]int

	participants map[string]domain.Participant
	order        []string
	refs         map[string][]string
	owners       []string

	relations *relationship.Aggregator
	frequency *frequency.Index
	segments  map[domain.Channel][]domain.TopicSegment
}

// Empty returns a store with no events.
func Empty(settings domain.EngineSettings) *Store {
	return NewBuilder(settings).Build(nil)
}

func (s *Store) addRef(ref, id string) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" || slices.Contains(s.refs[ref], id) {
		return
	}
	s.refs[ref] = append(s.refs[ref], id)
}

// Settings returns the settings the store was built with.
func (s *Store) Settings() domain.EngineSettings {
	return s.settings
}

// Len returns the number of events.
func (s *Store) Len() int {
	return len(s.events)
}

// ParticipantCount returns the number of participants.
func (s *Store) ParticipantCount() int {
	return len(s.participants)
}

// Events returns every event in timestamp order.
func (s *Store) Events() []domain.CanonicalEvent {
	out := make([]domain.CanonicalEvent, len(s.events))
	for i := range s.events {
		out[i] = s.events[i].Clone()
	}
	return out
}

// EventsInRange returns the events with from <= timestamp < to on the
// channel, or on every channel when channel is "". Zero bounds are
// unbounded.
func (s *Store) EventsInRange(from, to time.Time, channel domain.Channel) []domain.CanonicalEvent {
	lo := 0
	if !from.IsZero() {
		lo, _ = slices.BinarySearchFunc(s.events, from, func(e domain.CanonicalEvent, t time.Time) int {
			return e.Timestamp.Compare(t)
		})
	}
	hi := len(s.events)
	if !to.IsZero() {
		hi, _ = slices.BinarySearchFunc(s.events, to, func(e domain.CanonicalEvent, t time.Time) int {
			return e.Timestamp.Compare(t)
		})
	}

	var out []domain.CanonicalEvent
	for i := lo; i < hi; i++ {
		if channel == "" || s.events[i].Channel == channel {
			out = append(out, s.events[i].Clone())
		}
	}
	return out
}

// Event returns one event by id.
func (s *Store) Event(id string) (domain.CanonicalEvent, bool) {
	i, ok := s.eventIndex[id]
	if !ok {
		return domain.CanonicalEvent{}, false
	}
	return s.events[i].Clone(), true
}

// Participants returns every participant in order of first appearance.
func (s *Store) Participants() []domain.Participant {
	out := make([]domain.Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.participants[id].Clone())
	}
	return out
}

// Participant returns a participant by id.
func (s *Store) Participant(id string) (domain.Participant, bool) {
	p, ok := s.participants[id]
	if !ok {
		return domain.Participant{}, false
	}
	return p.Clone(), true
}

// Resolve finds a participant by id, identity key, address or display
// name. A display name shared by several participants is ambiguous.
func (s *Store) Resolve(ref string) (domain.Participant, error) {
	if p, ok := s.participants[ref]; ok {
		return p.Clone(), nil
	}
	ids := s.refs[strings.ToLower(strings.TrimSpace(ref))]
	switch len(ids) {
	case 0:
		return domain.Participant{}, fmt.Errorf("participant %q: %w", ref, domain.ErrNotFound)
	case 1:
		return s.participants[ids[0]].Clone(), nil
	default:
		return domain.Participant{}, fmt.Errorf("participant %q matches %d participants: %w", ref, len(ids), domain.ErrInvalidInput)
	}
}

// Owners returns the participant ids of the archive owner: every
// participant flagged Self, or else the one with the most interactions.
func (s *Store) Owners() []string {
	return slices.Clone(s.owners)
}

func (s *Store) findOwners() []string {
	var owners []string
	for _, id := range s.order {
		if s.participants[id].Self {
			owners = append(owners, id)
		}
	}
	if len(owners) > 0 {
		return owners
	}
	var (
		best  string
		score float64
	)
	for _, id := range s.order {
		if n := s.relations.Interactions(id); n > score {
			best, score = id, n
		}
	}
	if best == "" {
		return nil
	}
	return []string{best}
}

// Interactions returns the summed edge totals of a participant.
func (s *Store) Interactions(id string) float64 {
	return s.relations.Interactions(id)
}

// Edge returns the edge between two participant ids.
func (s *Store) Edge(a, b string) (domain.RelationshipEdge, bool) {
	return s.relations.Edge(a, b)
}

// Edges returns every edge, strongest first.
func (s *Store) Edges() []domain.RelationshipEdge {
	return s.relations.Edges()
}

// EdgesOf returns the edges touching a participant, strongest first.
func (s *Store) EdgesOf(id string) []domain.RelationshipEdge {
	return s.relations.EdgesOf(id)
}

// Counterparts summarises the owner's relationships, strongest first.
func (s *Store) Counterparts() []domain.Counterpart {
	cs := s.relations.Counterparts(s.owners, s.settings.Tiers)
	for i := range cs {
		if p, ok := s.participants[cs[i].Participant.ID]; ok {
			cs[i].Participant = p.Clone()
		}
	}
	return cs
}

// Series returns the dense frequency series of a channel ("" for all).
func (s *Store) Series(g domain.Granularity, channel domain.Channel, from, to time.Time) []domain.TimeBucket {
	return s.frequency.Series(g, channel, from, to)
}

// Bursts returns the burst buckets of a channel's series ("" for all).
func (s *Store) Bursts(g domain.Granularity, channel domain.Channel) []domain.TimeBucket {
	return frequency.Bursts(s.frequency.Series(g, channel, time.Time{}, time.Time{}), s.settings.Burst)
}

// Segments returns the topic segments of a channel in time order.
func (s *Store) Segments(channel domain.Channel) []domain.TopicSegment {
	segs := s.segments[channel]
	out := make([]domain.TopicSegment, len(segs))
	for i, seg := range segs {
		seg.EventIDs = slices.Clone(seg.EventIDs)
		seg.Keywords = slices.Clone(seg.Keywords)
		out[i] = seg
	}
	return out
}
