// Package store holds the canonical event store and its derived
// aggregates. A Builder consumes normalised events in timestamp order and
// produces an immutable Store, which a Publisher swaps in atomically.
package store

import (
	"fmt"

	"github.com/custodia-labs/archeo/internal/aggregate/frequency"
	"github.com/custodia-labs/archeo/internal/aggregate/relationship"
	"github.com/custodia-labs/archeo/internal/aggregate/topics"
	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Builder accumulates events into a new store. It is not safe for
// concurrent use and must not be reused after Build.
type Builder struct {
	settings domain.EngineSettings

	events     []domain.CanonicalEvent
	relations  *relationship.Aggregator
	frequency  *frequency.Index
	segmenters map[domain.Channel]*topics.Segmenter
}

// NewBuilder creates a builder using the aggregation settings.
func NewBuilder(settings domain.EngineSettings) *Builder {
	seg := make(map[domain.Channel]*topics.Segmenter)
	for _, ch := range domain.AllChannels() {
		seg[ch] = topics.NewSegmenter(ch, settings.Segment)
	}
	return &Builder{
		settings:   settings,
		relations:  relationship.New(settings.GroupWeight),
		frequency:  frequency.New(),
		segmenters: seg,
	}
}

// Add appends an event. Events must arrive in non-decreasing timestamp order.
func (b *Builder) Add(ev domain.CanonicalEvent) error {
	if err := b.relations.Add(&ev); err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	if seg, ok := b.segmenters[ev.Channel]; ok {
		if err := seg.Add(&ev); err != nil {
			return fmt.Errorf("build store: %w", err)
		}
	}
	b.frequency.Add(&ev)
	b.events = append(b.events, ev)
	return nil
}

// Build finalises the store with the resolved participants.
func (b *Builder) Build(participants []domain.Participant) *Store {
	s := &Store{
		settings:     b.settings,
		events:       b.events,
		eventIndex:   make(map[string]int, len(b.events)),
		participants: make(map[string]domain.Participant, len(participants)),
		refs:         make(map[string][]string),
		relations:    b.relations,
		frequency:    b.frequency,
		segments:     make(map[domain.Channel][]domain.TopicSegment, len(b.segmenters)),
	}
	for i := range s.events {
		s.eventIndex[s.events[i].ID] = i
	}
	for _, p := range participants {
		s.participants[p.ID] = p
		s.order = append(s.order, p.ID)
		s.addRef(p.ID, p.ID)
		s.addRef(p.Key, p.ID)
		if p.Address != "" {
			s.addRef(p.Address, p.ID)
		}
		for _, a := range p.Aliases {
			s.addRef(a, p.ID)
		}
	}
	for ch, seg := range b.segmenters {
		s.segments[ch] = seg.Segments()
	}
	s.owners = s.findOwners()
	return s
}
