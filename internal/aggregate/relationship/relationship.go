// Package relationship maintains pairwise interaction edges between
// participants from a timestamp-ordered event stream.
package relationship

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

type pairKey struct {
	a, b string
}

type edgeState struct {
	edge domain.RelationshipEdge
	days map[int64]struct{}
}

// Aggregator accumulates relationship edges. Events must arrive in
// non-decreasing timestamp order. It is not safe for concurrent use.
type Aggregator struct {
	groupWeight float64
	edges       map[pairKey]*edgeState
	byID        map[string][]pairKey
	last        time.Time
}

// New creates an aggregator. groupWeight is added to every participant
// pair of an event with more than two participants.
func New(groupWeight float64) *Aggregator {
	return &Aggregator{
		groupWeight: groupWeight,
		edges:       make(map[pairKey]*edgeState),
		byID:        make(map[string][]pairKey),
	}
}

// Add applies one event. An event older than the previous one fails with
// domain.ErrOutOfOrder and leaves the aggregate unchanged.
func (a *Aggregator) Add(ev *domain.CanonicalEvent) error {
	if ev.Timestamp.Before(a.last) {
		return fmt.Errorf("add event %s at %s after %s: %w",
			ev.ID, ev.Timestamp.Format(time.RFC3339), a.last.Format(time.RFC3339), domain.ErrOutOfOrder)
	}
	a.last = ev.Timestamp

	ps := ev.Participants
	switch {
	case len(ps) < 2:
	case len(ps) == 2:
		a.apply(ps[0], ps[1], 1, ev.Timestamp)
	default:
		for i := 0; i < len(ps); i++ {
			for j := i + 1; j < len(ps); j++ {
				a.apply(ps[i], ps[j], a.groupWeight, ev.Timestamp)
			}
		}
	}
	return nil
}

// apply records weight from one participant to another.
func (a *Aggregator) apply(from, to string, weight float64, ts time.Time) {
	if from == to || from == "" || to == "" {
		return
	}
	x, y := domain.OrderedPair(from, to)
	key := pairKey{x, y}
	st, ok := a.edges[key]
	if !ok {
		st = &edgeState{
			edge: domain.RelationshipEdge{A: x, B: y, FirstInteraction: ts},
			days: make(map[int64]struct{}),
		}
		a.edges[key] = st
		a.byID[x] = append(a.byID[x], key)
		a.byID[y] = append(a.byID[y], key)
	}

	e := &st.edge
	if from == x {
		e.AToB += weight
	} else {
		e.BToA += weight
	}
	e.Total = e.AToB + e.BToA
	e.Events++
	e.LastInteraction = ts
	st.days[dayNumber(ts)] = struct{}{}
	e.ActiveDays = len(st.days)
}

func dayNumber(t time.Time) int64 {
	return t.UTC().Unix() / 86400
}

// Edge returns the edge between two participants.
func (a *Aggregator) Edge(x, y string) (domain.RelationshipEdge, bool) {
	x, y = domain.OrderedPair(x, y)
	st, ok := a.edges[pairKey{x, y}]
	if !ok {
		return domain.RelationshipEdge{}, false
	}
	return st.edge, true
}

// Edges returns every edge, strongest first, ties by participant ids.
func (a *Aggregator) Edges() []domain.RelationshipEdge {
	out := make([]domain.RelationshipEdge, 0, len(a.edges))
	for _, st := range a.edges {
		out = append(out, st.edge)
	}
	sortEdges(out)
	return out
}

// EdgesOf returns the edges touching id, strongest first.
func (a *Aggregator) EdgesOf(id string) []domain.RelationshipEdge {
	keys := a.byID[id]
	out := make([]domain.RelationshipEdge, 0, len(keys))
	for _, k := range keys {
		out = append(out, a.edges[k].edge)
	}
	sortEdges(out)
	return out
}

// Interactions returns the summed edge totals of a participant.
func (a *Aggregator) Interactions(id string) float64 {
	var total float64
	for _, k := range a.byID[id] {
		total += a.edges[k].edge.Total
	}
	return total
}

// Counterparts summarises the relationship between the owner identities
// and every other participant they interacted with. Participant holds only
// the counterpart's ID. Results are ordered by total, strongest first.
func (a *Aggregator) Counterparts(owners []string, tiers domain.TierThresholds) []domain.Counterpart {
	isOwner := make(map[string]bool, len(owners))
	for _, o := range owners {
		isOwner[o] = true
	}

	type acc struct {
		c    domain.Counterpart
		days map[int64]struct{}
	}
	byID := make(map[string]*acc)
	for _, o := range owners {
		for _, k := range a.byID[o] {
			st := a.edges[k]
			other := st.edge.Other(o)
			if isOwner[other] {
				continue
			}
			x, ok := byID[other]
			if !ok {
				x = &acc{days: make(map[int64]struct{})}
				x.c.Participant.ID = other
				x.c.First = st.edge.FirstInteraction
				byID[other] = x
			}
			x.c.Sent += st.edge.From(o)
			x.c.Received += st.edge.From(other)
			if st.edge.FirstInteraction.Before(x.c.First) {
				x.c.First = st.edge.FirstInteraction
			}
			if st.edge.LastInteraction.After(x.c.Last) {
				x.c.Last = st.edge.LastInteraction
			}
			for d := range st.days {
				x.days[d] = struct{}{}
			}
		}
	}

	out := make([]domain.Counterpart, 0, len(byID))
	for _, x := range byID {
		c := x.c
		c.Total = c.Sent + c.Received
		c.ActiveDays = len(x.days)
		c.SpanDays = int(c.Last.Sub(c.First).Hours() / 24)
		c.Tier = tiers.Classify(c.Total)
		c.Reciprocity = domain.ClassifyReciprocity(c.Sent, c.Received)
		out = append(out, c)
	}
	slices.SortFunc(out, func(x, y domain.Counterpart) int {
		if c := cmp.Compare(y.Total, x.Total); c != 0 {
			return c
		}
		return cmp.Compare(x.Participant.ID, y.Participant.ID)
	})
	return out
}

// Len returns the number of edges.
func (a *Aggregator) Len() int {
	return len(a.edges)
}

func sortEdges(edges []domain.RelationshipEdge) {
	slices.SortFunc(edges, func(x, y domain.RelationshipEdge) int {
		if c := cmp.Compare(y.Total, x.Total); c != 0 {
			return c
		}
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		return cmp.Compare(x.B, y.B)
	})
}
