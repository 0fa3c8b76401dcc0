// Package topics partitions a channel's events into topic segments using
// time gaps and vocabulary overlap.
package topics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// Segmenter groups timestamp-ordered events of one channel. The same input
// order and parameters always produce the same segments and keywords.
// It is not safe for concurrent use.
type Segmenter struct {
	channel domain.Channel
	params  domain.SegmentParams

	segments []*segment
	current  *segment
	last     time.Time
}

type segment struct {
	start, end time.Time
	ids        []string
	freq       map[string]int

	// rep is the representative term set, recomputed lazily.
	rep   map[string]struct{}
	dirty bool
}

// NewSegmenter creates a segmenter for a channel.
func NewSegmenter(channel domain.Channel, params domain.SegmentParams) *Segmenter {
	return &Segmenter{channel: channel, params: params}
}

// Add places the next event. A new segment starts when the gap since the
// previous event exceeds MaxGap, or when the event has terms and their
// overlap with the current segment's representative terms is below
// MinSimilarity. Events of another channel are ignored and out-of-order
// events fail with domain.ErrOutOfOrder.
func (s *Segmenter) Add(ev *domain.CanonicalEvent) error {
	if ev.Channel != s.channel {
		return nil
	}
	if s.current != nil && ev.Timestamp.Before(s.last) {
		return fmt.Errorf("segment event %s: %w", ev.ID, domain.ErrOutOfOrder)
	}

	if s.current == nil || s.split(ev) {
		s.current = &segment{start: ev.Timestamp, freq: make(map[string]int)}
		s.segments = append(s.segments, s.current)
	}
	seg := s.current
	seg.ids = append(seg.ids, ev.ID)
	seg.end = ev.Timestamp
	for _, t := range ev.Terms {
		seg.freq[t]++
	}
	if len(ev.Terms) > 0 {
		seg.dirty = true
	}
	s.last = ev.Timestamp
	return nil
}

func (s *Segmenter) split(ev *domain.CanonicalEvent) bool {
	if s.params.MaxGap > 0 && ev.Timestamp.Sub(s.last) > s.params.MaxGap {
		return true
	}
	if len(ev.Terms) == 0 {
		return false
	}
	rep := s.current.representative(s.params.RepresentativeSize)
	if len(rep) == 0 {
		return false
	}
	return Similarity(ev.Terms, rep) < s.params.MinSimilarity
}

// representative returns the segment's most frequent terms, ties by term.
func (seg *segment) representative(size int) map[string]struct{} {
	if !seg.dirty && seg.rep != nil {
		return seg.rep
	}
	terms := make([]string, 0, len(seg.freq))
	for t := range seg.freq {
		terms = append(terms, t)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(seg.freq[b], seg.freq[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if size > 0 && len(terms) > size {
		terms = terms[:size]
	}
	seg.rep = make(map[string]struct{}, len(terms))
	for _, t := range terms {
		seg.rep[t] = struct{}{}
	}
	seg.dirty = false
	return seg.rep
}

// Similarity is the share of the distinct terms of an event that appear in
// the representative set.
func Similarity(terms []string, rep map[string]struct{}) float64 {
	distinct := make(map[string]struct{}, len(terms))
	hits := 0
	for _, t := range terms {
		if _, dup := distinct[t]; dup {
			continue
		}
		distinct[t] = struct{}{}
		if _, ok := rep[t]; ok {
			hits++
		}
	}
	if len(distinct) == 0 {
		return 0
	}
	return float64(hits) / float64(len(distinct))
}

// Segments returns the finished segments with ranked keywords. Keyword
// weight is in-segment frequency times ln(1 + S/df), where S is the number
// of segments and df the number of segments using the term.
func (s *Segmenter) Segments() []domain.TopicSegment {
	df := make(map[string]int)
	for _, seg := range s.segments {
		for t := range seg.freq {
			df[t]++
		}
	}
	total := float64(len(s.segments))

	out := make([]domain.TopicSegment, 0, len(s.segments))
	for i, seg := range s.segments {
		kws := make([]domain.Keyword, 0, len(seg.freq))
		for t, n := range seg.freq {
			kws = append(kws, domain.Keyword{
				Term:   t,
				Count:  n,
				Weight: float64(n) * math.Log(1+total/float64(df[t])),
			})
		}
		slices.SortFunc(kws, func(a, b domain.Keyword) int {
			if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
				return c
			}
			return cmp.Compare(a.Term, b.Term)
		})
		if k := s.params.KeywordsPerSegment; k > 0 && len(kws) > k {
			kws = kws[:k]
		}
		out = append(out, domain.TopicSegment{
			ID:       fmt.Sprintf("%s:%d", s.channel, i),
			Channel:  s.channel,
			Start:    seg.start,
			End:      seg.end,
			EventIDs: slices.Clone(seg.ids),
			Keywords: kws,
		})
	}
	return out
}
