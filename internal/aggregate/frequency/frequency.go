// Package frequency counts events into calendar buckets per channel and
// detects bursts of unusual activity.
package frequency

import (
	"math"
	"slices"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

type seriesKey struct {
	g       domain.Granularity
	channel domain.Channel
}

// Index holds bucket counts per granularity, per channel and for all
// channels together. Adding events is commutative, so input order does not
// matter. It is not safe for concurrent use.
type Index struct {
	granularities []domain.Granularity
	counts        map[seriesKey]map[time.Time]int
}

// New creates an index over the given granularities, or all of them when
// none are given.
func New(granularities ...domain.Granularity) *Index {
	if len(granularities) == 0 {
		granularities = domain.AllGranularities()
	}
	return &Index{
		granularities: granularities,
		counts:        make(map[seriesKey]map[time.Time]int),
	}
}

// Add counts one event in every granularity.
func (x *Index) Add(ev *domain.CanonicalEvent) {
	for _, g := range x.granularities {
		start := g.Truncate(ev.Timestamp)
		x.bump(seriesKey{g, ev.Channel}, start)
		x.bump(seriesKey{g, ""}, start)
	}
}

func (x *Index) bump(k seriesKey, start time.Time) {
	m, ok := x.counts[k]
	if !ok {
		m = make(map[time.Time]int)
		x.counts[k] = m
	}
	m[start]++
}

// Has reports whether the index tracks granularity g.
func (x *Index) Has(g domain.Granularity) bool {
	return slices.Contains(x.granularities, g)
}

// Series returns the dense bucket series of a channel ("" for all
// channels) at granularity g. Buckets run from the first to the last
// non-empty bucket starting in [from, to), with empty buckets zero-filled.
// Zero bounds are unbounded.
func (x *Index) Series(g domain.Granularity, channel domain.Channel, from, to time.Time) []domain.TimeBucket {
	m := x.counts[seriesKey{g, channel}]
	if len(m) == 0 {
		return nil
	}
	if !from.IsZero() {
		from = g.Truncate(from)
	}

	starts := make([]time.Time, 0, len(m))
	for s := range m {
		if !from.IsZero() && s.Before(from) {
			continue
		}
		if !to.IsZero() && !s.Before(to) {
			continue
		}
		starts = append(starts, s)
	}
	if len(starts) == 0 {
		return nil
	}
	slices.SortFunc(starts, func(a, b time.Time) int { return a.Compare(b) })

	var out []domain.TimeBucket
	last := starts[len(starts)-1]
	for s := starts[0]; !s.After(last); s = g.Next(s) {
		out = append(out, domain.TimeBucket{
			Granularity: g,
			Key:         g.Key(s),
			Start:       s,
			Channel:     channel,
			Count:       m[s],
		})
	}
	return out
}

// Total returns the number of events counted at granularity g for a
// channel ("" for all channels).
func (x *Index) Total(g domain.Granularity, channel domain.Channel) int {
	var n int
	for _, c := range x.counts[seriesKey{g, channel}] {
		n += c
	}
	return n
}

// Bursts returns the buckets of a dense series whose count exceeds the mean
// of the trailing window by more than Threshold standard deviations. Each
// returned bucket carries the window's mean and standard deviation.
//
// The deviation is floored at the Poisson deviation sqrt(mean), minimum 1,
// so a near-constant history does not turn every small rise into a burst.
func Bursts(series []domain.TimeBucket, p domain.BurstParams) []domain.TimeBucket {
	var out []domain.TimeBucket
	for i, b := range series {
		lo := 0
		if p.Window > 0 && i-p.Window > 0 {
			lo = i - p.Window
		}
		history := series[lo:i]
		if len(history) == 0 || len(history) < p.MinHistory || b.Count < p.MinCount {
			continue
		}
		mean, std := meanStdDev(history)
		if float64(b.Count) > mean+p.Threshold*deviationFloor(mean, std) {
			b.Mean = mean
			b.StdDev = std
			out = append(out, b)
		}
	}
	return out
}

// meanStdDev returns the mean and population standard deviation of counts.
func meanStdDev(buckets []domain.TimeBucket) (float64, float64) {
	var sum float64
	for _, b := range buckets {
		sum += float64(b.Count)
	}
	mean := sum / float64(len(buckets))
	var sq float64
	for _, b := range buckets {
		d := float64(b.Count) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(buckets)))
}

// deviationFloor returns std, or the Poisson deviation of mean when larger.
func deviationFloor(mean, std float64) float64 {
	return max(std, math.Sqrt(max(mean, 1)))
}
