package domain

import (
	"fmt"
	"time"
)

// Granularity is the width of a time bucket.
type Granularity string

// Supported granularities. Buckets are computed in UTC and weeks start on
// Monday following ISO 8601.
const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

// AllGranularities returns every granularity from finest to coarsest.
func AllGranularities() []Granularity {
	return []Granularity{GranularityDay, GranularityWeek, GranularityMonth, GranularityYear}
}

// IsValid returns true if the granularity is recognised.
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityDay, GranularityWeek, GranularityMonth, GranularityYear:
		return true
	default:
		return false
	}
}

// Truncate returns the start of the bucket containing t.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()
	y, m, d := t.Date()
	switch g {
	case GranularityWeek:
		offset := (int(t.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, time.UTC)
	case GranularityMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	case GranularityYear:
		return time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Next returns the start of the bucket following the one starting at start.
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	case GranularityMonth:
		return start.AddDate(0, 1, 0)
	case GranularityYear:
		return start.AddDate(1, 0, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// Key returns the bucket label for t: 2006-01-02, 2006-W01, 2006-01 or 2006.
func (g Granularity) Key(t time.Time) string {
	t = t.UTC()
	switch g {
	case GranularityWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case GranularityMonth:
		return t.Format("2006-01")
	case GranularityYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// TimeBucket is a counted slice of the timeline. Channel is empty for the
// all-channel series.
type TimeBucket struct {
	Granularity Granularity `json:"granularity" yaml:"granularity"`
	Key         string      `json:"key" yaml:"key"`
	Start       time.Time   `json:"start" yaml:"start"`
	Channel     Channel     `json:"channel,omitempty" yaml:"channel,omitempty"`
	Count       int         `json:"count" yaml:"count"`

	// Burst statistics, set only on buckets returned by burst detection.
	Mean   float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdDev float64 `json:"stddev,omitempty" yaml:"stddev,omitempty"`
}

// BurstParams configures burst detection over a bucket series.
type BurstParams struct {
	// Threshold is k in count > mean + k*stddev.
	Threshold float64

	// Window is the number of preceding buckets considered (0 = all).
	Window int

	// MinHistory is the fewest preceding buckets needed to judge a bucket.
	MinHistory int

	// MinCount is the smallest count that can be flagged.
	MinCount int
}

// Keyword is a weighted term describing a topic segment.
type Keyword struct {
	Term   string  `json:"term" yaml:"term"`
	Count  int     `json:"count" yaml:"count"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// TopicSegment is a contiguous run of events on one channel that share
// a vocabulary.
type TopicSegment struct {
	ID       string    `json:"id" yaml:"id"`
	Channel  Channel   `json:"channel" yaml:"channel"`
	Start    time.Time `json:"start" yaml:"start"`
	End      time.Time `json:"end" yaml:"end"`
	EventIDs []string  `json:"event_ids" yaml:"event_ids"`
	Keywords []Keyword `json:"keywords" yaml:"keywords"`
}

// Size returns the number of events in the segment.
func (s *TopicSegment) Size() int {
	return len(s.EventIDs)
}

// SegmentParams configures topic segmentation.
type SegmentParams struct {
	MaxGap             time.Duration
	MinSimilarity      float64
	RepresentativeSize int
	KeywordsPerSegment int
}
