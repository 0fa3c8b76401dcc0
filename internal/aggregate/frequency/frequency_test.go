package frequency

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ev(ts time.Time, ch domain.Channel) *domain.CanonicalEvent {
	return &domain.CanonicalEvent{Timestamp: ts, Channel: ch}
}

func TestIndex_BucketsAndKeys(t *testing.T) {
	x := New()
	x.Add(ev(at("2024-01-01T23:59:59Z"), domain.ChannelMail)) // Monday
	x.Add(ev(at("2024-01-07T10:00:00Z"), domain.ChannelChat)) // Sunday, same ISO week
	x.Add(ev(at("2024-01-08T00:00:00Z"), domain.ChannelMail)) // next week
	x.Add(ev(at("2023-12-31T22:00:00-05:00"), domain.ChannelMail))

	weeks := x.Series(domain.GranularityWeek, "", time.Time{}, time.Time{})
	require.Len(t, weeks, 2)
	assert.Equal(t, "2024-W01", weeks[0].Key)
	assert.Equal(t, at("2024-01-01T00:00:00Z"), weeks[0].Start)
	assert.Equal(t, 3, weeks[0].Count, "local 2023-12-31 22:00 -05:00 is Monday in UTC")
	assert.Equal(t, 1, weeks[1].Count)

	months := x.Series(domain.GranularityMonth, domain.ChannelMail, time.Time{}, time.Time{})
	require.Len(t, months, 1)
	assert.Equal(t, "2024-01", months[0].Key)
	assert.Equal(t, 3, months[0].Count)
	assert.Equal(t, domain.ChannelMail, months[0].Channel)

	years := x.Series(domain.GranularityYear, domain.ChannelChat, time.Time{}, time.Time{})
	require.Len(t, years, 1)
	assert.Equal(t, "2024", years[0].Key)
	assert.Equal(t, 1, years[0].Count)
}

func TestIndex_DenseSeries(t *testing.T) {
	x := New(domain.GranularityDay)
	x.Add(ev(at("2024-02-27T10:00:00Z"), domain.ChannelChat))
	x.Add(ev(at("2024-03-01T10:00:00Z"), domain.ChannelChat))

	days := x.Series(domain.GranularityDay, domain.ChannelChat, time.Time{}, time.Time{})

	var keys []string
	var counts []int
	for _, b := range days {
		keys = append(keys, b.Key)
		counts = append(counts, b.Count)
	}
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, keys)
	assert.Equal(t, []int{1, 0, 0, 1}, counts)
}

func TestIndex_RangedSeries(t *testing.T) {
	x := New(domain.GranularityDay)
	for _, s := range []string{"2024-01-01T05:00:00Z", "2024-01-03T05:00:00Z", "2024-01-05T05:00:00Z", "2024-01-09T05:00:00Z"} {
		x.Add(ev(at(s), domain.ChannelMail))
	}

	got := x.Series(domain.GranularityDay, "", at("2024-01-02T12:00:00Z"), at("2024-01-09T00:00:00Z"))

	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-03", got[0].Key)
	assert.Equal(t, "2024-01-05", got[2].Key)

	assert.Nil(t, x.Series(domain.GranularityDay, "", at("2025-01-01T00:00:00Z"), time.Time{}))
	assert.Nil(t, x.Series(domain.GranularityDay, domain.ChannelSearch, time.Time{}, time.Time{}))
	assert.Nil(t, x.Series(domain.GranularityWeek, "", time.Time{}, time.Time{}), "untracked granularity")
	assert.False(t, x.Has(domain.GranularityWeek))
}

func TestIndex_CoverageAndCommutativity(t *testing.T) {
	var events []*domain.CanonicalEvent
	start := at("2023-06-01T00:00:00Z")
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		ch := domain.AllChannels()[rng.Intn(3)]
		events = append(events, ev(start.Add(time.Duration(rng.Int63n(int64(400*24*time.Hour)))), ch))
	}

	forward := New()
	for _, e := range events {
		forward.Add(e)
	}
	backward := New()
	for i := len(events) - 1; i >= 0; i-- {
		backward.Add(events[i])
	}

	for _, g := range domain.AllGranularities() {
		assert.Equal(t, forward.Series(g, "", time.Time{}, time.Time{}), backward.Series(g, "", time.Time{}, time.Time{}))

		sum := 0
		for _, b := range forward.Series(g, "", time.Time{}, time.Time{}) {
			sum += b.Count
		}
		assert.Equal(t, len(events), sum, "granularity %s", g)
		assert.Equal(t, len(events), forward.Total(g, ""))

		perChannel := 0
		for _, ch := range domain.AllChannels() {
			perChannel += forward.Total(g, ch)
		}
		assert.Equal(t, len(events), perChannel)
	}
}

func series(counts ...int) []domain.TimeBucket {
	start := at("2024-01-01T00:00:00Z")
	out := make([]domain.TimeBucket, len(counts))
	for i, c := range counts {
		s := start.AddDate(0, 0, i)
		out[i] = domain.TimeBucket{Granularity: domain.GranularityDay, Key: s.Format("2006-01-02"), Start: s, Count: c}
	}
	return out
}

func TestBursts_SingleSpike(t *testing.T) {
	params := domain.BurstParams{Threshold: 2.0, MinHistory: 3, MinCount: 5}

	// 100 events over ten days, 20 of them on the last day. The step from 8
	// to 9 has zero variance behind it but is not a burst.
	got := Bursts(series(8, 8, 8, 9, 9, 9, 9, 9, 9, 20), params)

	require.Len(t, got, 1)
	assert.Equal(t, "2024-01-10", got[0].Key)
	assert.Equal(t, 20, got[0].Count)
	assert.InDelta(t, 8.667, got[0].Mean, 0.001)
	assert.InDelta(t, 0.471, got[0].StdDev, 0.001)
}

func TestBursts_Window(t *testing.T) {
	params := domain.BurstParams{Threshold: 1.0, Window: 2, MinHistory: 2, MinCount: 1}

	// With a two-bucket window the step up to 10 is only unusual once.
	got := Bursts(series(1, 1, 1, 10, 10, 10), params)

	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].Count)
	assert.Equal(t, "2024-01-04", got[0].Key)
}

func TestBursts_Guards(t *testing.T) {
	assert.Empty(t, Bursts(series(0, 0, 50), domain.BurstParams{Threshold: 2, MinHistory: 3, MinCount: 5}), "too little history")
	assert.Empty(t, Bursts(series(1, 1, 1, 4), domain.BurstParams{Threshold: 2, MinHistory: 3, MinCount: 5}), "below min count")
	assert.Len(t, Bursts(series(1, 1, 1, 4), domain.BurstParams{Threshold: 2, MinHistory: 3, MinCount: 1}), 1, "flat history still flags a clear rise")
	assert.Empty(t, Bursts(series(8, 8, 8, 9), domain.BurstParams{Threshold: 2, MinHistory: 3, MinCount: 1}), "flat history does not flag a one-event rise")
	assert.Empty(t, Bursts(series(0, 0, 0, 2), domain.BurstParams{Threshold: 2, MinHistory: 3, MinCount: 1}), "empty history needs more than the floor")
	assert.Empty(t, Bursts(nil, domain.BurstParams{}))
}
