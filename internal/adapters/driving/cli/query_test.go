package cli

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

func testQuery() *mockQuery {
	alice := domain.Participant{ID: "p-alice", Key: "addr:alice@example.com", Address: "alice@example.com",
		Aliases: []string{"Alice"}, EventCount: 3, FirstSeen: testTime, LastSeen: testTime.Add(2 * time.Hour)}
	bob := domain.Participant{ID: "p-bob", Key: "addr:bob@example.com", Address: "bob@example.com", EventCount: 2}
	return &mockQuery{
		events: []domain.CanonicalEvent{
			{ID: "ev-1", Timestamp: testTime, Channel: domain.ChannelMail, Participants: []string{"p-alice", "p-bob"},
				Metadata: map[string]string{domain.MetaSubject: "Hello"},
				Content:  domain.ContentRef{Path: "/archive/inbox.mbox", Offset: 0, Length: 200}},
			{ID: "ev-2", Timestamp: testTime.Add(time.Hour), Channel: domain.ChannelChat, Participants: []string{"p-alice"}},
		},
		participants: map[string]domain.Participant{
			"p-alice": alice, "alice@example.com": alice, "p-bob": bob, "bob@example.com": bob,
		},
		ranked: []domain.RankedParticipant{
			{Participant: alice, Interactions: 1500, Score: 1500},
			{Participant: bob, Interactions: 2.5, Score: 2.5},
		},
		edge: &domain.RelationshipEdge{A: "p-alice", B: "p-bob", AToB: 2, BToA: 1, Total: 3, Events: 3, ActiveDays: 1,
			FirstInteraction: testTime, LastInteraction: testTime.Add(time.Hour)},
		buckets: []domain.TimeBucket{
			{Granularity: domain.GranularityDay, Key: "2022-01-01", Count: 4},
			{Granularity: domain.GranularityDay, Key: "2022-01-02", Count: 0},
			{Granularity: domain.GranularityDay, Key: "2022-01-03", Count: 2},
		},
		segments: []domain.TopicSegment{{ID: "chat:0", Channel: domain.ChannelChat, Start: testTime, End: testTime,
			EventIDs: []string{"ev-2"}, Keywords: []domain.Keyword{{Term: "trip", Count: 2}, {Term: "plan", Count: 1}}}},
		counterparts: []domain.Counterpart{{Participant: bob, Sent: 2, Received: 1, Total: 3, ActiveDays: 1,
			Tier: domain.TierPeripheral, Reciprocity: domain.ReciprocityMostlyOwner, First: testTime, Last: testTime}},
		content: "Hi Bob\n\tindented",
	}
}

func TestEventsCmd(t *testing.T) {
	q := testQuery()
	defer setupCLITest(Services{Query: q})()

	out, err := execute("events", "--from", "2022-01-01", "--to", "2022-02-01T00:00:00Z", "--channel", "mail")

	require.NoError(t, err)
	assert.Equal(t, testTime.Truncate(24*time.Hour), q.lastRange.Start)
	assert.Equal(t, time.Date(2022, 2, 1, 0, 0, 0, 0, time.UTC), q.lastRange.End)
	require.NotNil(t, q.lastChannel)
	assert.Equal(t, domain.ChannelMail, *q.lastChannel)
	assert.Contains(t, out, "2022-01-01 10:00")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "ev-1")
}

func TestEventsCmd_LimitAndJSON(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	out, err := execute("events", "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Showing 1 of 2 events.")

	out, err = execute("events", "-o", "json", "-n", "0")
	require.NoError(t, err)
	var events []domain.CanonicalEvent
	require.NoError(t, json.Unmarshal([]byte(out), &events))
	assert.Len(t, events, 2)
}

func TestEventsCmd_BadTime(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	_, err := execute("events", "--from", "yesterday")

	assert.ErrorContains(t, err, `invalid --from "yesterday"`)
}

func TestEventsCmd_IngestsSources(t *testing.T) {
	ingestor := &mockIngestor{report: testReport()}
	defer setupCLITest(Services{Query: testQuery(), Ingestor: ingestor})()

	out, err := execute("events", "--source", "/archive")

	require.NoError(t, err)
	assert.Equal(t, []string{"/archive"}, ingestor.paths)
	assert.Contains(t, out, "warning: /archive/notes.txt: unrecognised format")
}

func TestQueryCmds_NotConfigured(t *testing.T) {
	defer setupCLITest(Services{})()

	for _, args := range [][]string{{"events"}, {"top"}, {"edge", "a", "b"}, {"series"}, {"segments", "chat"}} {
		_, err := execute(args...)
		assert.EqualError(t, err, "query service not configured", args[0])
	}
}

func TestShowCmd(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	out, err := execute("show", "ev-1")

	require.NoError(t, err)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, "/archive/inbox.mbox@0")
	assert.Contains(t, out, "Hi Bob")
	assert.Contains(t, out, "    indented")

	_, err = execute("show", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTopCmd(t *testing.T) {
	q := testQuery()
	defer setupCLITest(Services{Query: q})()

	out, err := execute("top", "--metric", "recency", "-n", "5", "--include-self")

	require.NoError(t, err)
	assert.Equal(t, domain.MetricRecency, q.lastTop.Metric)
	assert.Equal(t, 5, q.lastTop.Limit)
	assert.True(t, q.lastTop.IncludeSelf)
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "2.5")
	assert.Contains(t, out, "never")
	topIncludeSelf = false
}

func TestWhoCmd(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	out, err := execute("who", "alice@example.com")

	require.NoError(t, err)
	assert.Contains(t, out, "addr:alice@example.com")
	assert.Contains(t, out, "2022-01-01 12:00")

	_, err = execute("who", "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEdgeCmd(t *testing.T) {
	q := testQuery()
	defer setupCLITest(Services{Query: q})()

	out, err := execute("edge", "alice@example.com", "bob@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Alice → bob@example.com")
	assert.Contains(t, out, "3 over 3 events")

	q.edge = nil
	out, err = execute("edge", "alice@example.com", "carol@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "never interacted")
}

func TestCounterpartsAndTimelineCmds(t *testing.T) {
	q := testQuery()
	defer setupCLITest(Services{Query: q})()

	out, err := execute("counterparts")
	require.NoError(t, err)
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, string(domain.ReciprocityMostlyOwner))

	_, err = execute("timeline", "--min", "25")
	require.NoError(t, err)
	assert.InDelta(t, 25, q.lastMin, 1e-9)
}

func TestSeriesCmd(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	out, err := execute("series", "-g", "day")

	require.NoError(t, err)
	assert.Contains(t, out, "2022-01-02")
	assert.Contains(t, out, "████████████████████████████████████████")

	_, err = execute("series", "-g", "fortnight")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSegmentsCmd(t *testing.T) {
	defer setupCLITest(Services{Query: testQuery()})()

	out, err := execute("segments", "chat", "-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "chat:0")
	assert.Contains(t, out, "trip")
	assert.NotContains(t, out, "plan")

	_, err = execute("segments", "fax")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	segmentsKeywords = 5
}

func TestOutputHelpers(t *testing.T) {
	assert.Equal(t, "", bar(0, 10, 40))
	assert.Equal(t, "█", bar(1, 100, 40))
	assert.Equal(t, "1,500", formatWeight(1500))
	assert.Equal(t, "2.5", formatWeight(2.5))
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.Equal(t, "hello wo…", truncate("hello   world", 9))
	assert.Equal(t, "short", truncate("short", 9))

	got, err := parseTimeFlag("from", "2022-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), got)
	got, err = parseTimeFlag("from", "")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
