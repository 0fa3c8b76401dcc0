package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func testSnapshot(hash string, version int) *domain.Snapshot {
	at := time.Date(2023, 3, 14, 15, 9, 26, 0, time.UTC)
	return &domain.Snapshot{
		ContentHash: hash,
		Version:     version,
		Settings:    "0123456789abcdef",
		Path:        "/archive/inbox.mbox",
		Format:      domain.FormatMailbox,
		CreatedAt:   at,
		Candidates: []domain.Candidate{{
			Shard:       3,
			Seq:         0,
			Timestamp:   at,
			Channel:     domain.ChannelMail,
			Identities:  []domain.Identity{{Address: "ann@example.com", Name: "Ann", Role: domain.RoleSender}},
			ContentHash: "c0ffee",
			Terms:       []string{"budget", "review"},
			Content:     domain.ContentRef{Path: "/archive/inbox.mbox", Offset: 0, Length: 512},
			Metadata:    map[string]string{domain.MetaSubject: "Budget review"},
			Confidence:  1,
		}},
		Report: domain.FileReport{Path: "/archive/inbox.mbox", Format: domain.FormatMailbox, Ingested: 1, SkippedRecoverable: 1},
	}
}

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "cache.db"), store.Path())
	assert.FileExists(t, store.Path())
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()

	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.SnapshotCache().Put(context.Background(), testSnapshot("h1", 1)))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 3, version)

	_, err = second.SnapshotCache().Get(context.Background(), "h1")
	assert.NoError(t, err)
}

func TestSnapshotCache_PutGet(t *testing.T) {
	cache := setupTestStore(t).SnapshotCache()
	ctx := context.Background()
	want := testSnapshot("abc123", domain.SnapshotVersion)

	require.NoError(t, cache.Put(ctx, want))
	got, err := cache.Get(ctx, "abc123")

	require.NoError(t, err)
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Settings, got.Settings)
	assert.Equal(t, want.Format, got.Format)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, want.Report, got.Report)
	require.Len(t, got.Candidates, 1)
	c := got.Candidates[0]
	assert.Equal(t, 0, c.Shard, "shard is assigned per run, not stored")
	assert.True(t, want.Candidates[0].Timestamp.Equal(c.Timestamp))
	assert.Equal(t, want.Candidates[0].Identities, c.Identities)
	assert.Equal(t, want.Candidates[0].Terms, c.Terms)
	assert.Equal(t, want.Candidates[0].Content, c.Content)
	assert.Equal(t, want.Candidates[0].Metadata, c.Metadata)
}

func TestSnapshotCache_PutReplaces(t *testing.T) {
	cache := setupTestStore(t).SnapshotCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, testSnapshot("abc", 1)))

	updated := testSnapshot("abc", 2)
	updated.Path = "/moved/inbox.mbox"
	require.NoError(t, cache.Put(ctx, updated))

	got, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, "/moved/inbox.mbox", got.Path)
}

func TestSnapshotCache_NotFound(t *testing.T) {
	cache := setupTestStore(t).SnapshotCache()

	_, err := cache.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotCache_DeleteAndPrune(t *testing.T) {
	cache := setupTestStore(t).SnapshotCache()
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, testSnapshot("old-1", 0)))
	require.NoError(t, cache.Put(ctx, testSnapshot("old-2", 0)))
	require.NoError(t, cache.Put(ctx, testSnapshot("cur", 1)))

	require.NoError(t, cache.Delete(ctx, "old-1"))
	require.NoError(t, cache.Delete(ctx, "never-stored"))

	n, err := cache.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = cache.Get(ctx, "old-2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = cache.Get(ctx, "cur")
	assert.NoError(t, err)
}

func TestReportStore(t *testing.T) {
	reports := setupTestStore(t).ReportStore()
	ctx := context.Background()

	_, err := reports.LatestReport(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, reports.SaveReport(ctx, &domain.IngestionReport{
			RunID:      id,
			StartedAt:  start,
			FinishedAt: start.Add(time.Minute),
			Events:     10 * (i + 1),
			Files:      []domain.FileReport{{Path: "/archive/" + id, Ingested: 10 * (i + 1)}},
		}))
	}

	latest, err := reports.LatestReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-c", latest.RunID)
	assert.Equal(t, 30, latest.Events)
	require.Len(t, latest.Files, 1)
	assert.Equal(t, 30, latest.Files[0].Ingested)

	all, err := reports.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "run-a", all[2].RunID)

	two, err := reports.ListReports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
