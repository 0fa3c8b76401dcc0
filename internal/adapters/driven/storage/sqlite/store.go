package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/archeo/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
)

// Store is a SQLite database holding parse snapshots and run reports.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.archeo/data/cache.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".archeo", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cache.db")

	// Open database with WAL mode, parse workers write concurrently
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SnapshotCache returns a SnapshotCache backed by this store.
func (s *Store) SnapshotCache() driven.SnapshotCache {
	return &snapshotCache{store: s}
}

// ReportStore returns a ReportStore backed by this store.
func (s *Store) ReportStore() driven.ReportStore {
	return &reportStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_snapshots.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Snapshot Cache ====================

// snapshotCache implements driven.SnapshotCache.
type snapshotCache struct {
	store *Store
}

var _ driven.SnapshotCache = (*snapshotCache)(nil)

// Get retrieves the snapshot for a content hash.
func (c *snapshotCache) Get(ctx context.Context, contentHash string) (*domain.Snapshot, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT content_hash, version, settings, path, format, created_at, candidates, report
		FROM snapshots WHERE content_hash = ?
	`, contentHash)

	var (
		snap       domain.Snapshot
		format     string
		candidates []byte
		report     string
	)
	if err := row.Scan(&snap.ContentHash, &snap.Version, &snap.Settings, &snap.Path, &format,
		&snap.CreatedAt, &candidates, &report); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning snapshot: %w", err)
	}
	snap.Format = domain.Format(format)

	if err := json.Unmarshal(candidates, &snap.Candidates); err != nil {
		return nil, fmt.Errorf("unmarshaling candidates: %w", err)
	}
	if err := json.Unmarshal([]byte(report), &snap.Report); err != nil {
		return nil, fmt.Errorf("unmarshaling report: %w", err)
	}

	return &snap, nil
}

// Put stores or replaces a snapshot.
func (c *snapshotCache) Put(ctx context.Context, snap *domain.Snapshot) error {
	candidates, err := json.Marshal(snap.Candidates)
	if err != nil {
		return fmt.Errorf("marshalling candidates: %w", err)
	}
	report, err := json.Marshal(snap.Report)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}
	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO snapshots (content_hash, version, settings, path, format, created_at, candidates, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			version = excluded.version,
			settings = excluded.settings,
			path = excluded.path,
			format = excluded.format,
			created_at = excluded.created_at,
			candidates = excluded.candidates,
			report = excluded.report
	`, snap.ContentHash, snap.Version, snap.Settings, snap.Path, string(snap.Format),
		createdAt.UTC(), candidates, string(report))

	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (c *snapshotCache) Delete(ctx context.Context, contentHash string) error {
	_, err := c.store.db.ExecContext(ctx, "DELETE FROM snapshots WHERE content_hash = ?", contentHash)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

// Prune removes snapshots written by any other version.
func (c *snapshotCache) Prune(ctx context.Context, keepVersion int) (int, error) {
	res, err := c.store.db.ExecContext(ctx, "DELETE FROM snapshots WHERE version <> ?", keepVersion)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned snapshots: %w", err)
	}
	return int(n), nil
}

// ==================== Report Store ====================

// reportStore implements driven.ReportStore.
type reportStore struct {
	store *Store
}

var _ driven.ReportStore = (*reportStore)(nil)

// SaveReport stores a run's report.
func (r *reportStore) SaveReport(ctx context.Context, report *domain.IngestionReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshalling report: %w", err)
	}

	_, err = r.store.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (run_id, started_at, finished_at, events, participants, report)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			events = excluded.events,
			participants = excluded.participants,
			report = excluded.report
	`, report.RunID, report.StartedAt.UTC(), report.FinishedAt.UTC(),
		report.Events, report.Participants, string(data))

	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// LatestReport returns the most recently finished report.
func (r *reportStore) LatestReport(ctx context.Context) (*domain.IngestionReport, error) {
	reports, err := r.ListReports(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, domain.ErrNotFound
	}
	return &reports[0], nil
}

// ListReports returns reports newest first.
func (r *reportStore) ListReports(ctx context.Context, limit int) ([]domain.IngestionReport, error) {
	query := "SELECT report FROM ingest_runs ORDER BY finished_at DESC, run_id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.IngestionReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		var report domain.IngestionReport
		if err := json.Unmarshal([]byte(data), &report); err != nil {
			return nil, fmt.Errorf("unmarshaling report: %w", err)
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}

	return reports, nil
}
