package services

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
	"github.com/custodia-labs/archeo/internal/logger"
	"github.com/custodia-labs/archeo/internal/normaliser"
	"github.com/custodia-labs/archeo/internal/store"
)

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

var ingestLog = logger.Component("ingest", 2*time.Second)

// IngestService coordinates ingestion: discovery, concurrent per-file
// parsing, the ordered merge, normalisation, aggregation and publication.
type IngestService struct {
	discoverer driven.FileDiscoverer
	registry   *ParserRegistry
	cache      driven.SnapshotCache
	publisher  *store.Publisher
	settings   driving.SettingsService
	reports    driven.ReportStore

	// Status tracking
	mu         sync.RWMutex
	status     domain.IngestStatus
	lastReport *domain.IngestionReport
}

// NewIngestService creates an ingest service. cache and settings are
// optional; without a cache every file is parsed, without settings the
// defaults apply.
func NewIngestService(
	discoverer driven.FileDiscoverer,
	registry *ParserRegistry,
	cache driven.SnapshotCache,
	publisher *store.Publisher,
	settings driving.SettingsService,
) *IngestService {
	return &IngestService{
		discoverer: discoverer,
		registry:   registry,
		cache:      cache,
		publisher:  publisher,
		settings:   settings,
	}
}

// SetReportStore enables persistence of run reports.
func (s *IngestService) SetReportStore(reports driven.ReportStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = reports
}

// shard is the parse result of one file.
type shard struct {
	candidates []domain.Candidate
	report     domain.FileReport
	err        error
}

// Ingest parses every file under paths and publishes a rebuilt store.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestService) Ingest(ctx context.Context, paths []string) (*domain.IngestionReport, error) {
	// 1. Claim the run
	runID := uuid.NewString()
	if err := s.begin(runID); err != nil {
		return nil, err
	}
	defer s.finish()

	settings := s.loadSettings()

	// 2. Discover files
	files, err := s.discoverer.Discover(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	s.updateStatus(func(st *domain.IngestStatus) { st.Files = len(files) })

	report := &domain.IngestionReport{
		RunID:     runID,
		StartedAt: time.Now(),
		Files:     make([]domain.FileReport, len(files)),
	}
	logger.Section("Ingest")
	logger.Info("Run %s: %d files, %d workers", runID, len(files), settings.Ingest.Workers)

	// 3. Parse files concurrently into per-file shards
	shards := make([]shard, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(settings.Ingest.Workers, 1))
	for i, path := range files {
		g.Go(func() error {
			shards[i] = s.parseFile(gctx, i, path, &settings)
			s.updateStatus(func(st *domain.IngestStatus) { st.FilesDone++ })
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	// 4. Merge, normalise and aggregate in timestamp order
	var (
		fileErrs []error
		ordered  = make([][]domain.Candidate, len(shards))
		good     int
	)
	for i := range shards {
		if shards[i].err != nil {
			fileErrs = append(fileErrs, shards[i].err)
			continue
		}
		ordered[i] = shards[i].candidates
		good++
	}

	norm := normaliser.New(settings.Identity, settings.DedupWindow)
	builder := store.NewBuilder(settings)
	n := 0
	err = store.Merge(ordered, func(c *domain.Candidate) error {
		if n++; n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		ev, kept := norm.Add(c)
		if !kept {
			return nil
		}
		return builder.Add(*ev)
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	for i := range shards {
		fr := shards[i].report
		if shards[i].err == nil {
			fr.Ingested = norm.Ingested(i)
			fr.Duplicates = norm.Duplicates(i)
		}
		report.Files[i] = fr
	}
	report.FinishedAt = time.Now()

	// 5. Publish unless every file failed
	if len(files) > 0 && good == 0 {
		s.setReport(ctx, report)
		return report, errors.Join(fileErrs...)
	}
	built := builder.Build(norm.Participants())
	report.Events = built.Len()
	report.Participants = built.ParticipantCount()
	report.FinishedAt = time.Now()
	s.publisher.Publish(built)
	s.setReport(ctx, report)

	totals := report.Totals()
	logger.Info("Ingest complete: %d events, %d participants, %d skipped, %d duplicates in %s",
		report.Events, report.Participants, totals.SkippedRecoverable, totals.Duplicates, report.Duration())
	return report, nil
}

// parseFile produces the shard of one file, from the snapshot cache when
// the content is unchanged.
//
//nolint:gocognit // Pipeline with recoverable and fatal error paths
func (s *IngestService) parseFile(ctx context.Context, index int, path string, settings *domain.EngineSettings) shard {
	res := shard{report: domain.FileReport{Path: path}}
	fail := func(err error) shard {
		res.candidates = nil
		res.report.Error = err.Error()
		res.err = fmt.Errorf("%s: %w", path, err)
		ingestLog.Warn("%s failed: %v", path, err)
		return res
	}

	s.updateStatus(func(st *domain.IngestStatus) { st.Current = path })

	f, err := os.Open(path)
	if err != nil {
		return fail(fmt.Errorf("open: %w", err))
	}
	defer f.Close()

	// 1. HASH CONTENT
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return fail(fmt.Errorf("hash: %w", err))
	}
	res.report.ContentHash = hex.EncodeToString(h.Sum(nil))
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fail(fmt.Errorf("rewind: %w", err))
	}

	// 2. CHECK SNAPSHOT CACHE
	useCache := s.cache != nil && settings.Ingest.CacheEnabled
	if useCache {
		if snap, ok := s.cachedShard(ctx, res.report.ContentHash, settings.ParseFingerprint()); ok {
			ingestLog.Debug("%s unchanged, using snapshot", path)
			res.candidates = snap.Candidates
			for i := range res.candidates {
				res.candidates[i].Shard = index
				res.candidates[i].Content.Path = path
			}
			res.report = snap.Report
			res.report.Path = path
			res.report.Cached = true
			return res
		}
	}

	// 3. DETECT FORMAT
	br := bufio.NewReaderSize(f, 64*1024)
	format, err := s.registry.Detect(br)
	if err != nil {
		var fe *domain.FormatError
		if errors.As(err, &fe) && fe.Path == "" {
			fe.Path = path
		}
		return fail(err)
	}
	res.report.Format = format

	// 4. PARSE AND CANONICALISE
	parser, err := s.registry.NewParser(format, br, driven.ParserOptions{
		Path:               path,
		MaxMessageBytes:    settings.Ingest.MaxMessageBytes,
		CharsetFallbacks:   settings.Charset.Fallbacks,
		DefaultChannel:     settings.Ingest.DefaultChannel,
		IncludeSystemRoles: settings.Ingest.IncludeSystemRoles,
	})
	if err != nil {
		return fail(err)
	}
	canon := normaliser.NewCanonicaliser(path, index, normaliser.WithGmailFolding(settings.Identity.FoldGmail))

	for seq := 0; ; {
		rec, err := parser.Next(ctx)
		switch {
		case errors.Is(err, io.EOF):
		case errors.Is(err, domain.ErrParseRecoverable):
			res.report.SkippedRecoverable++
			res.report.AddWarning(domain.WarningFromError(err))
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return fail(err)
		case err != nil:
			res.report.DroppedFatal++
			res.report.AddWarning(domain.WarningFromError(err))
			return fail(err)
		}
		if rec == nil {
			break
		}

		for _, w := range rec.Warnings {
			res.report.AddWarning(w)
		}
		cand, err := canon.Canonicalise(rec, seq)
		seq++
		if err != nil {
			res.report.SkippedRecoverable++
			res.report.AddWarning(domain.WarningFromError(err))
			continue
		}
		res.candidates = append(res.candidates, *cand)
		res.report.Ingested++

		s.updateStatus(func(st *domain.IngestStatus) { st.Records++ })
		ingestLog.Progress("%s: %d records", path, len(res.candidates))
	}

	// 5. LINK THREADS AND ORDER THE SHARD
	if tr, ok := parser.(driven.ThreadResolver); ok {
		normaliser.ResolveThreads(res.candidates, tr)
	}
	store.SortShard(res.candidates)

	// 6. STORE SNAPSHOT
	if useCache {
		snap := &domain.Snapshot{
			ContentHash: res.report.ContentHash,
			Version:     domain.SnapshotVersion,
			Settings:    settings.ParseFingerprint(),
			Path:        path,
			Format:      format,
			CreatedAt:   time.Now(),
			Candidates:  res.candidates,
			Report:      res.report,
		}
		if err := s.cache.Put(ctx, snap); err != nil {
			ingestLog.Warn("cache %s: %v", path, err)
		}
	}

	ingestLog.Debug("%s: %d records, %d skipped", path, res.report.Ingested, res.report.SkippedRecoverable)
	return res
}

// cachedShard returns the snapshot for hash when it was written by this
// version under the same parse settings.
func (s *IngestService) cachedShard(ctx context.Context, hash, fingerprint string) (*domain.Snapshot, bool) {
	snap, err := s.cache.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			ingestLog.Warn("read snapshot %s: %v", hash, err)
		}
		return nil, false
	}
	if !snap.IsCurrent() {
		return nil, false
	}
	if snap.Settings != fingerprint {
		ingestLog.Debug("snapshot %s was parsed with other settings", hash)
		return nil, false
	}
	return snap, true
}

func (s *IngestService) loadSettings() domain.EngineSettings {
	if s.settings == nil {
		return domain.DefaultEngineSettings()
	}
	settings, err := s.settings.Get()
	if err != nil {
		logger.Warn("Failed to load settings, using defaults: %v", err)
		return domain.DefaultEngineSettings()
	}
	return *settings
}

// Status returns progress of the current or last run.
func (s *IngestService) Status() domain.IngestStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastReport returns the report of the last completed run, or nil.
func (s *IngestService) LastReport() *domain.IngestionReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReport
}

func (s *IngestService) begin(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status.Running {
		return domain.ErrIngestInProgress
	}
	s.status = domain.IngestStatus{Running: true, RunID: runID}
	return nil
}

func (s *IngestService) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Running = false
	s.status.Current = ""
}

func (s *IngestService) updateStatus(fn func(*domain.IngestStatus)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.status)
}

// setReport records the run as the last report and persists it when a
// report store is set. A persistence failure does not fail the run.
func (s *IngestService) setReport(ctx context.Context, r *domain.IngestionReport) {
	s.mu.Lock()
	s.lastReport = r
	reports := s.reports
	s.mu.Unlock()

	if reports == nil {
		return
	}
	if err := reports.SaveReport(ctx, r); err != nil {
		ingestLog.Warn("save report %s: %v", r.RunID, err)
	}
}
