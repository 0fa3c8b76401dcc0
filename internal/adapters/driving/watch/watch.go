// Package watch re-ingests archive files when they change on disk.
//
// A Runner ingests once, then listens for file changes and runs a new
// ingestion after changes have settled for the debounce delay. Runs never
// overlap; changes that arrive during a run schedule one more run.
package watch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
	"github.com/custodia-labs/archeo/internal/logger"
)

// DefaultDebounce is the quiet period before a re-ingest.
const DefaultDebounce = 2 * time.Second

var watchLog = logger.Component("watch", time.Second)

// ReportFunc receives the outcome of every ingestion run.
type ReportFunc func(report *domain.IngestionReport, err error)

// Runner drives repeated ingestion from file change notifications.
type Runner struct {
	watcher  driven.FileWatcher
	ingestor driving.Ingestor
	debounce time.Duration
	onReport ReportFunc
}

// Option configures a Runner.
type Option func(*Runner)

// WithDebounce sets the quiet period before a re-ingest.
func WithDebounce(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.debounce = d
		}
	}
}

// WithReportFunc sets the callback invoked after each run.
func WithReportFunc(fn ReportFunc) Option {
	return func(r *Runner) {
		r.onReport = fn
	}
}

// New creates a Runner.
func New(watcher driven.FileWatcher, ingestor driving.Ingestor, opts ...Option) *Runner {
	r := &Runner{
		watcher:  watcher,
		ingestor: ingestor,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ingests paths, then re-ingests on every settled change until ctx is
// cancelled. It returns nil on cancellation and an error only when watching
// cannot start.
func (r *Runner) Run(ctx context.Context, paths []string) error {
	changes, err := r.watcher.Watch(ctx, paths)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	// The timer only signals; ingestion runs on this goroutine.
	trigger := make(chan struct{}, 1)
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(r.debounce, func() {
			select {
			case trigger <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
	}()

	r.ingest(ctx, paths)

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			watchLog.Debug("%s changed (removed=%t)", change.Path, change.Removed)
			schedule()
		case <-trigger:
			if errors.Is(r.ingest(ctx, paths), domain.ErrIngestInProgress) {
				schedule()
			}
		}
	}
}

func (r *Runner) ingest(ctx context.Context, paths []string) error {
	report, err := r.ingestor.Ingest(ctx, paths)
	if ctx.Err() != nil {
		return err
	}
	if err != nil {
		watchLog.Warn("re-ingest failed: %v", err)
	} else {
		watchLog.Info("re-ingested %d events from %d files", report.Events, len(report.Files))
	}
	if r.onReport != nil {
		r.onReport(report, err)
	}
	return err
}
