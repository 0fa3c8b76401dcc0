// Command archeo ingests personal data exports and answers questions about
// them from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/archeo/internal/adapters/driven/config/file"
	"github.com/custodia-labs/archeo/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/archeo/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/archeo/internal/adapters/driving/cli"
	"github.com/custodia-labs/archeo/internal/connectors/filesystem"
	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/services"
	"github.com/custodia-labs/archeo/internal/logger"
	"github.com/custodia-labs/archeo/internal/store"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	svcs, cleanup, err := wire(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer cleanup()

	cli.SetVersion(version)
	cli.SetServices(svcs)
	if err := cli.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

// wire builds the services behind the CLI. The returned cleanup releases
// the cache database and the file watcher.
func wire(ctx context.Context) (cli.Services, func(), error) {
	// 1. Configuration
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("open config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		// Keep the CLI usable so that `archeo config set` can repair it
		logger.Warn("%v, using defaults", err)
		defaults := settingsService.GetDefaults()
		settings = &defaults
	}

	// 2. File discovery and watching
	discoverer, err := filesystem.NewDiscoverer(settings.Ingest.Include)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("ingest.include: %w", err)
	}
	watcher, err := filesystem.NewWatcher(settings.Ingest.Include)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("ingest.include: %w", err)
	}
	closers := []func() error{watcher.Close}

	// 3. Snapshot cache and run history, in memory when SQLite is unavailable
	var (
		cache   driven.SnapshotCache
		reports driven.ReportStore = memory.NewReportStore()
	)
	db, err := sqlite.NewStore("")
	if err != nil {
		logger.Warn("open cache database: %v, using in-memory cache", err)
		if settings.Ingest.CacheEnabled {
			cache = memory.NewSnapshotCache()
		}
	} else {
		closers = append(closers, db.Close)
		reports = db.ReportStore()
		if settings.Ingest.CacheEnabled {
			cache = db.SnapshotCache()
			if n, err := cache.Prune(ctx, domain.SnapshotVersion); err != nil {
				logger.Warn("prune snapshots: %v", err)
			} else if n > 0 {
				logger.Info("pruned %d outdated snapshots", n)
			}
		}
	}

	// 4. Ingestion and queries share the published store
	publisher := store.NewPublisher(*settings)
	ingestService := services.NewIngestService(discoverer, services.NewDefaultParserRegistry(), cache, publisher, settingsService)
	ingestService.SetReportStore(reports)

	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("close: %v", err)
			}
		}
	}
	return cli.Services{
		Ingestor: ingestService,
		Query:    services.NewQueryService(publisher),
		Settings: settingsService,
		Reports:  reports,
		Watcher:  watcher,
	}, cleanup, nil
}
