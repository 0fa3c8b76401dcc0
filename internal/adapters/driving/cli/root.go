// Package cli is the command-line driving adapter for archeo.
//
// Commands talk to the core through the driving ports. The services are
// package-level so tests can swap them; cmd/archeo sets them with
// SetServices before calling Execute.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/ports/driven"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
	"github.com/custodia-labs/archeo/internal/logger"
)

var version = "dev"

// Services holds the dependencies the commands use.
type Services struct {
	Ingestor driving.Ingestor
	Query    driving.QueryEngine
	Settings driving.SettingsService
	Reports  driven.ReportStore
	Watcher  driven.FileWatcher
}

var (
	ingestService   driving.Ingestor
	queryService    driving.QueryEngine
	settingsService driving.SettingsService
	reportStore     driven.ReportStore
	fileWatcher     driven.FileWatcher
)

var (
	verboseFlag  bool
	outputFormat string
	sourcePaths  []string
)

var rootCmd = &cobra.Command{
	Use:   "archeo",
	Short: "Personal data archive engine",
	Long: `Archeo ingests personal data exports (mbox mailboxes and JSON exports
from chat, messenger and activity services), normalises them into one
timeline of events and answers questions about it: who you talk to, when,
how often and about what.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "print ingestion progress to stderr")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatText, "output format: text, json or yaml")
	rootCmd.PersistentFlags().StringSliceVarP(&sourcePaths, "source", "s", nil,
		"archive files or directories to ingest before querying")
}

// SetServices installs the services used by the commands.
func SetServices(s Services) {
	ingestService = s.Ingestor
	queryService = s.Query
	settingsService = s.Settings
	reportStore = s.Reports
	fileWatcher = s.Watcher
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context that commands use
// for cancellation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// queryEngine ingests any --source paths and returns the query service.
// Unchanged files are served from the snapshot cache, so repeated queries
// over the same archive only pay for the merge.
func queryEngine(cmd *cobra.Command) (driving.QueryEngine, error) {
	if queryService == nil {
		return nil, errors.New("query service not configured")
	}
	if len(sourcePaths) == 0 {
		return queryService, nil
	}
	if ingestService == nil {
		return nil, errors.New("ingest service not configured")
	}

	report, err := ingestService.Ingest(commandContext(cmd), sourcePaths)
	if err != nil {
		return nil, fmt.Errorf("ingest sources: %w", err)
	}
	for i := range report.Files {
		if f := &report.Files[i]; f.Failed() {
			cmd.PrintErrf("warning: %s: %s\n", f.Path, f.Error)
		}
	}
	return queryService, nil
}
