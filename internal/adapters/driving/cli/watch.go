package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/adapters/driving/watch"
	"github.com/custodia-labs/archeo/internal/core/domain"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch PATH...",
	Short: "Re-ingest archive files when they change",
	Long: `Ingests the given paths, then watches them and re-ingests whenever a
file is created, written or removed. Changes are batched until the files
have been quiet for --debounce. Press Ctrl+C to stop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet period before re-ingesting")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}
	if fileWatcher == nil {
		return errors.New("file watcher not configured")
	}

	runner := watch.New(fileWatcher, ingestService,
		watch.WithDebounce(watchDebounce),
		watch.WithReportFunc(func(report *domain.IngestionReport, err error) {
			if err != nil {
				cmd.PrintErrf("[%s] ingest failed: %v\n", time.Now().Format("15:04:05"), err)
				return
			}
			totals := report.Totals()
			cmd.Printf("[%s] %s events, %s participants from %d files (%s skipped)\n",
				time.Now().Format("15:04:05"), formatCount(report.Events), formatCount(report.Participants),
				len(report.Files), formatCount(totals.SkippedRecoverable))
		}))

	cmd.Printf("Watching %d paths (debounce %s). Press Ctrl+C to stop.\n", len(args), watchDebounce)
	return runner.Run(commandContext(cmd), args)
}
