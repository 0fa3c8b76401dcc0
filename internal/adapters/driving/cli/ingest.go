package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
)

var ingestShowWarnings bool

var ingestCmd = &cobra.Command{
	Use:   "ingest PATH...",
	Short: "Ingest archive files",
	Long: `Parses every mailbox and JSON export under the given paths, rebuilds the
event store and reports per-file counts. Directories are walked
recursively. Files whose content is unchanged since the last run are
served from the snapshot cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestShowWarnings, "warnings", "w", false, "list every warning")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	report, err := ingestWithProgress(commandContext(cmd), cmd, ingestService, args)
	if report != nil {
		if rerr := outputReport(cmd, report); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

// ingestWithProgress runs ingestion while displaying progress updates on
// an interactive terminal.
func ingestWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	ingestor driving.Ingestor,
	paths []string,
) (*domain.IngestionReport, error) {
	type result struct {
		report *domain.IngestionReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := ingestor.Ingest(ctx, paths)
		done <- result{report, err}
	}()

	progress := isTerminal(cmd.ErrOrStderr())
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case res := <-done:
			if progress {
				cmd.PrintErr("\r\033[K")
			}
			return res.report, res.err
		case <-ticker.C:
			if !progress {
				continue
			}
			st := ingestor.Status()
			if st.Running {
				cmd.PrintErrf("\r\033[KIngesting %d/%d files, %s records", st.FilesDone, st.Files, formatCount(st.Records))
			}
		}
	}
}

func outputReport(cmd *cobra.Command, report *domain.IngestionReport) error {
	return render(cmd, report, func(w io.Writer) {
		fmt.Fprintf(w, "Run %s (%s)\n\n", report.RunID, report.Duration().Round(time.Millisecond))
		fmt.Fprintln(w, "FILE\tFORMAT\tINGESTED\tSKIPPED\tFATAL\tDUPLICATES\tNOTE")
		for i := range report.Files {
			f := &report.Files[i]
			note := ""
			switch {
			case f.Failed():
				note = "failed: " + truncate(f.Error, 60)
			case f.Cached:
				note = "cached"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				filepath.Base(f.Path), orDash(string(f.Format)),
				formatCount(f.Ingested), formatCount(f.SkippedRecoverable),
				formatCount(f.DroppedFatal), formatCount(f.Duplicates), note)
		}
		totals := report.Totals()
		fmt.Fprintf(w, "\nTotal: %s events, %s participants, %s skipped, %s duplicates, %s warnings\n",
			formatCount(report.Events), formatCount(report.Participants),
			formatCount(totals.SkippedRecoverable), formatCount(totals.Duplicates),
			formatCount(len(totals.Warnings)))

		if !ingestShowWarnings {
			return
		}
		for i := range report.Files {
			f := &report.Files[i]
			for _, warn := range f.Warnings {
				fmt.Fprintf(w, "  %s@%d\t%s\t%s\n", filepath.Base(f.Path), warn.Offset, warn.Kind, truncate(warn.Message, 100))
			}
		}
	})
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
