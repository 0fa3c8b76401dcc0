package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

var reportListLimit int

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the last ingestion report",
	Long: `Prints the report of the most recent ingestion run: per-file counts of
ingested, skipped and duplicate records. Use --output json or yaml to
export it.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

var reportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past ingestion runs",
	Args:  cobra.NoArgs,
	RunE:  runReportList,
}

func init() {
	reportCmd.Flags().BoolVarP(&ingestShowWarnings, "warnings", "w", false, "list every warning")
	reportListCmd.Flags().IntVarP(&reportListLimit, "limit", "n", 10, "maximum number of runs (0 = all)")
	reportCmd.AddCommand(reportListCmd)
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, _ []string) error {
	if ingestService != nil {
		if report := ingestService.LastReport(); report != nil {
			return outputReport(cmd, report)
		}
	}
	if reportStore == nil {
		return errors.New("no ingestion has run")
	}

	report, err := reportStore.LatestReport(commandContext(cmd))
	if errors.Is(err, domain.ErrNotFound) {
		return errors.New("no ingestion has run")
	}
	if err != nil {
		return fmt.Errorf("failed to load report: %w", err)
	}
	return outputReport(cmd, report)
}

func runReportList(cmd *cobra.Command, _ []string) error {
	if reportStore == nil {
		return errors.New("report store not configured")
	}

	reports, err := reportStore.ListReports(commandContext(cmd), reportListLimit)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}

	return render(cmd, reports, func(w io.Writer) {
		if len(reports) == 0 {
			fmt.Fprintln(w, "No ingestion runs recorded.")
			return
		}
		fmt.Fprintln(w, "RUN\tFINISHED\tFILES\tEVENTS\tPARTICIPANTS\tSKIPPED")
		for i := range reports {
			r := &reports[i]
			totals := r.Totals()
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", r.RunID, formatAgo(r.FinishedAt), len(r.Files),
				formatCount(r.Events), formatCount(r.Participants), formatCount(totals.SkippedRecoverable))
		}
	})
}
