package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/domain"
)

var (
	seriesGranularity string
	seriesChannel     string
	seriesFrom        string
	seriesTo          string
	segmentsKeywords  int
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "Show event counts per day, week, month or year",
	Long: `Prints a dense frequency series: every bucket between the first and last
event (or the --from/--to range) is listed, empty ones included. Buckets
are computed in UTC and weeks start on Monday.`,
	Args: cobra.NoArgs,
	RunE: runSeries,
}

var burstsCmd = &cobra.Command{
	Use:   "bursts",
	Short: "List buckets with unusually high activity",
	Long: `Lists buckets whose count exceeds the mean of the preceding buckets by
more than the configured number of standard deviations (burst.threshold).`,
	Args: cobra.NoArgs,
	RunE: runBursts,
}

var segmentsCmd = &cobra.Command{
	Use:   "segments CHANNEL",
	Short: "List topic segments of a channel",
	Long: `Splits a channel's events into contiguous topic segments, breaking on
long gaps and on changes of vocabulary, and lists each segment with its
top keywords.`,
	Args: cobra.ExactArgs(1),
	RunE: runSegments,
}

func init() {
	for _, c := range []*cobra.Command{seriesCmd, burstsCmd} {
		c.Flags().StringVarP(&seriesGranularity, "granularity", "g", string(domain.GranularityMonth), "day, week, month or year")
		c.Flags().StringVarP(&seriesChannel, "channel", "c", "", "channel: mail, chat or search")
	}
	seriesCmd.Flags().StringVar(&seriesFrom, "from", "", "start of range (inclusive)")
	seriesCmd.Flags().StringVar(&seriesTo, "to", "", "end of range (exclusive)")
	segmentsCmd.Flags().IntVarP(&segmentsKeywords, "keywords", "k", 5, "keywords shown per segment")
	rootCmd.AddCommand(seriesCmd, burstsCmd, segmentsCmd)
}

func outputBuckets(cmd *cobra.Command, buckets []domain.TimeBucket, bursts bool) error {
	return render(cmd, buckets, func(w io.Writer) {
		if len(buckets) == 0 {
			fmt.Fprintln(w, "No buckets.")
			return
		}
		peak := 0
		for i := range buckets {
			peak = max(peak, buckets[i].Count)
		}
		if bursts {
			fmt.Fprintln(w, "BUCKET\tCOUNT\tMEAN\tSTDDEV")
		} else {
			fmt.Fprintln(w, "BUCKET\tCOUNT\t")
		}
		for i := range buckets {
			b := &buckets[i]
			if bursts {
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\n", b.Key, formatCount(b.Count), b.Mean, b.StdDev)
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Key, formatCount(b.Count), bar(b.Count, peak, 40))
		}
	})
}

// bar renders n against peak as a bar of at most width cells.
func bar(n, peak, width int) string {
	if peak == 0 || n == 0 {
		return ""
	}
	return strings.Repeat("█", max(1, n*width/peak))
}

func runSeries(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	r, err := rangeFlags(seriesFrom, seriesTo)
	if err != nil {
		return err
	}

	buckets, err := q.FrequencySeries(commandContext(cmd), domain.Granularity(seriesGranularity), channelFlag(seriesChannel), r)
	if err != nil {
		return fmt.Errorf("failed to build series: %w", err)
	}
	return outputBuckets(cmd, buckets, false)
}

func runBursts(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}

	buckets, err := q.Bursts(commandContext(cmd), domain.Granularity(seriesGranularity), channelFlag(seriesChannel))
	if err != nil {
		return fmt.Errorf("failed to detect bursts: %w", err)
	}
	return outputBuckets(cmd, buckets, true)
}

func runSegments(cmd *cobra.Command, args []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}

	segs, err := q.Segments(commandContext(cmd), domain.Channel(args[0]))
	if err != nil {
		return fmt.Errorf("failed to list segments: %w", err)
	}

	return render(cmd, segs, func(w io.Writer) {
		if len(segs) == 0 {
			fmt.Fprintln(w, "No segments found.")
			return
		}
		fmt.Fprintln(w, "SEGMENT\tSTART\tEND\tEVENTS\tKEYWORDS")
		for i := range segs {
			s := &segs[i]
			var kws []string
			for j, k := range s.Keywords {
				if j == segmentsKeywords {
					break
				}
				kws = append(kws, k.Term)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, formatTime(s.Start), formatTime(s.End),
				formatCount(s.Size()), strings.Join(kws, ", "))
		}
	})
}
