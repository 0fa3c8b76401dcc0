package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
)

var (
	topMetric           string
	topLimit            int
	topIncludeSelf      bool
	topIncludeAutomated bool

	relParticipant   string
	relMinTotal      float64
	relMinActiveDays int
	relLimit         int

	counterpartsLimit int
	timelineMin       float64
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank participants",
	Long: `Ranks participants by interaction total or by recency. Your own
identities and automated senders are left out unless asked for.`,
	Args: cobra.NoArgs,
	RunE: runTop,
}

var whoCmd = &cobra.Command{
	Use:   "who PARTICIPANT",
	Short: "Show a participant",
	Long: `Resolves a participant by id, identity key, address or display name
and prints what is known about them.`,
	Args: cobra.ExactArgs(1),
	RunE: runWho,
}

var edgeCmd = &cobra.Command{
	Use:   "edge A B",
	Short: "Show the relationship between two participants",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdge,
}

var relationshipsCmd = &cobra.Command{
	Use:   "relationships",
	Short: "List relationships, strongest first",
	Args:  cobra.NoArgs,
	RunE:  runRelationships,
}

var counterpartsCmd = &cobra.Command{
	Use:   "counterparts",
	Short: "Summarise your relationship with each participant",
	Long: `Lists every non-automated participant you interacted with: messages
sent and received, active days, relationship tier and reciprocity.`,
	Args: cobra.NoArgs,
	RunE: runCounterparts,
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "List long-running relationships by first contact",
	Long: `Lists counterparts whose interaction total reaches --min, ordered by
first interaction. Without --min the core tier threshold applies.`,
	Args: cobra.NoArgs,
	RunE: runTimeline,
}

func init() {
	topCmd.Flags().StringVarP(&topMetric, "metric", "m", string(domain.MetricInteractions), "ranking: interactions or recency")
	topCmd.Flags().IntVarP(&topLimit, "limit", "n", 20, "maximum number of participants (0 = all)")
	topCmd.Flags().BoolVar(&topIncludeSelf, "include-self", false, "include your own identities")
	topCmd.Flags().BoolVar(&topIncludeAutomated, "include-automated", false, "include automated senders")

	relationshipsCmd.Flags().StringVarP(&relParticipant, "participant", "p", "", "only edges touching this participant")
	relationshipsCmd.Flags().Float64Var(&relMinTotal, "min-total", 0, "minimum interaction total")
	relationshipsCmd.Flags().IntVar(&relMinActiveDays, "min-days", 0, "minimum number of active days")
	relationshipsCmd.Flags().IntVarP(&relLimit, "limit", "n", 20, "maximum number of edges (0 = all)")

	counterpartsCmd.Flags().IntVarP(&counterpartsLimit, "limit", "n", 20, "maximum number of counterparts (0 = all)")
	timelineCmd.Flags().Float64Var(&timelineMin, "min", 0, "minimum interaction total (0 = core tier)")

	rootCmd.AddCommand(topCmd, whoCmd, edgeCmd, relationshipsCmd, counterpartsCmd, timelineCmd)
}

// nameOf returns a participant's display name, or the id when it does
// not resolve.
func nameOf(ctx context.Context, q driving.QueryEngine, id string) string {
	if p, err := q.Participant(ctx, id); err == nil {
		return p.DisplayName()
	}
	return id
}

func runTop(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}

	ranked, err := q.TopParticipants(commandContext(cmd), domain.TopOptions{
		Metric:           domain.ParticipantMetric(topMetric),
		Limit:            topLimit,
		IncludeSelf:      topIncludeSelf,
		IncludeAutomated: topIncludeAutomated,
	})
	if err != nil {
		return fmt.Errorf("failed to rank participants: %w", err)
	}

	return render(cmd, ranked, func(w io.Writer) {
		if len(ranked) == 0 {
			fmt.Fprintln(w, "No participants found.")
			return
		}
		fmt.Fprintln(w, "#\tPARTICIPANT\tINTERACTIONS\tEVENTS\tLAST SEEN")
		for i := range ranked {
			p := &ranked[i].Participant
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, p.DisplayName(),
				formatWeight(ranked[i].Interactions), formatCount(p.EventCount), formatAgo(p.LastSeen))
		}
	})
}

func runWho(cmd *cobra.Command, args []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}

	p, err := q.Participant(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve participant: %w", err)
	}

	return render(cmd, p, func(w io.Writer) {
		fmt.Fprintf(w, "Name:\t%s\n", p.DisplayName())
		fmt.Fprintf(w, "ID:\t%s\n", p.ID)
		fmt.Fprintf(w, "Key:\t%s\n", p.Key)
		if p.Address != "" {
			fmt.Fprintf(w, "Address:\t%s\n", p.Address)
		}
		for _, a := range p.Aliases {
			fmt.Fprintf(w, "Alias:\t%s\n", a)
		}
		fmt.Fprintf(w, "Events:\t%s\n", formatCount(p.EventCount))
		fmt.Fprintf(w, "First seen:\t%s\n", formatTime(p.FirstSeen))
		fmt.Fprintf(w, "Last seen:\t%s (%s)\n", formatTime(p.LastSeen), formatAgo(p.LastSeen))
		if p.Self {
			fmt.Fprintln(w, "Self:\tyes")
		}
		if p.Automated {
			fmt.Fprintln(w, "Automated:\tyes")
		}
	})
}

func runEdge(cmd *cobra.Command, args []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	edge, err := q.Relationship(ctx, args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to get relationship: %w", err)
	}

	return render(cmd, edge, func(w io.Writer) {
		if edge == nil {
			fmt.Fprintf(w, "%s and %s never interacted.\n", args[0], args[1])
			return
		}
		a, b := nameOf(ctx, q, edge.A), nameOf(ctx, q, edge.B)
		fmt.Fprintf(w, "%s → %s:\t%s\n", a, b, formatWeight(edge.AToB))
		fmt.Fprintf(w, "%s → %s:\t%s\n", b, a, formatWeight(edge.BToA))
		fmt.Fprintf(w, "Total:\t%s over %s events\n", formatWeight(edge.Total), formatCount(edge.Events))
		fmt.Fprintf(w, "Active days:\t%s\n", formatCount(edge.ActiveDays))
		fmt.Fprintf(w, "First:\t%s\n", formatTime(edge.FirstInteraction))
		fmt.Fprintf(w, "Last:\t%s\n", formatTime(edge.LastInteraction))
	})
}

func runRelationships(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	edges, err := q.Relationships(ctx, domain.RelationshipFilter{
		Participant:   relParticipant,
		MinTotal:      relMinTotal,
		MinActiveDays: relMinActiveDays,
		Limit:         relLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list relationships: %w", err)
	}

	return render(cmd, edges, func(w io.Writer) {
		if len(edges) == 0 {
			fmt.Fprintln(w, "No relationships found.")
			return
		}
		fmt.Fprintln(w, "A\tB\tTOTAL\tDAYS\tFIRST\tLAST")
		for i := range edges {
			e := &edges[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", nameOf(ctx, q, e.A), nameOf(ctx, q, e.B),
				formatWeight(e.Total), e.ActiveDays, formatTime(e.FirstInteraction), formatTime(e.LastInteraction))
		}
	})
}

func outputCounterparts(cmd *cobra.Command, cs []domain.Counterpart) error {
	return render(cmd, cs, func(w io.Writer) {
		if len(cs) == 0 {
			fmt.Fprintln(w, "No counterparts found.")
			return
		}
		fmt.Fprintln(w, "PARTICIPANT\tSENT\tRECEIVED\tDAYS\tSPAN\tTIER\tRECIPROCITY\tFIRST\tLAST")
		for i := range cs {
			c := &cs[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dd\t%s\t%s\t%s\t%s\n", c.Participant.DisplayName(),
				formatWeight(c.Sent), formatWeight(c.Received), c.ActiveDays, c.SpanDays,
				c.Tier, c.Reciprocity, formatTime(c.First), formatTime(c.Last))
		}
	})
}

func runCounterparts(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	cs, err := q.Counterparts(commandContext(cmd), counterpartsLimit)
	if err != nil {
		return fmt.Errorf("failed to list counterparts: %w", err)
	}
	return outputCounterparts(cmd, cs)
}

func runTimeline(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	cs, err := q.CoreTimeline(commandContext(cmd), timelineMin)
	if err != nil {
		return fmt.Errorf("failed to build timeline: %w", err)
	}
	return outputCounterparts(cmd, cs)
}
