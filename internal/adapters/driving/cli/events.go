package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archeo/internal/core/domain"
	"github.com/custodia-labs/archeo/internal/core/ports/driving"
)

var (
	eventsFrom    string
	eventsTo      string
	eventsChannel string
	eventsLimit   int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List events in a time range",
	Long: `Lists events in timestamp order. --from is inclusive and --to exclusive;
either may be omitted. --channel restricts the listing to mail, chat or
search events.`,
	Args: cobra.NoArgs,
	RunE: runEvents,
}

var showCmd = &cobra.Command{
	Use:   "show EVENT_ID",
	Short: "Show an event and its content",
	Long: `Prints an event's details and re-reads its text from the source file.
The store keeps no copy of message bodies, so the source file must still
be in place.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsFrom, "from", "", "start of range (inclusive)")
	eventsCmd.Flags().StringVar(&eventsTo, "to", "", "end of range (exclusive)")
	eventsCmd.Flags().StringVarP(&eventsChannel, "channel", "c", "", "channel: mail, chat or search")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 50, "maximum number of events (0 = all)")
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(showCmd)
}

// channelFlag converts a --channel value; empty selects every channel.
func channelFlag(value string) *domain.Channel {
	if value == "" {
		return nil
	}
	ch := domain.Channel(value)
	return &ch
}

func rangeFlags(from, to string) (driving.TimeRange, error) {
	start, err := parseTimeFlag("from", from)
	if err != nil {
		return driving.TimeRange{}, err
	}
	end, err := parseTimeFlag("to", to)
	if err != nil {
		return driving.TimeRange{}, err
	}
	return driving.TimeRange{Start: start, End: end}, nil
}

func runEvents(cmd *cobra.Command, _ []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	r, err := rangeFlags(eventsFrom, eventsTo)
	if err != nil {
		return err
	}

	events, err := q.EventsInRange(commandContext(cmd), r, channelFlag(eventsChannel))
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	total := len(events)
	if eventsLimit > 0 && len(events) > eventsLimit {
		events = events[:eventsLimit]
	}

	return render(cmd, events, func(w io.Writer) {
		if total == 0 {
			fmt.Fprintln(w, "No events found.")
			return
		}
		fmt.Fprintln(w, "TIME\tCHANNEL\tSUBJECT\tID")
		for i := range events {
			ev := &events[i]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", formatTime(ev.Timestamp), ev.Channel,
				truncate(orDash(ev.Metadata[domain.MetaSubject]), 50), ev.ID)
		}
		if total > len(events) {
			fmt.Fprintf(w, "\nShowing %s of %s events.\n", formatCount(len(events)), formatCount(total))
		}
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	q, err := queryEngine(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	ev, err := q.Event(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get event: %w", err)
	}
	content, err := q.Content(ctx, ev.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			cmd.PrintErrf("warning: %v\n", err)
		}
		content = ""
	}

	out := struct {
		domain.CanonicalEvent `yaml:",inline"`
		Text                  string `json:"text" yaml:"text"`
	}{*ev, content}

	return render(cmd, out, func(w io.Writer) {
		fmt.Fprintf(w, "ID:\t%s\n", ev.ID)
		fmt.Fprintf(w, "Time:\t%s\n", ev.Timestamp.UTC().Format("2006-01-02 15:04:05 MST"))
		fmt.Fprintf(w, "Channel:\t%s\n", ev.Channel)
		for _, id := range ev.Participants {
			name := id
			if p, err := q.Participant(ctx, id); err == nil {
				name = p.DisplayName()
			}
			fmt.Fprintf(w, "Participant:\t%s\n", name)
		}
		for _, key := range []string{domain.MetaSubject, domain.MetaConversation, domain.MetaURL} {
			if v := ev.Metadata[key]; v != "" {
				fmt.Fprintf(w, "%s:\t%s\n", key, v)
			}
		}
		fmt.Fprintf(w, "Source:\t%s@%d\n", ev.Content.Path, ev.Content.Offset)
		if content != "" {
			fmt.Fprintln(w)
			// Tabs would be aligned as columns
			fmt.Fprintln(w, strings.ReplaceAll(content, "\t", "    "))
		}
	})
}
