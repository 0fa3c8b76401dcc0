package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage engine settings",
	Long: `View and change the settings stored in ~/.archeo/config.toml.

Keys use dotted names such as dedup.window or burst.threshold. Lists are
given comma-separated and durations in Go syntax (30s, 6h).`,
	RunE: runConfigList,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change a setting",
	Long: `Changes a setting and saves it. Values that cannot work, such as a
recurring tier above the core tier, are rejected and not saved. An empty
value restores the default.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// settingValues returns every setting as key → display value.
func settingValues() (map[string]string, error) {
	if settingsService == nil {
		return nil, errors.New("settings service not configured")
	}
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	v := map[string]string{
		"ingest.workers":               fmt.Sprint(settings.Ingest.Workers),
		"ingest.include":               strings.Join(settings.Ingest.Include, ","),
		"ingest.max_message_bytes":     fmt.Sprint(settings.Ingest.MaxMessageBytes),
		"ingest.default_channel":       string(settings.Ingest.DefaultChannel),
		"ingest.include_system_roles":  fmt.Sprint(settings.Ingest.IncludeSystemRoles),
		"cache.enabled":                fmt.Sprint(settings.Ingest.CacheEnabled),
		"identity.self":                strings.Join(settings.Identity.Self, ","),
		"identity.fold_gmail":          fmt.Sprint(settings.Identity.FoldGmail),
		"identity.automated_prefixes":  strings.Join(settings.Identity.AutomatedPrefixes, ","),
		"identity.automated_domains":   strings.Join(settings.Identity.AutomatedDomains, ","),
		"charset.fallbacks":            strings.Join(settings.Charset.Fallbacks, ","),
		"dedup.window":                 settings.DedupWindow.String(),
		"relationship.group_weight":    fmt.Sprint(settings.GroupWeight),
		"relationship.core_min":        fmt.Sprint(settings.Tiers.Core),
		"relationship.recurring_min":   fmt.Sprint(settings.Tiers.Recurring),
		"burst.threshold":              fmt.Sprint(settings.Burst.Threshold),
		"burst.window":                 fmt.Sprint(settings.Burst.Window),
		"burst.min_history":            fmt.Sprint(settings.Burst.MinHistory),
		"burst.min_count":              fmt.Sprint(settings.Burst.MinCount),
		"segment.max_gap":              settings.Segment.MaxGap.String(),
		"segment.min_similarity":       fmt.Sprint(settings.Segment.MinSimilarity),
		"segment.representative_size":  fmt.Sprint(settings.Segment.RepresentativeSize),
		"segment.keywords_per_segment": fmt.Sprint(settings.Segment.KeywordsPerSegment),
	}
	return v, nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	values, err := settingValues()
	if err != nil {
		return err
	}

	return render(cmd, values, func(w io.Writer) {
		for _, key := range settingsService.Keys() {
			fmt.Fprintf(w, "%s\t%s\n", key, orDash(values[key]))
		}
	})
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	values, err := settingValues()
	if err != nil {
		return err
	}
	value, ok := values[args[0]]
	if !ok {
		return fmt.Errorf("unknown setting %q", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	cmd.Printf("%s updated.\n", args[0])
	return nil
}
