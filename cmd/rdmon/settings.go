package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/rdmonitor/rdmon/domain/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage settings",
	Long: `Manage the settings stored in the rdmon database.

Known keys:
  api_key                    Real-Debrid API key, or "demo"
  demo_mode                  Use generated data (true/false)
  auto_refresh               Refresh periodically in 'rdmon serve' (true/false)
  refresh_interval           Live refresh period in seconds
  traffic_warning_threshold  Flag hosts above this usage percent (50-95)

The API key is sealed at rest when a secret is configured.

Examples:
  rdmon settings list
  rdmon settings set api_key ABCDEF123456
  rdmon settings get refresh_interval
  rdmon settings delete demo_mode`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsList,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a setting value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Reset a setting to its default",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsDelete,
}

var settingsReveal bool

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsDeleteCmd)

	settingsGetCmd.Flags().BoolVar(&settingsReveal, "reveal", false, "print secrets unmasked")
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	all := a.Settings.Get().Redacted()
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, all)
	}

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintln(w, "---\t-----")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, all[k])
	}
	w.Flush()

	fmt.Fprintf(out, "\nMode: %s\n", a.Settings.RefreshConfig().Mode())
	return nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	if !settings.IsKnown(key) {
		return fmt.Errorf("unknown setting %q", key)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	value := a.Settings.GetValue(key)
	if settings.IsSensitive(key) && !settingsReveal {
		value = settings.Mask(value)
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Settings.Set(context.Background(), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set setting: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s\n", checkMark, args[0])
	return nil
}

func runSettingsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if err := a.Settings.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s\n", checkMark, args[0])
	return nil
}
