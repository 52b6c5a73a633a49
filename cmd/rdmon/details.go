package main

import (
	apihttp "github.com/rdmonitor/rdmon/adapters/http"
	"github.com/spf13/cobra"
)

var detailsCmd = &cobra.Command{
	Use:   "details",
	Short: "Per-day traffic of the last 31 days",
	Long: `Print the traffic of each day of the last 31 days, broken down by
hoster. Days without traffic are omitted.

Examples:
  rdmon details
  rdmon details --json`,
	Args: cobra.NoArgs,
	RunE: runDetails,
}

func init() {
	rootCmd.AddCommand(detailsCmd)
}

func runDetails(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	details, err := a.Details.Fetch(cmd.Context(), a.Settings.RefreshConfig())
	if err != nil {
		return noKeyHint(err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, apihttp.NewDetailsResponse(details))
	}
	renderDetails(out, details)
	return nil
}
