package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	apihttp "github.com/rdmonitor/rdmon/adapters/http"
	"github.com/rdmonitor/rdmon/domain/traffic"
	"github.com/spf13/cobra"
)

var trafficTimeout time.Duration

var trafficCmd = &cobra.Command{
	Use:   "traffic",
	Short: "Show the traffic summary and host usage",
	Long: `Run one refresh and print the result.

Each window is queried independently: a failed window is reported next
to the ones that succeeded.

Examples:
  rdmon traffic
  rdmon traffic --json`,
	Args: cobra.NoArgs,
	RunE: runTraffic,
}

func init() {
	rootCmd.AddCommand(trafficCmd)

	trafficCmd.Flags().DurationVar(&trafficTimeout, "timeout", 2*time.Minute, "give up after this long")
}

func runTraffic(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	ctx, cancel := context.WithTimeout(cmd.Context(), trafficTimeout)
	defer cancel()

	view, err := a.RefreshAndWait(ctx)
	if err != nil {
		return noKeyHint(err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, apihttp.NewTrafficResponse(view))
	}
	renderTraffic(out, view, a.Settings.Preferences(), time.Now())
	return nil
}

func noKeyHint(err error) error {
	if errors.Is(err, traffic.ErrNoAPIKey) {
		return fmt.Errorf("%w: run 'rdmon settings set api_key <key>' or use the key \"demo\"", err)
	}
	return err
}
