package main

import (
	"errors"

	apihttp "github.com/rdmonitor/rdmon/adapters/http"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the API key is accepted",
	Long: `Fetch the account profile to verify the configured API key.

Exits non-zero when the key is rejected or the API is unreachable.`,
	Args: cobra.NoArgs,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
}

func runPing(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Shutdown()

	status, err := a.Connection.Test(cmd.Context(), a.Settings.RefreshConfig())
	if err != nil {
		return noKeyHint(err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := printJSON(out, apihttp.NewConnectionResponse(status)); err != nil {
			return err
		}
	} else {
		renderConnection(out, status)
	}
	if !status.Connected {
		return errors.New("connection test failed")
	}
	return nil
}
