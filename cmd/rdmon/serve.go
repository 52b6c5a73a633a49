package main

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and refresh periodically",
	Long: `Start the rdmon HTTP server.

The server will:
  - Load configuration from rdmon.yaml (or --config), or from RDMON_* variables
  - Open the settings database
  - Refresh the traffic view on startup and then periodically
  - Serve the latest view, details and settings over HTTP
  - Reload the config file when it changes or on SIGHUP

Environment variables:
  RDMON_API_KEY          - API key, overrides the stored one
  RDMON_DEMO_MODE        - Force demo mode
  RDMON_DATABASE_DSN     - Database path (default: rdmon.db, "memory" for none)
  RDMON_SERVER_PORT      - Server port (default: 8420)
  RDMON_LOG_LEVEL        - Log level: debug, info, warn, error

Examples:
  rdmon serve
  rdmon serve --config /etc/rdmon/rdmon.yaml
  RDMON_API_KEY=demo rdmon serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}
