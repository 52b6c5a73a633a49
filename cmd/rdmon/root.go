package main

import (
	"fmt"
	"os"

	"github.com/rdmonitor/rdmon/bootstrap"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile    string
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rdmon",
	Short: "Real-Debrid traffic monitor",
	Long: `rdmon reports the bandwidth used by a Real-Debrid account.

It summarizes today, this month, the last 7 and the last 31 days, and
lists the usage of every limited hoster. Set the API key with
'rdmon settings set api_key <key>', or use the key "demo" to explore
with generated data.

Quick start:
  rdmon ping        # Check the API key
  rdmon traffic     # Show the traffic summary
  rdmon details     # Per-day breakdown of the last 31 days
  rdmon serve       # Serve the HTTP API and refresh periodically`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default rdmon.yaml if present)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")
}

// newApp wires the application for one command.
func newApp() (*bootstrap.App, error) {
	a, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return a, nil
}
