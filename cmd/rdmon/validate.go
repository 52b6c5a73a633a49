package main

import (
	"fmt"

	"github.com/rdmonitor/rdmon/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration the way 'rdmon serve' would and print a
summary. Without a config file only RDMON_* variables are used.

Examples:
  rdmon validate
  rdmon validate --config /etc/rdmon/rdmon.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	source := cfgFile
	if source == "" {
		source = config.DefaultPath + " or environment"
	}
	fmt.Fprintf(out, "Validating %s...\n\n", source)

	load := config.LoadWithFallback
	if cfgFile != "" {
		load = config.Load
	}
	cfg, err := load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s API: %s (timeout %s)\n", checkMark, cfg.API.BaseURL, cfg.API.Timeout)
	fmt.Fprintf(out, "  %s Refresh: live every %s, demo every %s\n", checkMark, cfg.Refresh.LiveInterval, cfg.Refresh.DemoInterval)
	fmt.Fprintf(out, "  %s Server: %s\n", checkMark, cfg.Server.Addr())
	fmt.Fprintf(out, "  %s Database: %s\n", checkMark, cfg.Database.DSN)
	if cfg.Secret == "" {
		fmt.Fprintf(out, "  %s No secret: the API key is stored unsealed\n", warnMark)
	}
	return nil
}
