package main

import (
	"fmt"
	"strings"

	"github.com/jpalmerr/coinwatch/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a coinwatch configuration file without starting the server.

This command parses the YAML, expands environment variables, applies
COINWATCH_* overrides and validates all fields. It's useful for CI/CD
pipelines or pre-deployment checks. No connection to the preference store
is attempted.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  coinwatch validate -c coinwatch.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.ApplyOverrides(cfg, config.NewViper()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	coins := "(none)"
	if len(cfg.Coins) > 0 {
		coins = strings.Join(cfg.Coins, ", ")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Currencies:    %s\n", strings.Join(cfg.Currencies, ", "))
	fmt.Fprintf(out, "  Coins:         %s\n", coins)
	fmt.Fprintf(out, "  Persistence:   %s (user %s)\n", driverName(cfg.Persistence.Driver), cfg.Persistence.UserID)

	return nil
}
