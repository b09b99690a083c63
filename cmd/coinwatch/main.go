// Package main is the entry point for the coinwatch CLI.
//
// Coinwatch can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	coinwatch serve -c config.yaml    # Start the dashboard
//	coinwatch validate -c config.yaml # Validate configuration
//	coinwatch prices --currency eur   # Print the top coins by market cap
//	coinwatch version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "coinwatch",
	Short: "A self-hosted crypto watch-list dashboard",
	Long: `Coinwatch is a self-hosted cryptocurrency watch-list dashboard.

It polls CoinGecko for the coins on your watch list, keeps the last good
prices on screen when the API rate limits you, and pushes updates to the
browser over Server-Sent Events.

Quick start:
  1. Create a config file (coinwatch.yaml)
  2. Run: coinwatch serve -c coinwatch.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 60s
  currencies: [usd, eur]
  coins: [btc, eth, sol]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this coinwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "coinwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
