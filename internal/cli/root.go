// Package cli implements the eve-hubcompare command line.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is overridden at build time with -ldflags "-X eve-hubcompare/internal/cli.Version=...".
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "eve-hubcompare",
	Short: "Compare order books across the EVE Online trade hubs",
	Long: `eve-hubcompare keeps a cached snapshot of buy and sell order books for a
fixed set of commodities in each empire trade hub, and simulates hub-to-hub
trades and no-undock margins against it.

Settings come from an optional YAML file (--config) and HUBCOMPARE_*
environment variables, e.g. HUBCOMPARE_CACHE_DIR or HUBCOMPARE_SERVER_ADDR.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}
