// Package cli provides the command-line interface for autodd.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// configDir holds config.yaml, .env, and the files it references.
var configDir string

var rootCmd = &cobra.Command{
	Use:   "autodd",
	Short: "Rank stock tickers by forum mentions",
	Long: "autodd retrieves posts from stock forums over two adjacent time windows, " +
		"counts ticker mentions in each, and ranks tickers by how fast their mentions grow.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("autodd %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", ".autodd", "config directory")
	rootCmd.AddCommand(versionCmd, initCmd, doctorCmd, pullCmd, runCmd)
}

// Execute runs the root command. Canceling ctx stops a watching run.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
