// Command counsel is the operator-facing CLI for the deliberation
// orchestrator: configuration validation, keyring-backed secret
// management, a scheduled decision-graph health check, and
// deliberate/query/analyze subcommands that call the tool surface
// (pkg/surface) directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string
var projectRoot string

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "Operate a go-counsel deliberation orchestrator",
	Long:  `counsel runs deliberations and decision-graph queries, and manages configuration and decision-graph maintenance for a go-counsel deployment.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to counsel.yaml (default: search projectRoot and .)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "project-root", ".", "directory relative paths in the config are anchored to")
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(maintainCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
