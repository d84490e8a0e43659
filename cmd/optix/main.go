package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/cmd/optix/commands"
	"github.com/teranos/OPTIX/logger"
)

var rootCmd = &cobra.Command{
	Use:   "optix",
	Short: "OPTIX - Code intelligence backend",
	Long: `OPTIX - Code intelligence over git repositories.

OPTIX mines dependency graphs, churn history, and SCIP symbol indexes
from git repositories through an async job pipeline, and serves the
results over HTTP and WebSocket.

Available commands:
  serve    - Start the OPTIX server (worker pool + HTTP API)
  jobs     - Inspect the async job pipeline
  graph    - Enqueue dependency graph builds
  mine     - Enqueue git history mining
  scip     - Ingest SCIP symbol indexes
  hotspots - Show churn hotspots for a mined repository
  db       - Manage the OPTIX database
  config   - Manage OPTIX configuration

Examples:
  optix serve                       # Start server with workers
  optix graph build https://github.com/acme/gadget
  optix mine https://github.com/acme/gadget --days 30
  optix jobs list                   # List async jobs
  optix hotspots https://github.com/acme/gadget`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize global logger before any command runs.
		// Skip for commands whose stdout is machine-readable (like 'config show').
		if cmd.Name() != "show" {
			verbosity, _ := cmd.Flags().GetCount("verbose")
			jsonLogs, _ := cmd.Flags().GetBool("json-logs")
			if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
		}
		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit JSON log lines instead of console output")
	rootCmd.PersistentFlags().Int64("user", 0, "Act as this user id (default 0, the local operator)")

	// Add commands
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.GraphCmd)
	rootCmd.AddCommand(commands.HotspotsCmd)
	rootCmd.AddCommand(commands.JobsCmd)
	rootCmd.AddCommand(commands.MineCmd)
	rootCmd.AddCommand(commands.ScipCmd)
	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
