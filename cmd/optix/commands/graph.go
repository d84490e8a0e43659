package commands

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/sym"
)

// GraphCmd represents the graph command - dependency graph operations
var GraphCmd = &cobra.Command{
	Use:   "graph",
	Short: sym.Graph + " Manage dependency graph builds",
	Long: sym.Graph + ` Graph - import dependency extraction.

A graph build clones (or refreshes) the repository, scans source files
for import statements, and stores the resolved file-to-file edges.
Builds run as async jobs; a running 'optix serve' executes them.

Examples:
  optix graph build https://github.com/acme/gadget
  optix jobs list       # watch the build progress`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// GraphBuildCmd enqueues a dependency graph build
var GraphBuildCmd = &cobra.Command{
	Use:   "build <repo-url>",
	Short: "Enqueue a dependency graph build for a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGraphBuild(cliUserID(cmd), args[0])
	},
}

func init() {
	GraphCmd.AddCommand(GraphBuildCmd)
}

func runGraphBuild(userID int64, repoURL string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	ctx := context.Background()
	queue := async.NewQueue(database)

	job, err := async.NewJob(userID, repoURL, async.KindGraphBuild)
	if err != nil {
		return err
	}

	// One build per repository per user at a time
	active, err := queue.HasActive(ctx, userID, repoURL, async.KindGraphBuild)
	if err != nil {
		return errors.Wrap(err, "failed to check for active jobs")
	}
	if active {
		pterm.Warning.Printf("A build for %s is already queued or running\n", repoURL)
		return nil
	}

	if err := queue.Enqueue(ctx, job); err != nil {
		return errors.Wrap(err, "failed to enqueue job")
	}

	pterm.Success.Printf("Graph build queued: job %d\n", job.ID)
	pterm.Info.Printf("Monitor with: optix jobs show %d\n", job.ID)
	return nil
}
