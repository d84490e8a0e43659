package commands

import (
	"context"
	"encoding/json"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/sym"
)

// MineCmd enqueues git history mining for a repository
var MineCmd = &cobra.Command{
	Use:   "mine <repo-url>",
	Short: sym.Hist + " Enqueue git history mining for a repository",
	Long: sym.Hist + ` Mine - git history churn extraction.

Mining walks the commit history inside the requested window, counts
real line churn per file (whitespace-only changes are discounted), and
aggregates it into weekly buckets. Hotspot and trend queries read the
aggregates.

Examples:
  optix mine https://github.com/acme/gadget              # default window
  optix mine https://github.com/acme/gadget --days 30    # last 30 days`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return runMine(cliUserID(cmd), args[0], days)
	},
}

func init() {
	MineCmd.Flags().Int("days", 0, "History window in days (0 = server default)")
}

func runMine(userID int64, repoURL string, days int) error {
	if days < 0 {
		return errors.InvalidInputf("days must be positive")
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	ctx := context.Background()
	queue := async.NewQueue(database)

	job, err := async.NewJob(userID, repoURL, async.KindGitMine)
	if err != nil {
		return err
	}
	if days > 0 {
		payload, err := json.Marshal(map[string]int{"days": days})
		if err != nil {
			return errors.Wrap(err, "failed to encode payload")
		}
		job = job.WithPayload(payload)
	}

	if err := queue.Enqueue(ctx, job); err != nil {
		return errors.Wrap(err, "failed to enqueue job")
	}

	pterm.Success.Printf("History mining queued: job %d\n", job.ID)
	pterm.Info.Printf("Monitor with: optix jobs show %d\n", job.ID)
	return nil
}
