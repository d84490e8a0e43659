package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/sym"
)

// JobsCmd represents the jobs command - async pipeline inspection
var JobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: sym.Pulse + " Inspect the async job pipeline",
	Long: sym.Pulse + ` Jobs - async pipeline inspection.

Graph builds, history mining, and index ingestion all run as async
jobs. These commands read the shared queue, so they see jobs enqueued
by the HTTP API and by other CLI invocations alike.

Job management commands:
  optix jobs list             # List jobs
  optix jobs show <id>        # Show job details
  optix jobs status           # Show queue depth and worker capacity

Status filters:
  pending     - Jobs waiting to be claimed
  processing  - Jobs currently leased to a worker
  done        - Successfully completed jobs
  failed      - Jobs that failed with errors`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// JobsListCmd lists async jobs
var JobsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List async jobs",
	Long: `List async jobs for the acting user, optionally filtered by status.

Examples:
  optix jobs list                      # List recent jobs
  optix jobs list --status processing  # List only running jobs
  optix jobs list --limit 50           # Show up to 50 jobs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFilter, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		return runJobsList(cliUserID(cmd), statusFilter, limit)
	},
}

// JobsShowCmd shows the details of one async job
var JobsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show details of an async job",
	Long: `Display detailed information for an async job:
- Job ID, kind, repository, and status
- Payload carried to the worker
- Error detail for failed jobs
- Timestamps (created, started, finished) and run duration

Example:
  optix jobs show 42`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jobID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.InvalidInputf("invalid job ID %q", args[0])
		}
		return runJobsShow(cliUserID(cmd), jobID)
	},
}

// JobsStatusCmd summarizes queue depth and worker capacity
var JobsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue depth and worker capacity",
	Long: `Summarize the async pipeline: jobs by status, configured worker
count, and memory headroom for concurrent clone/diff work.

Queued and running counts come from the shared database, so they cover
jobs being executed by a running 'optix serve' as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobsStatus()
	},
}

func init() {
	JobsListCmd.Flags().String("status", "", "Filter by status (pending, processing, done, failed)")
	JobsListCmd.Flags().Int("limit", 20, "Maximum number of jobs to display")

	JobsCmd.AddCommand(JobsListCmd)
	JobsCmd.AddCommand(JobsShowCmd)
	JobsCmd.AddCommand(JobsStatusCmd)
}

// runJobsList lists async jobs for one user
func runJobsList(userID int64, statusFilter string, limit int) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	queue := async.NewQueue(database)

	// Convert status filter to pointer (empty string = nil = all jobs)
	var status *async.JobStatus
	if statusFilter != "" {
		if !async.IsValidStatus(statusFilter) {
			return errors.InvalidInputf("unknown status %q (valid: pending, processing, done, failed)", statusFilter)
		}
		s := async.JobStatus(statusFilter)
		status = &s
	}

	jobs, err := queue.ListJobs(context.Background(), userID, status, limit)
	if err != nil {
		return errors.Wrap(err, "failed to list jobs")
	}

	if len(jobs) == 0 {
		fmt.Printf("%s No jobs found\n", sym.Pulse)
		return nil
	}

	// Print table header
	fmt.Printf("%-8s %-12s %-12s %-40s %s\n", "JOB ID", "STATUS", "KIND", "REPOSITORY", "CREATED")
	fmt.Printf("%-8s %-12s %-12s %-40s %s\n", "------", "------", "----", "----------", "-------")

	// Print jobs
	for _, job := range jobs {
		fmt.Printf("%-8d %-12s %-12s %-40s %s\n",
			job.ID,
			job.Status,
			job.Kind,
			truncate(job.RepoURL, 40),
			job.CreatedAt.Format("2006-01-02 15:04"))
	}

	fmt.Printf("\nTotal: %d job(s)\n", len(jobs))
	return nil
}

// runJobsShow displays detailed information for a job
func runJobsShow(userID int64, jobID int64) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	queue := async.NewQueue(database)
	job, err := queue.GetJob(context.Background(), userID, jobID)
	if err != nil {
		return errors.Wrap(err, "failed to get job")
	}

	// Print job details
	fmt.Printf("%s Job ID: %d\n", sym.Pulse, job.ID)
	fmt.Printf("  Kind: %s\n", job.Kind)
	fmt.Printf("  Repository: %s\n", job.RepoURL)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("\n")

	if len(job.Payload) > 0 {
		fmt.Printf("Payload: %s\n", string(job.Payload))
	}
	if job.PayloadPath != "" {
		fmt.Printf("Payload file: %s\n", job.PayloadPath)
	}
	if job.Error != "" {
		fmt.Printf("Error: %s\n", job.Error)
	}
	if len(job.Payload) > 0 || job.PayloadPath != "" || job.Error != "" {
		fmt.Printf("\n")
	}

	// Timestamps
	fmt.Printf("Created: %s\n", job.CreatedAt.Format("2006-01-02 15:04:05"))

	if job.StartedAt != nil {
		fmt.Printf("Started: %s\n", job.StartedAt.Format("2006-01-02 15:04:05"))
	}

	if job.FinishedAt != nil {
		fmt.Printf("Finished: %s\n", job.FinishedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("Duration: %s\n", job.Duration())
	}

	return nil
}

// runJobsStatus summarizes the pipeline across all users
func runJobsStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	queue := async.NewQueue(database)
	counts, err := queue.Counts(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to count jobs")
	}

	// An unstarted pool still knows its configured capacity and can
	// read memory headroom; active workers live in the serve process,
	// visible via /api/pulse/status.
	poolCfg := async.Config{
		Workers:      cfg.Pulse.Workers,
		PollInterval: cfg.PulsePollInterval(),
		StaleAfter:   cfg.PulseStaleAfter(),
	}
	pool := async.NewWorkerPool(database, poolCfg, async.NewDispatcher(), logger.Logger)
	metrics := pool.GetSystemMetrics(context.Background())

	fmt.Printf("%s Pipeline Status\n", sym.Pulse)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Jobs by status:\n")
	fmt.Printf("  Pending:    %d\n", counts[async.JobStatusPending])
	fmt.Printf("  Processing: %d\n", counts[async.JobStatusProcessing])
	fmt.Printf("  Done:       %d\n", counts[async.JobStatusDone])
	fmt.Printf("  Failed:     %d\n", counts[async.JobStatusFailed])
	fmt.Println()
	fmt.Printf("Workers configured: %d\n", metrics.WorkersTotal)
	if metrics.MemoryTotalGB > 0 {
		fmt.Printf("Memory: %.1f/%.1fGB used (%.0f%%)\n",
			metrics.MemoryUsedGB, metrics.MemoryTotalGB, metrics.MemoryPercent)
	}

	return nil
}

// truncate truncates a string to maxLen characters
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
