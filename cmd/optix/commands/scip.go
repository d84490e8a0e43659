package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/logger"
	"github.com/teranos/OPTIX/pulse/async"
	"github.com/teranos/OPTIX/scip"
	"github.com/teranos/OPTIX/sym"
)

// ScipCmd represents the scip command - symbol index ingestion
var ScipCmd = &cobra.Command{
	Use:   "scip",
	Short: sym.IX + " Manage SCIP symbol index ingestion",
	Long: sym.IX + ` SCIP - symbol index ingestion.

A SCIP index carries the symbol occurrences and documentation an
indexer extracted from a repository. Ingestion parses the binary
artifact and stores hover and reference rows for query.

The source may be a local file or a remote URL (http(s), S3, GCS);
remote artifacts are fetched into the payload spool first.

Examples:
  optix scip ingest https://github.com/acme/gadget ./index.scip
  optix scip ingest https://github.com/acme/gadget https://ci.acme.dev/gadget/index.scip`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ScipIngestCmd spools an index artifact and enqueues its ingestion
var ScipIngestCmd = &cobra.Command{
	Use:   "ingest <repo-url> <source>",
	Short: "Ingest a SCIP index artifact for a repository",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScipIngest(cliUserID(cmd), args[0], args[1])
	},
}

func init() {
	ScipCmd.AddCommand(ScipIngestCmd)
}

func runScipIngest(userID int64, repoURL, source string) error {
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	ctx := context.Background()

	resolved, cleanup, err := scip.ResolveIndexSource(ctx, source, os.TempDir(), logger.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// The worker removes its payload file after a successful run, so it
	// gets a spooled copy, never the caller's own file.
	spoolPath := filepath.Join(os.TempDir(), "scip-"+uuid.NewString()+".bin")
	size, err := spoolCopy(resolved, spoolPath)
	if err != nil {
		return errors.Wrapf(err, "failed to spool index artifact %s", resolved)
	}

	job, err := async.NewJob(userID, repoURL, async.KindScipIndex)
	if err != nil {
		os.Remove(spoolPath)
		return err
	}
	job = job.WithPayloadPath(spoolPath)

	queue := async.NewQueue(database)
	if err := queue.Enqueue(ctx, job); err != nil {
		os.Remove(spoolPath)
		return errors.Wrap(err, "failed to enqueue job")
	}

	pterm.Success.Printf("Index ingestion queued: job %d (%d bytes spooled)\n", job.ID, size)
	pterm.Info.Printf("Monitor with: optix jobs show %d\n", job.ID)
	return nil
}

// spoolCopy copies src into the payload spool at dst and reports the
// byte count.
func spoolCopy(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	size, err := io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst)
		return 0, err
	}
	return size, nil
}
