package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage OPTIX database",
	Long: sym.DB + ` db - Manage OPTIX database operations

Run migrations and inspect what the pipeline has stored.

Examples:
  optix db migrate                # Apply pending migrations
  optix db status                 # Show schema version and table counts`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long:  "Open the configured database and apply any migrations it is missing. Safe to run repeatedly.",
	RunE:  runDbMigrate,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show schema version and table counts",
	Long:  "Display applied migrations and row counts for each subsystem's tables.",
	RunE:  runDbStatus,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbStatusCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase migrates as part of opening
	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	var applied int
	if err := database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		return errors.Wrap(err, "failed to read schema version")
	}

	fmt.Printf("%s Database migrated (%d migration(s) applied)\n", sym.DB, applied)
	return nil
}

func runDbStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}

	database, err := openDatabase("")
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	fmt.Printf("%s Database Status\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n\n", cfg.DatabasePath())

	// Applied migrations
	rows, err := database.Query("SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return errors.Wrap(err, "failed to query migrations")
	}
	defer rows.Close()

	fmt.Printf("Applied Migrations:\n")
	var migrationCount int
	for rows.Next() {
		var version, appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return errors.Wrap(err, "failed to scan migration row")
		}
		migrationCount++
		fmt.Printf("  %s  applied %s\n", version, appliedAt)
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, "failed to read migration rows")
	}
	if migrationCount == 0 {
		fmt.Println("  (none)")
	}
	fmt.Println()

	// Row counts per subsystem
	fmt.Printf("Stored Data:\n")
	counts := []struct {
		label string
		table string
	}{
		{sym.Pulse + " Async jobs", "async_jobs"},
		{sym.Graph + " Dependency edges", "file_dependencies"},
		{sym.Hist + " Commit summaries", "commit_summaries"},
		{sym.Hist + " Weekly churn rows", "file_churn_stats"},
		{sym.IX + " Index documents", "scip_documents"},
		{sym.IX + " Index occurrences", "scip_occurrences"},
		{sym.IX + " Index symbols", "scip_symbols"},
		{sym.Repo + " Tracked repositories", "user_repositories"},
	}
	for _, c := range counts {
		var n int
		err := database.QueryRow("SELECT COUNT(*) FROM " + c.table).Scan(&n)
		if err != nil && err != sql.ErrNoRows {
			return errors.Wrapf(err, "failed to count %s", c.table)
		}
		fmt.Printf("  %-24s %d\n", c.label+":", n)
	}

	return nil
}
