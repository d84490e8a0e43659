package commands

import (
	"database/sql"

	"github.com/spf13/cobra"
	"github.com/teranos/OPTIX/config"
	"github.com/teranos/OPTIX/db"
	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/logger"
)

// openDatabase opens and migrates a database at the specified path.
// If dbPath is empty, it resolves the path from config. Uses
// logger.Logger for db operations.
func openDatabase(dbPath string) (*sql.DB, error) {
	if dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		dbPath = cfg.DatabasePath()
	}

	database, err := db.Open(dbPath, logger.Logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database at %s", dbPath)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to run migrations on %s", dbPath)
	}

	return database, nil
}

// cliUserID reads the persistent --user flag. CLI commands act as user 0,
// the local operator, unless told otherwise.
func cliUserID(cmd *cobra.Command) int64 {
	userID, _ := cmd.Flags().GetInt64("user")
	return userID
}
