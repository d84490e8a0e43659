package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coreTables is every table the migrations must produce.
var coreTables = []string{
	"schema_migrations",
	"async_jobs",
	"file_dependencies",
	"commit_summaries",
	"file_churn_stats",
	"scip_documents",
	"scip_occurrences",
	"scip_symbols",
	"user_repositories",
}

func TestOpenWithMigrations(t *testing.T) {
	t.Run("successfully opens database and runs migrations", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		require.NotNil(t, db)
		defer db.Close()

		for _, table := range coreTables {
			var exists int
			err = db.QueryRow(
				"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
			).Scan(&exists)
			require.NoError(t, err)
			assert.Equal(t, 1, exists, "table %s should exist after migrations", table)
		}
	})

	t.Run("returns error for unusable path", func(t *testing.T) {
		db, err := OpenWithMigrations("/invalid/nonexistent/path/db.sqlite", nil)
		if err == nil && db != nil {
			err = db.Ping()
			db.Close()
			db = nil
		}
		require.Error(t, err)
		assert.Nil(t, db)
	})
}

func TestMigrate(t *testing.T) {
	t.Run("records applied versions", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		err = Migrate(db, nil)
		require.NoError(t, err)

		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, count, 6, "every migration file should be recorded")

		// 000 records itself too
		var bootstrap int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = '000'").Scan(&bootstrap)
		require.NoError(t, err)
		assert.Equal(t, 1, bootstrap)
	})

	t.Run("is idempotent", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := Open(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		// Run migrations twice
		err = Migrate(db, nil)
		require.NoError(t, err)

		err = Migrate(db, nil)
		require.NoError(t, err, "running migrations multiple times should be safe")

		// Second run must not duplicate version rows
		var count int
		err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations GROUP BY version HAVING COUNT(*) > 1").Scan(&count)
		assert.Error(t, err, "no version should appear twice")
	})

	t.Run("status constraint rejects unknown job status", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		_, err = db.Exec(`
			INSERT INTO async_jobs (user_id, repo_url, status, job_type)
			VALUES (1, 'https://example.com/r.git', 'sleeping', 'git_mine')`)
		require.Error(t, err, "CHECK constraint should reject invalid status")

		_, err = db.Exec(`
			INSERT INTO async_jobs (user_id, repo_url, status, job_type)
			VALUES (1, 'https://example.com/r.git', 'pending', 'git_mine')`)
		require.NoError(t, err)
	})

	t.Run("occurrences cascade on document delete", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "test.db")

		db, err := OpenWithMigrations(dbPath, nil)
		require.NoError(t, err)
		defer db.Close()

		res, err := db.Exec(`
			INSERT INTO scip_documents (user_id, repo_url, relative_path, language)
			VALUES (1, 'https://example.com/r.git', 'src/main.go', 'go')`)
		require.NoError(t, err)
		docID, err := res.LastInsertId()
		require.NoError(t, err)

		_, err = db.Exec(`
			INSERT INTO scip_occurrences (document_id, symbol, start_line, start_char, end_line, end_char, role_flags)
			VALUES (?, 'sym a', 1, 0, 1, 5, 1)`, docID)
		require.NoError(t, err)

		_, err = db.Exec("DELETE FROM scip_documents WHERE id = ?", docID)
		require.NoError(t, err)

		var orphans int
		err = db.QueryRow("SELECT COUNT(*) FROM scip_occurrences WHERE document_id = ?", docID).Scan(&orphans)
		require.NoError(t, err)
		assert.Equal(t, 0, orphans, "occurrences should cascade with their document")
	})
}
