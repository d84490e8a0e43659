// Package repohist tracks each user's recently used repositories. The HTTP
// surface touches an entry on every enqueue, so the list doubles as a
// "recent imports" picker. Entries are bounded per user and evicted LRU.
package repohist

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/sym"
)

// MaxEntries bounds how many repositories are remembered per user.
const MaxEntries = 50

// Entry is one remembered repository.
type Entry struct {
	ID             int64     `json:"id"`
	RepoURL        string    `json:"repoUrl"`
	AccessCount    int       `json:"accessCount"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Store persists the per-user repository history.
type Store struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewStore creates a repository history store over db.
func NewStore(db *sql.DB, logger *zap.SugaredLogger) *Store {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{db: db, logger: logger}
}

// Touch records an access to repoURL: new entries are inserted, known ones
// bump their access count and timestamp. Entries beyond the per-user cap are
// evicted oldest-first in the same transaction.
func (s *Store) Touch(ctx context.Context, userID int64, repoURL string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning history touch")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_repositories (user_id, repo_url, access_count, last_accessed_at, created_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(user_id, repo_url) DO UPDATE SET
			access_count = access_count + 1,
			last_accessed_at = excluded.last_accessed_at`,
		userID, repoURL, now, now)
	if err != nil {
		return errors.Wrapf(err, "touching repository %s", repoURL)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM user_repositories
		WHERE user_id = ?
		  AND id NOT IN (
			SELECT id FROM user_repositories
			WHERE user_id = ?
			ORDER BY last_accessed_at DESC, id DESC
			LIMIT ?)`,
		userID, userID, MaxEntries)
	if err != nil {
		return errors.Wrap(err, "evicting repository history")
	}
	if evicted, _ := res.RowsAffected(); evicted > 0 {
		s.logger.Debugw(sym.Repo+" Evicted repository history entries",
			"user_id", userID,
			"evicted", evicted,
		)
	}

	return errors.Wrap(tx.Commit(), "committing history touch")
}

// List returns the user's entries, most recently accessed first. A limit of
// zero or beyond the cap falls back to the cap.
func (s *Store) List(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > MaxEntries {
		limit = MaxEntries
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repo_url, access_count, last_accessed_at, created_at
		FROM user_repositories
		WHERE user_id = ?
		ORDER BY last_accessed_at DESC, id DESC
		LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying repository history")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.RepoURL, &e.AccessCount, &e.LastAccessedAt, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning repository history entry")
		}
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "iterating repository history")
}

// Remove deletes one entry by id. Entries owned by other users report
// not-found rather than leaking their existence.
func (s *Store) Remove(ctx context.Context, userID, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_repositories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return errors.Wrapf(err, "removing repository history entry %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("repository history entry %d", id)
	}
	return nil
}

// Clear drops every entry for the user.
func (s *Store) Clear(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_repositories WHERE user_id = ?`, userID)
	return errors.Wrap(err, "clearing repository history")
}
