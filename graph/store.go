package graph

import (
	"context"
	"database/sql"

	"github.com/teranos/OPTIX/errors"
)

// EdgeKindImport is the only edge kind the extractor emits today.
const EdgeKindImport = "import"

// Edge is one resolved import relation between two repository files.
// Paths are forward-slash, relative to the repo root.
type Edge struct {
	Source string
	Target string
	Kind   string
}

// Store persists dependency edges scoped by (user, repository).
type Store struct {
	db *sql.DB
}

// NewStore creates a graph store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceAll swaps the edge set for (userID, repoURL) in one
// transaction. Readers never observe a partially built graph.
func (s *Store) ReplaceAll(ctx context.Context, userID int64, repoURL string, edges []Edge) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning graph replace")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM file_dependencies WHERE user_id = ? AND repo_url = ?`,
		userID, repoURL,
	); err != nil {
		return errors.Wrap(err, "clearing previous edges")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_dependencies (user_id, repo_url, source_file, target_file, kind)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing edge insert")
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, userID, repoURL, e.Source, e.Target, e.Kind); err != nil {
			return errors.Wrapf(err, "inserting edge %s -> %s", e.Source, e.Target)
		}
	}

	return errors.Wrap(tx.Commit(), "committing graph replace")
}

// Edges returns the stored edge set in insertion order.
func (s *Store) Edges(ctx context.Context, userID int64, repoURL string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_file, target_file, kind
		FROM file_dependencies
		WHERE user_id = ? AND repo_url = ?
		ORDER BY id`,
		userID, repoURL)
	if err != nil {
		return nil, errors.Wrap(err, "querying edges")
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind); err != nil {
			return nil, errors.Wrap(err, "scanning edge")
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
