package scip

import (
	"context"
	"database/sql"

	"github.com/teranos/OPTIX/errors"
)

// Store answers position and symbol queries from the projected index.
type Store struct {
	db *sql.DB
}

// NewStore creates a read-side store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// HoverResult is the innermost occurrence at a position, joined with
// whatever symbol metadata the index carried.
type HoverResult struct {
	Symbol        string `json:"symbol"`
	DisplayName   string `json:"displayName,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	StartLine     int    `json:"startLine"`
	StartChar     int    `json:"startChar"`
	EndLine       int    `json:"endLine"`
	EndChar       int    `json:"endChar"`
	RoleFlags     int    `json:"roleFlags"`
}

// Reference locates one occurrence of a symbol.
type Reference struct {
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	StartChar int    `json:"startChar"`
	EndLine   int    `json:"endLine"`
	EndChar   int    `json:"endChar"`
	Symbol    string `json:"symbol"`
	RoleFlags int    `json:"roleFlags"`
}

// HoverAt returns the innermost occurrence covering (line, character) in the
// given file. Coverage is lexicographic on (line, char): character bounds
// apply only on the boundary lines of a multi-line range. Returns a
// not-found error when nothing covers the position.
func (s *Store) HoverAt(ctx context.Context, userID int64, repoURL, filePath string, line, character int) (*HoverResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT o.symbol, o.start_line, o.start_char, o.end_line, o.end_char, o.role_flags,
		       COALESCE(sy.display_name, ''), COALESCE(sy.documentation, '')
		FROM scip_occurrences o
		JOIN scip_documents d ON d.id = o.document_id
		LEFT JOIN scip_symbols sy
		       ON sy.user_id = d.user_id AND sy.repo_url = d.repo_url AND sy.symbol = o.symbol
		WHERE d.user_id = ? AND d.repo_url = ? AND d.relative_path = ?
		  AND (o.start_line < ? OR (o.start_line = ? AND o.start_char <= ?))
		  AND (o.end_line > ? OR (o.end_line = ? AND o.end_char >= ?))
		ORDER BY (o.end_line - o.start_line) ASC, (o.end_char - o.start_char) ASC
		LIMIT 1`,
		userID, repoURL, filePath,
		line, line, character,
		line, line, character)

	var h HoverResult
	err := row.Scan(&h.Symbol, &h.StartLine, &h.StartChar, &h.EndLine, &h.EndChar, &h.RoleFlags,
		&h.DisplayName, &h.Documentation)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("no symbol at %s:%d:%d", filePath, line, character)
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying hover")
	}
	return &h, nil
}

// References returns every occurrence of a symbol across the user's indexed
// documents, ordered by file then line.
func (s *Store) References(ctx context.Context, userID int64, repoURL, symbol string) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.relative_path, o.start_line, o.start_char, o.end_line, o.end_char, o.symbol, o.role_flags
		FROM scip_occurrences o
		JOIN scip_documents d ON d.id = o.document_id
		WHERE d.user_id = ? AND d.repo_url = ? AND o.symbol = ?
		ORDER BY d.relative_path, o.start_line`,
		userID, repoURL, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "querying references")
	}
	defer rows.Close()

	refs := []Reference{}
	for rows.Next() {
		var r Reference
		if err := rows.Scan(&r.FilePath, &r.StartLine, &r.StartChar, &r.EndLine, &r.EndChar, &r.Symbol, &r.RoleFlags); err != nil {
			return nil, errors.Wrap(err, "scanning reference")
		}
		refs = append(refs, r)
	}
	return refs, errors.Wrap(rows.Err(), "iterating references")
}
