// Package scip ingests binary code-intelligence indexes and answers hover
// and reference queries from the projected tables.
//
// The artifact is a protobuf-shaped stream read directly against the wire
// format; there are no generated stubs. Each document lands in its own
// transaction so one damaged document cannot poison the rest of the upload.
package scip

import (
	"context"
	"database/sql"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/OPTIX/errors"
	"github.com/teranos/OPTIX/sym"
)

// Ingester projects index artifacts into the scip_* tables.
type Ingester struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewIngester creates an ingester writing through db.
func NewIngester(db *sql.DB, logger *zap.SugaredLogger) *Ingester {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Ingester{db: db, logger: logger}
}

// IngestStats summarizes one artifact's projection.
type IngestStats struct {
	Documents   int `json:"documents"`
	Occurrences int `json:"occurrences"`
	Symbols     int `json:"symbols"`
	Malformed   int `json:"malformed"`
	Dropped     int `json:"dropped"`
}

// IngestFile reads an artifact from disk and ingests it.
func (ing *Ingester) IngestFile(ctx context.Context, userID int64, repoURL, path string) (*IngestStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading index payload %s", path)
	}
	return ing.Ingest(ctx, userID, repoURL, data)
}

// Ingest streams the top level of an artifact. Malformed documents are
// skipped and counted; wire damage at the top level halts the run because
// framing cannot be recovered past it. The run fails outright only when
// nothing ingested and at least one document was malformed.
func (ing *Ingester) Ingest(ctx context.Context, userID int64, repoURL string, data []byte) (*IngestStats, error) {
	stats := &IngestStats{}

	r := NewReader(data)
	for !r.Done() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		tag, err := r.Uvarint()
		if err != nil {
			return stats, errors.Wrap(errors.ErrIndexMalformed, err.Error())
		}
		field, wt := tag>>3, tag&7
		if wt != wireBytes || (field != indexFieldDocument && field != indexFieldExternalSymbol) {
			if err := r.Skip(wt); err != nil {
				return stats, errors.Wrap(errors.ErrIndexMalformed, err.Error())
			}
			continue
		}
		raw, err := r.Bytes()
		if err != nil {
			return stats, errors.Wrap(errors.ErrIndexMalformed, err.Error())
		}

		switch field {
		case indexFieldDocument:
			doc, err := parseDocument(raw)
			if err != nil {
				stats.Malformed++
				ing.logger.Warnw(sym.IX+" Skipping malformed index document",
					"user_id", userID,
					"repo_url", repoURL,
					"error", err,
				)
				continue
			}
			if doc.RelativePath == "" {
				ing.logger.Debugw(sym.IX + " Skipping document without relative path")
				continue
			}
			if err := ing.ingestDocument(ctx, userID, repoURL, doc, stats); err != nil {
				return stats, err
			}
		case indexFieldExternalSymbol:
			info, err := parseSymbolInfo(raw)
			if err != nil {
				stats.Malformed++
				ing.logger.Warnw(sym.IX+" Skipping malformed external symbol",
					"user_id", userID,
					"repo_url", repoURL,
					"error", err,
				)
				continue
			}
			if info == nil {
				continue
			}
			if err := upsertSymbol(ctx, ing.db, userID, repoURL, info); err != nil {
				return stats, err
			}
			stats.Symbols++
		}
	}

	if stats.Documents == 0 && stats.Malformed > 0 {
		return stats, errors.Wrapf(errors.ErrIndexMalformed,
			"no documents ingested, %d malformed", stats.Malformed)
	}

	ing.logger.Infow(sym.IX+" Index ingested",
		"user_id", userID,
		"repo_url", repoURL,
		"documents", stats.Documents,
		"occurrences", stats.Occurrences,
		"symbols", stats.Symbols,
		"malformed", stats.Malformed,
		"dropped", stats.Dropped,
	)
	return stats, nil
}

// ingestDocument projects one document in its own transaction: upsert the
// document row, replace its occurrence set, upsert inline symbols. A database
// failure here aborts the whole run; it is not document malformation.
func (ing *Ingester) ingestDocument(ctx context.Context, userID int64, repoURL string, doc *Document, stats *IngestStats) error {
	tx, err := ing.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning document transaction")
	}
	defer tx.Rollback()

	var docID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO scip_documents (user_id, repo_url, relative_path, language, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, repo_url, relative_path)
		DO UPDATE SET language = excluded.language, ingested_at = excluded.ingested_at
		RETURNING id`,
		userID, repoURL, doc.RelativePath, doc.Language, time.Now().UTC()).Scan(&docID)
	if err != nil {
		return errors.Wrapf(err, "upserting document %s", doc.RelativePath)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM scip_occurrences WHERE document_id = ?`, docID); err != nil {
		return errors.Wrapf(err, "clearing occurrences for %s", doc.RelativePath)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scip_occurrences (document_id, symbol, start_line, start_char, end_line, end_char, role_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing occurrence insert")
	}
	defer stmt.Close()

	for _, occ := range doc.Occurrences {
		if _, err := stmt.ExecContext(ctx, docID,
			occ.Symbol, occ.StartLine, occ.StartChar, occ.EndLine, occ.EndChar, occ.RoleFlags); err != nil {
			return errors.Wrapf(err, "inserting occurrence of %s", occ.Symbol)
		}
	}

	for i := range doc.Symbols {
		if err := upsertSymbol(ctx, tx, userID, repoURL, &doc.Symbols[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "committing document %s", doc.RelativePath)
	}

	stats.Documents++
	stats.Occurrences += len(doc.Occurrences)
	stats.Symbols += len(doc.Symbols)
	stats.Dropped += doc.Dropped
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertSymbol writes symbol metadata, overwriting display name and
// documentation only when the incoming values are non-empty.
func upsertSymbol(ctx context.Context, db execer, userID int64, repoURL string, info *SymbolInfo) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO scip_symbols (user_id, repo_url, symbol, display_name, documentation)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, repo_url, symbol) DO UPDATE SET
			display_name  = CASE WHEN excluded.display_name  != '' THEN excluded.display_name  ELSE display_name  END,
			documentation = CASE WHEN excluded.documentation != '' THEN excluded.documentation ELSE documentation END`,
		userID, repoURL, info.Symbol, info.DisplayName, info.Documentation)
	return errors.Wrapf(err, "upserting symbol %s", info.Symbol)
}
