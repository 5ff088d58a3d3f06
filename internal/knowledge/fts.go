// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package knowledge

import (
	"context"
	"database/sql"
	"strings"
	"unicode"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// FTSBackend scores documents with SQLite FTS5 BM25 ranking over an
// in-memory database. The driver must be built with the sqlite_fts5 tag.
type FTSBackend struct {
	db *sql.DB
}

// NewFTSBackend opens an in-memory FTS5 table.
func NewFTSBackend() (*FTSBackend, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, eris.Wrap(err, "opening database")
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE VIRTUAL TABLE docs USING fts5(content)`); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "creating FTS table")
	}
	return &FTSBackend{db: db}, nil
}

// Add inserts docs with their key as rowid.
func (b *FTSBackend) Add(ctx context.Context, docs []Doc) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO docs (rowid, content) VALUES (?, ?)`)
	if err != nil {
		return eris.Wrap(err, "preparing insert")
	}
	defer stmt.Close()

	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.Key, d.Text); err != nil {
			return eris.Wrapf(err, "inserting doc %d", d.Key)
		}
	}
	return tx.Commit()
}

// Score matches any query term and returns -bm25 per matched key, so higher
// is better. A query without terms matches nothing.
func (b *FTSBackend) Score(ctx context.Context, query string) (map[int]float64, error) {
	scores := map[int]float64{}
	match := matchExpr(query)
	if match == "" {
		return scores, nil
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT rowid, bm25(docs) FROM docs WHERE docs MATCH ?`, match)
	if err != nil {
		return nil, eris.Wrap(err, "querying FTS index")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key  int
			rank float64
		)
		if err := rows.Scan(&key, &rank); err != nil {
			return nil, eris.Wrap(err, "scanning row")
		}
		scores[key] = -rank
	}
	return scores, rows.Err()
}

// Close releases the database.
func (b *FTSBackend) Close() error {
	return b.db.Close()
}

// matchExpr turns free text into an FTS5 OR-query of quoted terms, which
// keeps punctuation in questions from being read as query syntax.
func matchExpr(text string) string {
	seen := map[string]bool{}
	var terms []string
	for _, t := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(t) < 2 || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, `"`+t+`"`)
	}
	return strings.Join(terms, " OR ")
}
