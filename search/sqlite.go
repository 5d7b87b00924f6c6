package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

const maxResults = 50

// SQLiteIndex is an Index on an FTS5 virtual table. Each row keeps the JSON
// snapshot of the post it was built from, so hits carry the full record.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex creates the index table on db if needed.
func NewSQLiteIndex(db *sql.DB) (*SQLiteIndex, error) {
	idx := &SQLiteIndex{db: db}
	if err := idx.ensureSchema(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *SQLiteIndex) ensureSchema() error {
	_, err := idx.db.Exec(`
CREATE VIRTUAL TABLE IF NOT EXISTS search_documents USING fts5(
    collection UNINDEXED,
    doc_id UNINDEXED,
    body,
    record UNINDEXED,
    tokenize = 'unicode61 remove_diacritics 2'
);
`)
	if err != nil {
		return fmt.Errorf("create search index: %w", err)
	}
	return nil
}

// Add stores doc under id. Callers remove first; Add does not replace.
func (idx *SQLiteIndex) Add(ctx context.Context, id string, doc Document, collection string) error {
	record, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = idx.db.ExecContext(ctx,
		`INSERT INTO search_documents (collection, doc_id, body, record) VALUES (?, ?, ?, ?)`,
		collection, id, doc.Text, string(record))
	return err
}

func (idx *SQLiteIndex) Remove(ctx context.Context, id, collection string) error {
	_, err := idx.db.ExecContext(ctx,
		`DELETE FROM search_documents WHERE collection = ? AND doc_id = ?`, collection, id)
	return err
}

// Search runs query as a prefix match on every term, best matches first.
func (idx *SQLiteIndex) Search(ctx context.Context, query, collection string) ([]Hit, error) {
	match := matchExpr(query)
	if match == "" {
		return nil, nil
	}
	rows, err := idx.db.QueryContext(ctx, `
SELECT doc_id, record FROM search_documents
WHERE search_documents MATCH ? AND collection = ?
ORDER BY rank
LIMIT ?`, match, collection, maxResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, record string
		if err := rows.Scan(&id, &record); err != nil {
			return nil, err
		}
		hit := Hit{ID: id}
		var doc Document
		if err := json.Unmarshal([]byte(record), &doc); err == nil {
			hit.Post = doc.Post
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// count returns how many documents collection holds.
func (idx *SQLiteIndex) count(ctx context.Context, collection string) (int, error) {
	var n int
	err := idx.db.QueryRowContext(ctx,
		`SELECT count(*) FROM search_documents WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

// matchExpr turns free text into an FTS5 expression: every word quoted and
// prefix-matched, all words required.
func matchExpr(query string) string {
	words := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	terms := make([]string, 0, len(words))
	for _, w := range words {
		terms = append(terms, `"`+w+`"*`)
	}
	return strings.Join(terms, " ")
}

var _ Index = (*SQLiteIndex)(nil)
