//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS files_fts USING fts5(
			path UNINDEXED,
			bundle UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, path, bundle, title, body string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
	_, err := tx.Exec(`INSERT INTO files_fts (path, bundle, title, body, tags) VALUES (?, ?, ?, ?, ?)`,
		path, bundle, title, body, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM files_fts WHERE path = ?`, path)
}

// Search performs an FTS5 full-text search and returns matching results with
// snippets. An empty bundle searches across all bundles.
func (db *DB) Search(query, bundle string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `
		SELECT path,
		       bundle,
		       title,
		       snippet(files_fts, 3, '<b>', '</b>', '...', 64)
		FROM files_fts
		WHERE files_fts MATCH ?`
	args := []interface{}{query}
	if bundle != "" {
		q += ` AND bundle = ?`
		args = append(args, bundle)
	}
	q += `
		ORDER BY rank
		LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Bundle, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
