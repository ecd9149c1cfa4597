//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS places_fts USING fts5(
			trip_id UNINDEXED,
			item_id UNINDEXED,
			title,
			location,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, tripID, itemID, title, location, notes string) error {
	_, err := tx.Exec(`INSERT INTO places_fts (trip_id, item_id, title, location, notes) VALUES (?, ?, ?, ?, ?)`,
		tripID, itemID, title, location, notes)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, tripID string) {
	_, _ = tx.Exec(`DELETE FROM places_fts WHERE trip_id = ?`, tripID)
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT f.trip_id,
		       t.title,
		       f.item_id,
		       f.title,
		       coalesce(i.day, 0),
		       coalesce(i.location, ''),
		       snippet(places_fts, -1, '<b>', '</b>', '...', 16)
		FROM places_fts f
		JOIN trips t ON t.id = f.trip_id
		LEFT JOIN items i ON i.trip_id = f.trip_id AND i.id = f.item_id
		WHERE places_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.TripID, &r.TripTitle, &r.ItemID, &r.Title, &r.Day, &r.Location, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
