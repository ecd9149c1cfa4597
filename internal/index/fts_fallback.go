//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the trips and items tables.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _, _, _ string) error {
	// Text is already stored in the items table; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
// Trip title hits come first, then item hits in itinerary order.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id, title, '', title, 0, '', 0 AS rank, 0, 0
		FROM trips
		WHERE title LIKE ?
		UNION ALL
		SELECT i.trip_id, t.title, i.id, i.title, i.day, i.location, 1 AS rank, i.day, i.ord
		FROM items i JOIN trips t ON t.id = i.trip_id
		WHERE i.title LIKE ? OR i.location LIKE ? OR i.notes LIKE ? OR i.category LIKE ?
		ORDER BY 7, 1, 8, 9
		LIMIT ?
	`, like, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var rank, day, ord int
		if err := rows.Scan(&r.TripID, &r.TripTitle, &r.ItemID, &r.Title, &r.Day, &r.Location, &rank, &day, &ord); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
