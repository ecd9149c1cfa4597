package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/models"
)

// SearchResult is one search hit. ItemID is empty when the trip itself matched.
type SearchResult struct {
	TripID    string `json:"tripId"`
	TripTitle string `json:"tripTitle"`
	ItemID    string `json:"itemId,omitempty"`
	Title     string `json:"title"`
	Day       int    `json:"day,omitempty"`
	Location  string `json:"location,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// UpsertTrip replaces the indexed trip row, its items and FTS entries in one transaction.
func (db *DB) UpsertTrip(t *models.Trip, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO trips (id, title, start_date, checksum, day_count, item_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			start_date = excluded.start_date,
			checksum   = excluded.checksum,
			day_count  = excluded.day_count,
			item_count = excluded.item_count,
			updated_at = excluded.updated_at
	`, t.ID, t.Title, t.StartDate, checksum, len(t.Days), t.ItemCount(), updated)
	if err != nil {
		return fmt.Errorf("index: upsert trip: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM items WHERE trip_id = ?`, t.ID); err != nil {
		return fmt.Errorf("index: clear items: %w", err)
	}
	ftsDelete(tx, t.ID)
	if err := ftsUpsert(tx, t.ID, "", t.Title, "", ""); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO items (trip_id, id, day, ord, title, location, category, notes, lat, lng)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare item insert: %w", err)
	}
	defer stmt.Close()
	for _, d := range t.Days {
		for i, it := range d.Items {
			var lat, lng sql.NullFloat64
			if it.Geo != nil {
				lat = sql.NullFloat64{Float64: it.Geo.Lat, Valid: true}
				lng = sql.NullFloat64{Float64: it.Geo.Lng, Valid: true}
			}
			if _, err := stmt.Exec(t.ID, it.ID, d.Number, i, it.Name, it.Location, it.Category, it.Notes, lat, lng); err != nil {
				return fmt.Errorf("index: insert item: %w", err)
			}
			if err := ftsUpsert(tx, t.ID, it.ID, it.Name, it.Location, it.Notes); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// DeleteTrip removes a trip, its items and FTS entries.
func (db *DB) DeleteTrip(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM items WHERE trip_id = ?`, id)
	_, _ = tx.Exec(`DELETE FROM trips WHERE id = ?`, id)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a trip, or empty string if not found.
func (db *DB) GetChecksum(id string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM trips WHERE id = ?`, id).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetSummary returns the indexed summary of one trip.
func (db *DB) GetSummary(id string) (*models.TripSummary, error) {
	row := db.conn.QueryRow(`
		SELECT id, title, start_date, day_count, item_count, checksum, updated_at
		FROM trips WHERE id = ?`, id)
	var s models.TripSummary
	err := row.Scan(&s.ID, &s.Title, &s.StartDate, &s.DayCount, &s.ItemCount, &s.Checksum, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: trip %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get summary: %w", err)
	}
	return &s, nil
}

// ListTrips returns a page of trip summaries and the total count.
// sort is "title" or "updated" (default, newest first).
func (db *DB) ListTrips(limit, offset int, sort string) ([]models.TripSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC, id"
	if sort == "title" {
		order = "title COLLATE NOCASE, id"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM trips`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count trips: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT id, title, start_date, day_count, item_count, checksum, updated_at
		FROM trips ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list trips: %w", err)
	}
	defer rows.Close()

	out := []models.TripSummary{}
	for rows.Next() {
		var s models.TripSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.StartDate, &s.DayCount, &s.ItemCount, &s.Checksum, &s.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// AllChecksums returns the checksum of every indexed trip keyed by id.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT id, checksum FROM trips`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var id, cs string
		if err := rows.Scan(&id, &cs); err != nil {
			return nil, err
		}
		out[id] = cs
	}
	return out, rows.Err()
}
