//go:build sqlite_fts5

package index

import "testing"

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM places_fts`).Scan(&count); err != nil {
		t.Fatalf("places_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertTrip(sampleTrip("lisbon", "Lisbon"), "1"); err != nil {
		t.Fatalf("UpsertTrip: %v", err)
	}

	results, err := db.Search("custard", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ItemID != "i2" || results[0].TripID != "lisbon" {
		t.Errorf("hit = %+v", results[0])
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTrip(sampleTrip("gone", "Vanishing"), "g")
	_ = db.DeleteTrip("gone")

	results, _ := db.Search("Vanishing", 10)
	if len(results) != 0 {
		t.Errorf("deleted trip still in FTS index: %+v", results)
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	trip := sampleTrip("evo", "Original")
	_ = db.UpsertTrip(trip, "1")
	trip.Title = "Replacement"
	_ = db.UpsertTrip(trip, "2")

	results, _ := db.Search("Original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("Replacement", 10)
	if len(results) != 1 || results[0].TripTitle != "Replacement" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
