package index

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "waypoint-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleTrip(id, title string) *models.Trip {
	return &models.Trip{
		ID:        id,
		Title:     title,
		StartDate: "2026-05-01",
		UpdatedAt: time.Now().UTC(),
		Days: []*models.Day{
			{Number: 1, Items: []*models.Item{
				{ID: "i1", Name: "Belém Tower", Day: 1, Location: "Belém", Geo: &models.GeoPoint{Lat: 38.69, Lng: -9.21}},
				{ID: "i2", Name: "Pastéis", Day: 1, Order: 1, Notes: "custard tarts"},
			}},
			{Number: 2, Items: []*models.Item{
				{ID: "i3", Name: "Sintra Palace", Day: 2, Location: "Sintra"},
			}},
		},
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM trips`).Scan(&count); err != nil {
		t.Fatalf("trips table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM items`).Scan(&count); err != nil {
		t.Fatalf("items table missing: %v", err)
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertTrip(sampleTrip("lisbon", "Lisbon"), "abc123"); err != nil {
		t.Fatalf("UpsertTrip: %v", err)
	}
	cs, err := db.GetChecksum("lisbon")
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	s, err := db.GetSummary("lisbon")
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.DayCount != 2 || s.ItemCount != 3 || s.StartDate != "2026-05-01" {
		t.Errorf("summary = %+v", s)
	}
}

func TestGetSummary_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetSummary("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertReplacesItems(t *testing.T) {
	db := testDB(t)
	trip := sampleTrip("lisbon", "Lisbon")
	_ = db.UpsertTrip(trip, "1")

	trip.Days[1].Items = nil
	_ = db.UpsertTrip(trip, "2")

	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM items WHERE trip_id = ?`, "lisbon").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("items = %d, want 2 after replace", n)
	}
	if cs, _ := db.GetChecksum("lisbon"); cs != "2" {
		t.Errorf("checksum = %q, want 2", cs)
	}
}

func TestDeleteTrip(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTrip(sampleTrip("del", "Delete Me"), "x")

	if err := db.DeleteTrip("del"); err != nil {
		t.Fatalf("DeleteTrip: %v", err)
	}
	cs, _ := db.GetChecksum("del")
	if cs != "" {
		t.Errorf("deleted trip still has checksum %q", cs)
	}
	var n int
	_ = db.conn.QueryRow(`SELECT count(*) FROM items WHERE trip_id = ?`, "del").Scan(&n)
	if n != 0 {
		t.Errorf("expected 0 items after delete, got %d", n)
	}
}

func TestListTrips(t *testing.T) {
	db := testDB(t)
	a := sampleTrip("a", "Zagreb")
	a.UpdatedAt = time.Now().Add(-time.Hour)
	b := sampleTrip("b", "Athens")
	_ = db.UpsertTrip(a, "1")
	_ = db.UpsertTrip(b, "2")

	got, total, err := db.ListTrips(10, 0, "")
	if err != nil {
		t.Fatalf("ListTrips: %v", err)
	}
	if total != 2 || len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("default order: total=%d got=%+v", total, got)
	}

	got, _, _ = db.ListTrips(10, 0, "title")
	if got[0].Title != "Athens" {
		t.Errorf("title order first = %q", got[0].Title)
	}

	got, total, _ = db.ListTrips(1, 1, "title")
	if total != 2 || len(got) != 1 || got[0].Title != "Zagreb" {
		t.Errorf("paged = %+v", got)
	}
}

func TestGetChecksum_NotFound(t *testing.T) {
	db := testDB(t)
	cs, err := db.GetChecksum("nonexistent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs != "" {
		t.Errorf("expected empty checksum, got %q", cs)
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTrip(sampleTrip("lisbon", "Lisbon Weekend"), "1")

	results, err := db.Search("Sintra", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ItemID != "i3" || results[0].Day != 2 {
		t.Errorf("search results = %+v, want 1 hit for i3", results)
	}
	if results[0].TripTitle != "Lisbon Weekend" {
		t.Errorf("trip title = %q", results[0].TripTitle)
	}

	results, _ = db.Search("Lisbon", 10)
	if len(results) == 0 || results[0].ItemID != "" {
		t.Errorf("trip title hit = %+v", results)
	}
}

func TestAllChecksums(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertTrip(sampleTrip("a", "A"), "ca")
	_ = db.UpsertTrip(sampleTrip("b", "B"), "cb")
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all["a"] != "ca" || all["b"] != "cb" {
		t.Errorf("checksums = %v", all)
	}
}
