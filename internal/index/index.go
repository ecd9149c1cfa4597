package index

import "github.com/starford/waypoint/internal/models"

// TripIndex defines the interface for trip indexing operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type TripIndex interface {
	UpsertTrip(t *models.Trip, checksum string) error
	DeleteTrip(id string) error
	GetChecksum(id string) (string, error)
	GetSummary(id string) (*models.TripSummary, error)
	ListTrips(limit, offset int, sort string) ([]models.TripSummary, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies TripIndex at compile time.
var _ TripIndex = (*DB)(nil)
