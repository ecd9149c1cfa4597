package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/checksum"
	"github.com/starford/waypoint/internal/itinerary"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/storage"
)

// Sync walks the data directory and brings the index up to date:
//   - new/changed documents are decoded and upserted
//   - documents removed from disk are deleted from the index
func Sync(db *DB, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.ID] = struct{}{}

		if checksums[m.ID] == m.Checksum {
			continue
		}

		data, err := store.Read(m.ID)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("trip_id", m.ID), slog.String("error", err.Error()))
			continue
		}
		if _, err := IndexDocument(db, m.ID, data); err != nil {
			logger.Warn("sync: index failed", slog.String("trip_id", m.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("trip_id", m.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := disk[id]; !ok {
			if err := db.DeleteTrip(id); err != nil {
				logger.Warn("sync: delete failed", slog.String("trip_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("trip_id", id))
			}
		}
	}

	return nil
}

// DecodeDocument parses a stored trip document. The file name wins over the
// id inside the document, and the itinerary is normalized. Null days or
// items make the document invalid.
func DecodeDocument(id string, data []byte) (*models.Trip, error) {
	var t models.Trip
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", id, err)
	}
	for i, d := range t.Days {
		if d == nil {
			return nil, fmt.Errorf("index: decode %s: null day at position %d: %w", id, i, apperr.ErrInvalid)
		}
		if slices.Contains(d.Items, nil) {
			return nil, fmt.Errorf("index: decode %s: day %d has a null item: %w", id, d.Number, apperr.ErrInvalid)
		}
	}
	t.ID = id
	return itinerary.Normalize(&t), nil
}

// IndexDocument decodes data and upserts it into the DB.
func IndexDocument(db TripIndex, id string, data []byte) (*models.Trip, error) {
	t, err := DecodeDocument(id, data)
	if err != nil {
		return nil, err
	}
	if err := db.UpsertTrip(t, checksum.Sum(data)); err != nil {
		return nil, err
	}
	return t, nil
}
