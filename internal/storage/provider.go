// Package storage persists trip documents.
package storage

import "github.com/starford/waypoint/internal/models"

// Provider stores one JSON document per trip, addressed by trip id.
type Provider interface {
	// List returns metadata for every trip document.
	List() ([]models.DocMeta, error)
	// Read returns the raw document of a trip. Missing trips wrap apperr.ErrNotFound.
	Read(id string) ([]byte, error)
	// Write atomically replaces the document of a trip.
	Write(id string, content []byte) error
	// Delete removes the document of a trip.
	Delete(id string) error
}
