// Package models defines the domain types for Waypoint.
package models

import "time"

// Trip is a titled, day-by-day itinerary.
type Trip struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"startDate,omitempty"` // YYYY-MM-DD, optional
	Days      []*Day    `json:"days"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Day is a numbered container of items. Numbers are 1-based and contiguous.
type Day struct {
	Number int     `json:"day"`
	Label  string  `json:"label"`
	Items  []*Item `json:"items"`
}

// Item is a single place or activity within a day.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"title"`
	Day       int       `json:"day"`
	Order     int       `json:"order"`
	Geo       *GeoPoint `json:"geo,omitempty"`
	Location  string    `json:"location,omitempty"`
	Category  string    `json:"category,omitempty"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Cost      *float64  `json:"cost,omitempty"`
}

// GeoPoint is a latitude/longitude pair. Both values are always present together.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place is the source of a new item: a search result or recommendation.
// ID is empty when the source has no persisted identifier.
type Place struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"title"`
	Geo       *GeoPoint `json:"geo,omitempty"`
	Location  string    `json:"location,omitempty"`
	Category  string    `json:"category,omitempty"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Cost      *float64  `json:"cost,omitempty"`
}

// TripSummary is a lightweight representation returned by list operations.
type TripSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate string    `json:"startDate,omitempty"`
	DayCount  int       `json:"dayCount"`
	ItemCount int       `json:"itemCount"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Day returns the day with the given number, or nil.
func (t *Trip) Day(number int) *Day {
	if t == nil {
		return nil
	}
	for _, d := range t.Days {
		if d.Number == number {
			return d
		}
	}
	return nil
}

// MaxDay returns the highest day number, or 0 for a trip without days.
func (t *Trip) MaxDay() int {
	max := 0
	if t == nil {
		return max
	}
	for _, d := range t.Days {
		if d.Number > max {
			max = d.Number
		}
	}
	return max
}

// Find returns the item with the given id and the day that holds it.
func (t *Trip) Find(itemID string) (*Item, *Day) {
	if t == nil {
		return nil, nil
	}
	for _, d := range t.Days {
		for _, it := range d.Items {
			if it.ID == itemID {
				return it, d
			}
		}
	}
	return nil, nil
}

// ItemCount returns the number of items across all days.
func (t *Trip) ItemCount() int {
	n := 0
	for _, d := range t.Days {
		n += len(d.Items)
	}
	return n
}

// IDs returns the item ids of the day in display order.
func (d *Day) IDs() []string {
	out := make([]string, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.ID
	}
	return out
}

// DocMeta describes a stored trip document.
type DocMeta struct {
	ID        string    `json:"id"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}
