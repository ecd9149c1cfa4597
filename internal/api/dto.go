package api

import (
	"errors"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/itinerary"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/storage"
)

var clockTime = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// CreateTripRequest is the request body for creating a trip.
type CreateTripRequest struct {
	ID        string `json:"id,omitempty" example:"lisbon-2026"`
	Title     string `json:"title" example:"Lisbon" validate:"required"`
	StartDate string `json:"startDate,omitempty" example:"2026-05-01"`
	Days      int    `json:"days,omitempty" example:"3"`
}

// Validate validates the create trip request.
func (r CreateTripRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.By(func(any) error {
			if r.ID != "" && !storage.ValidID(r.ID) {
				return errors.New("must contain only letters, digits, '-' or '_'")
			}
			return nil
		})),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.StartDate, validation.Date(itinerary.DateLayout)),
		validation.Field(&r.Days, validation.Min(0), validation.Max(366)),
	)
}

// AddItemRequest is the request body for adding an item to a day.
type AddItemRequest struct {
	Title     string   `json:"title" example:"Belém Tower" validate:"required"`
	Day       int      `json:"day" example:"1" validate:"required"`
	PlaceID   string   `json:"placeId,omitempty"`
	Location  string   `json:"location,omitempty" example:"Belém, Lisbon"`
	Category  string   `json:"category,omitempty" example:"sight"`
	StartTime string   `json:"startTime,omitempty" example:"09:30"`
	EndTime   string   `json:"endTime,omitempty" example:"11:00"`
	Notes     string   `json:"notes,omitempty"`
	Lat       *float64 `json:"lat,omitempty" example:"38.6916"`
	Lng       *float64 `json:"lng,omitempty" example:"-9.2160"`
	Cost      *float64 `json:"cost,omitempty" example:"10"`
}

// Validate validates the add item request. Coordinates come as a pair or not at all.
func (r AddItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Day, validation.Required, validation.Min(1)),
		validation.Field(&r.StartTime, validation.Match(clockTime)),
		validation.Field(&r.EndTime, validation.Match(clockTime)),
		validation.Field(&r.Lat, validation.When(r.Lng != nil, validation.NotNil), validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&r.Lng, validation.When(r.Lat != nil, validation.NotNil), validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&r.Cost, validation.Min(0.0)),
	)
}

// Place converts the request into an itinerary place.
func (r AddItemRequest) Place() models.Place {
	p := models.Place{
		ID:        r.PlaceID,
		Name:      r.Title,
		Location:  r.Location,
		Category:  r.Category,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Notes:     r.Notes,
		Cost:      r.Cost,
	}
	if r.Lat != nil && r.Lng != nil {
		p.Geo = &models.GeoPoint{Lat: *r.Lat, Lng: *r.Lng}
	}
	return p
}

// ReorderRequest is the request body for setting the order of one day.
type ReorderRequest struct {
	Day     int      `json:"day" example:"1" validate:"required"`
	ItemIDs []string `json:"itemIds" validate:"required"`
}

// Validate validates the reorder request.
func (r ReorderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Day, validation.Required, validation.Min(1)),
		validation.Field(&r.ItemIDs, validation.NotNil),
	)
}

// MoveItemRequest is the request body for moving an item between days.
type MoveItemRequest struct {
	FromDay int `json:"fromDay" example:"1" validate:"required"`
	ToDay   int `json:"toDay" example:"2" validate:"required"`
}

// Validate validates the move request.
func (r MoveItemRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FromDay, validation.Required, validation.Min(1)),
		validation.Field(&r.ToDay, validation.Required, validation.Min(1)),
	)
}

// DuplicateDayRequest is the request body for copying a day.
type DuplicateDayRequest struct {
	SourceDay int `json:"sourceDay" example:"1" validate:"required"`
	DestDay   int `json:"destDay" example:"2" validate:"required"`
}

// Validate validates the duplicate request.
func (r DuplicateDayRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.SourceDay, validation.Required, validation.Min(1)),
		validation.Field(&r.DestDay, validation.Required, validation.Min(1)),
	)
}

// DeleteDayRequest is the optional request body for removing a day.
// Renumber defaults to true when the body is absent.
type DeleteDayRequest struct {
	Renumber *bool `json:"renumber,omitempty" example:"true"`
}

// TripListResponse wraps paginated trip listings.
type TripListResponse struct {
	Trips []models.TripSummary `json:"trips" validate:"required"`
	Total int                  `json:"total" example:"42" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
