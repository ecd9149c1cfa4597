package printer

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/models"
)

func init() {
	color.NoColor = true
}

func TestTrip(t *testing.T) {
	trip := &models.Trip{
		Title: "Lisbon",
		Days: []*models.Day{
			{Number: 1, Label: "Fri, May 1", Items: []*models.Item{
				{ID: "a", Name: "Belém Tower", Category: "sight", StartTime: "09:30", EndTime: "11:00"},
				{ID: "b", Name: "Pastéis", Order: 1, Location: "Belém"},
			}},
			{Number: 2, Label: "Sat, May 2", Items: []*models.Item{}},
		},
	}
	var buf bytes.Buffer
	Trip(&buf, trip)
	out := buf.String()

	assert.Contains(t, out, "Lisbon")
	assert.Contains(t, out, "Fri, May 1")
	assert.Contains(t, out, "09:30-11:00")
	assert.Contains(t, out, "Belém Tower")
	assert.Contains(t, out, "2.")
	assert.Contains(t, out, "(nothing planned)")
}

func TestTrips(t *testing.T) {
	var buf bytes.Buffer
	Trips(&buf, nil)
	assert.Contains(t, buf.String(), "no trips")

	buf.Reset()
	Trips(&buf, []models.TripSummary{{ID: "lisbon", Title: "Lisbon", DayCount: 3, ItemCount: 7, UpdatedAt: time.Now()}})
	assert.Contains(t, buf.String(), "lisbon")
	assert.Contains(t, buf.String(), "Lisbon")
}

func TestResults(t *testing.T) {
	var buf bytes.Buffer
	Results(&buf, []index.SearchResult{{TripTitle: "Lisbon", Day: 1, Title: "Belém Tower", Snippet: "Tower"}})
	assert.Contains(t, buf.String(), "Belém Tower")

	buf.Reset()
	Results(&buf, nil)
	assert.Contains(t, buf.String(), "no results")
}
