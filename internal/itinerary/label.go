package itinerary

import (
	"fmt"
	"time"

	"github.com/starford/waypoint/internal/models"
)

// DateLayout is the wire format of Trip.StartDate.
const DateLayout = "2006-01-02"

// Label derives the display label of a day from the trip start date.
// Without a parseable start date it falls back to "Day N".
func Label(startDate string, number int) string {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil || number < 1 {
		return fmt.Sprintf("Day %d", number)
	}
	return start.AddDate(0, 0, number-1).Format("Mon, Jan 2")
}

// Check reports the first invariant violation in t: day numbers must be
// 1..N in order and every day's items must carry a dense 0..n-1 order and
// their own day number. Item ids must be unique across the trip.
func Check(t *models.Trip) error {
	seen := make(map[string]int)
	for i, d := range t.Days {
		if d.Number != i+1 {
			return fmt.Errorf("day at position %d has number %d", i, d.Number)
		}
		for j, it := range d.Items {
			if it.Order != j {
				return fmt.Errorf("day %d: item %s has order %d at position %d", d.Number, it.ID, it.Order, j)
			}
			if it.Day != d.Number {
				return fmt.Errorf("day %d: item %s references day %d", d.Number, it.ID, it.Day)
			}
			if prev, ok := seen[it.ID]; ok {
				return fmt.Errorf("item %s appears in day %d and day %d", it.ID, prev, d.Number)
			}
			seen[it.ID] = d.Number
		}
	}
	return nil
}
