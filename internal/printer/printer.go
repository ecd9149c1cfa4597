// Package printer renders trips as terminal tables.
package printer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/models"
)

var (
	heading = color.New(color.Bold, color.Underline).SprintFunc()
	bold    = color.New(color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
	cat     = color.New(color.FgCyan).SprintFunc()
)

// Output is the default destination; it handles colors on Windows consoles.
func Output() io.Writer { return color.Output }

// Trip prints the itinerary day by day.
func Trip(w io.Writer, t *models.Trip) {
	if t == nil {
		return
	}
	_, _ = fmt.Fprintln(w, heading(t.Title))
	for _, d := range t.Days {
		_, _ = fmt.Fprintln(w, "\n"+bold(d.Label))
		if len(d.Items) == 0 {
			_, _ = fmt.Fprintln(w, faint("  (nothing planned)"))
			continue
		}
		tbl := uitable.New()
		tbl.Separator = "  "
		tbl.MaxColWidth = 48
		for _, it := range d.Items {
			tbl.AddRow(fmt.Sprintf("  %d.", it.Order+1), timeRange(it), it.Name, cat(it.Category), faint(it.Location))
		}
		_, _ = fmt.Fprintln(w, tbl)
	}
}

// Trips prints trip summaries.
func Trips(w io.Writer, trips []models.TripSummary) {
	if len(trips) == 0 {
		_, _ = fmt.Fprintln(w, faint("no trips"))
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold("ID"), bold("Title"), bold("Start"), bold("Days"), bold("Items"), bold("Updated"))
	for _, t := range trips {
		tbl.AddRow(t.ID, t.Title, orDash(t.StartDate), t.DayCount, t.ItemCount, t.UpdatedAt.Local().Format(time.DateTime))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

// Results prints search hits.
func Results(w io.Writer, results []index.SearchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, faint("no results"))
		return
	}
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 60
	tbl.AddRow(bold("Trip"), bold("Day"), bold("Place"), bold("Match"))
	for _, r := range results {
		day := "-"
		if r.Day > 0 {
			day = fmt.Sprint(r.Day)
		}
		tbl.AddRow(r.TripTitle, day, orDash(r.Title), faint(r.Snippet))
	}
	_, _ = fmt.Fprintln(w, tbl)
}

func timeRange(it *models.Item) string {
	switch {
	case it.StartTime != "" && it.EndTime != "":
		return it.StartTime + "-" + it.EndTime
	case it.StartTime != "":
		return it.StartTime
	default:
		return strings.Repeat(" ", 5)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
