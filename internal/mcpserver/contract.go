package mcpserver

// TripFormatContract describes the trip document layout and the editing rules
// that LLM consumers should follow when planning itineraries.
const TripFormatContract = `# Waypoint Trip Format

Each trip is one JSON document named after its id (` + "`" + `<id>.json` + "`" + `).

## Structure

` + "```" + `json
{
  "id": "lisbon-2026",
  "title": "Lisbon",
  "startDate": "2026-05-01",
  "days": [
    {
      "day": 1,
      "label": "Fri, May 1",
      "items": [
        {
          "id": "6f1c...",
          "title": "Belém Tower",
          "day": 1,
          "order": 0,
          "location": "Belém, Lisbon",
          "category": "sight",
          "startTime": "09:30",
          "endTime": "11:00",
          "geo": {"lat": 38.6916, "lng": -9.2160}
        }
      ]
    }
  ]
}
` + "```" + `

## Rules

1. **Days are numbered from 1.** Labels are derived: a weekday date when the
   trip has a start date, "Day N" otherwise. Never set labels by hand.
2. **Order is dense.** Items of a day carry order 0..n-1 in display order.
3. **Use the tools to edit.** They keep order, day references and labels
   consistent and notify connected clients.
4. **Moving to another day appends** the item to the end of that day. Use
   ` + "`" + `reorder_day` + "`" + ` afterwards to place it.
5. **A trip always keeps at least one day.**
6. **Times** use 24-hour HH:MM. Coordinates come as a lat/lng pair or not at all.
`
