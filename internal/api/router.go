package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/waypoint/internal/hub"
	"github.com/starford/waypoint/internal/tripservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// h, if non-nil, serves the notification endpoints inside the auth group:
// GET /ws (websocket rooms), GET /events (list changes) and
// GET /trips/{tripId}/events (one trip's room over SSE).
func NewRouter(svc *tripservice.Service, authEnabled bool, token string, h *hub.Hub, logger *slog.Logger) chi.Router {
	hd := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Trips.
	r.Get("/trips", hd.ListTrips)
	r.Post("/trips", hd.CreateTrip)
	r.Route("/trips/{tripId}", func(r chi.Router) {
		r.Get("/", hd.GetTrip)
		r.Delete("/", hd.DeleteTrip)

		// Itinerary items.
		r.Post("/itinerary", hd.AddItem)
		r.Patch("/itinerary/order", hd.ReorderDay)
		r.Patch("/itinerary/{itemId}/move", hd.MoveItem)
		r.Delete("/itinerary/{itemId}", hd.DeleteItem)

		// Days.
		r.Post("/days", hd.AddDay)
		r.Post("/duplicate-day", hd.DuplicateDay)
		r.Delete("/day/{dayNumber}", hd.DeleteDay)

		if h != nil {
			r.Get("/events", func(w http.ResponseWriter, req *http.Request) {
				h.ServeRoom(w, req, chi.URLParam(req, "tripId"))
			})
		}
	})

	// Search.
	r.Get("/search", hd.Search)

	// Notification channel.
	if h != nil {
		r.Get("/events", h.ServeHTTP)
		r.Get("/ws", h.WSHandler(logger))
	}

	return r
}
