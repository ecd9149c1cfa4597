package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/waypoint/internal/checksum"
	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/tripservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *tripservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *tripservice.Service) *Handler {
	return &Handler{svc: svc}
}

func tripID(r *http.Request) string { return chi.URLParam(r, "tripId") }

// ListTrips handles GET /api/trips.
//
//	@Summary		List trips with optional pagination
//	@Tags			trips
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated, title)
//	@Success		200		{object}	TripListResponse
//	@Security		BearerAuth
//	@Router			/trips [get]
func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	trips, total, err := h.svc.ListTrips(r.Context(), limit, offset, q.Get("sort"))
	if err != nil {
		writeError(w, "list trips", err)
		return
	}
	writeJSON(w, http.StatusOK, TripListResponse{Trips: trips, Total: total})
}

// CreateTrip handles POST /api/trips.
//
//	@Summary		Create a trip with empty days
//	@Tags			trips
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTripRequest	true	"Trip to create"
//	@Success		201		{object}	models.Trip
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips [post]
func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if !decode(w, r, &req, false) {
		return
	}
	trip, err := h.svc.CreateTrip(r.Context(), tripservice.CreateTripInput{
		ID:        req.ID,
		Title:     req.Title,
		StartDate: req.StartDate,
		Days:      req.Days,
	})
	if err != nil {
		writeError(w, "create trip", err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// GetTrip handles GET /api/trips/{tripId}.
//
//	@Summary		Get a trip with its full itinerary
//	@Tags			trips
//	@Produce		json
//	@Param			tripId	path		string	true	"Trip id"
//	@Success		200		{object}	models.Trip
//	@Param			If-None-Match	header	string	false	"ETag from a previous response"
//	@Header			200		{string}	ETag	"Document checksum"
//	@Success		304		"Not modified"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId} [get]
func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	trip, cs, err := h.svc.GetTrip(r.Context(), tripID(r))
	if err != nil {
		writeError(w, "get trip", err)
		return
	}
	w.Header().Set("ETag", checksum.ETag(cs))
	if checksum.MatchesETag(r.Header.Get("If-None-Match"), cs) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteTrip handles DELETE /api/trips/{tripId}.
//
//	@Summary		Delete a trip
//	@Tags			trips
//	@Param			tripId	path	string	true	"Trip id"
//	@Success		204		"Trip deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId} [delete]
func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTrip(r.Context(), tripID(r)); err != nil {
		writeError(w, "delete trip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem handles POST /api/trips/{tripId}/itinerary.
//
//	@Summary		Append an item to a day
//	@Tags			itinerary
//	@Accept			json
//	@Produce		json
//	@Param			tripId	path		string			true	"Trip id"
//	@Param			body	body		AddItemRequest	true	"Item fields"
//	@Success		201		{object}	models.Trip
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/itinerary [post]
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if !decode(w, r, &req, false) {
		return
	}
	trip, err := h.svc.AddItem(r.Context(), tripID(r), req.Day, req.Place())
	if err != nil {
		writeError(w, "add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// ReorderDay handles PATCH /api/trips/{tripId}/itinerary/order.
//
//	@Summary		Set the item order of one day
//	@Tags			itinerary
//	@Accept			json
//	@Param			tripId	path	string			true	"Trip id"
//	@Param			body	body	ReorderRequest	true	"Day and ordered item ids"
//	@Success		204		"Order saved"
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/itinerary/order [patch]
func (h *Handler) ReorderDay(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decode(w, r, &req, false) {
		return
	}
	if _, err := h.svc.ReorderDay(r.Context(), tripID(r), req.Day, req.ItemIDs); err != nil {
		writeError(w, "reorder day", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveItem handles PATCH /api/trips/{tripId}/itinerary/{itemId}/move.
//
//	@Summary		Move an item to the end of another day
//	@Tags			itinerary
//	@Accept			json
//	@Produce		json
//	@Param			tripId	path		string			true	"Trip id"
//	@Param			itemId	path		string			true	"Item id"
//	@Param			body	body		MoveItemRequest	true	"Source and target day"
//	@Success		200		{object}	models.Trip
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/itinerary/{itemId}/move [patch]
func (h *Handler) MoveItem(w http.ResponseWriter, r *http.Request) {
	var req MoveItemRequest
	if !decode(w, r, &req, false) {
		return
	}
	trip, err := h.svc.MoveItem(r.Context(), tripID(r), chi.URLParam(r, "itemId"), req.FromDay, req.ToDay)
	if err != nil {
		writeError(w, "move item", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteItem handles DELETE /api/trips/{tripId}/itinerary/{itemId}.
//
//	@Summary		Remove an item
//	@Tags			itinerary
//	@Produce		json
//	@Param			tripId	path		string	true	"Trip id"
//	@Param			itemId	path		string	true	"Item id"
//	@Success		200		{object}	models.Trip
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/itinerary/{itemId} [delete]
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	trip, err := h.svc.DeleteItem(r.Context(), tripID(r), chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, "delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// AddDay handles POST /api/trips/{tripId}/days.
//
//	@Summary		Append an empty day
//	@Tags			days
//	@Produce		json
//	@Param			tripId	path		string	true	"Trip id"
//	@Success		200		{object}	models.Trip
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/days [post]
func (h *Handler) AddDay(w http.ResponseWriter, r *http.Request) {
	trip, err := h.svc.AddDay(r.Context(), tripID(r))
	if err != nil {
		writeError(w, "add day", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DuplicateDay handles POST /api/trips/{tripId}/duplicate-day.
//
//	@Summary		Copy the items of one day into another
//	@Tags			days
//	@Accept			json
//	@Produce		json
//	@Param			tripId	path		string				true	"Trip id"
//	@Param			body	body		DuplicateDayRequest	true	"Source and destination day"
//	@Success		200		{object}	models.Trip
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/duplicate-day [post]
func (h *Handler) DuplicateDay(w http.ResponseWriter, r *http.Request) {
	var req DuplicateDayRequest
	if !decode(w, r, &req, false) {
		return
	}
	trip, err := h.svc.DuplicateDay(r.Context(), tripID(r), req.SourceDay, req.DestDay)
	if err != nil {
		writeError(w, "duplicate day", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// DeleteDay handles DELETE /api/trips/{tripId}/day/{dayNumber}.
//
//	@Summary		Remove a day and its items
//	@Tags			days
//	@Accept			json
//	@Produce		json
//	@Param			tripId		path		string				true	"Trip id"
//	@Param			dayNumber	path		int					true	"Day number"
//	@Param			body		body		DeleteDayRequest	false	"Renumber later days (default true)"
//	@Success		200			{object}	models.Trip
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/trips/{tripId}/day/{dayNumber} [delete]
func (h *Handler) DeleteDay(w http.ResponseWriter, r *http.Request) {
	day, err := strconv.Atoi(chi.URLParam(r, "dayNumber"))
	if err != nil || day < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("dayNumber must be a positive integer"))
		return
	}
	var req DeleteDayRequest
	if !decode(w, r, &req, true) {
		return
	}
	renumber := req.Renumber == nil || *req.Renumber

	trip, err := h.svc.DeleteDay(r.Context(), tripID(r), day, renumber)
	if err != nil {
		writeError(w, "delete day", err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Search handles GET /api/search.
//
//	@Summary		Search trips and places
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

