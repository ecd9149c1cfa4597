// Package tripclient talks to the Waypoint REST API. A Client is the
// persistence side of a reconcile.Session.
package tripclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/models"
)

const defaultTimeout = 30 * time.Second

// Client calls the trip endpoints under baseURL (for example http://host:8080/api).
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token, if any.
func (c *Client) Token() string { return c.token }

// StatusError is a non-2xx API response. It unwraps to the matching
// apperr sentinel so callers can use errors.Is.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.ErrInvalid
	}
	return nil
}

// TripList is one page of trip summaries.
type TripList struct {
	Trips []models.TripSummary `json:"trips"`
	Total int                  `json:"total"`
}

// CreateTrip is the body of a create call.
type CreateTrip struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	StartDate string `json:"startDate,omitempty"`
	Days      int    `json:"days,omitempty"`
}

// ListTrips fetches one page of trips.
func (c *Client) ListTrips(ctx context.Context, limit, offset int) (*TripList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/trips"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out TripList
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search looks up trips and places by name, location or notes.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Results []index.SearchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// CreateTrip creates a trip.
func (c *Client) CreateTrip(ctx context.Context, in CreateTrip) (*models.Trip, error) {
	return c.trip(ctx, http.MethodPost, "/trips", in)
}

// GetTrip fetches a trip with its full itinerary.
func (c *Client) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return c.trip(ctx, http.MethodGet, tripPath(tripID), nil)
}

// AddItem appends an item built from p to a day.
func (c *Client) AddItem(ctx context.Context, tripID string, day int, p models.Place) (*models.Trip, error) {
	body := map[string]any{
		"title":     p.Name,
		"day":       day,
		"placeId":   p.ID,
		"location":  p.Location,
		"category":  p.Category,
		"startTime": p.StartTime,
		"endTime":   p.EndTime,
		"notes":     p.Notes,
	}
	if p.Geo != nil {
		body["lat"], body["lng"] = p.Geo.Lat, p.Geo.Lng
	}
	if p.Cost != nil {
		body["cost"] = *p.Cost
	}
	return c.trip(ctx, http.MethodPost, tripPath(tripID)+"/itinerary", body)
}

// ReorderDay stores the full item order of a day.
func (c *Client) ReorderDay(ctx context.Context, tripID string, day int, itemIDs []string) error {
	if itemIDs == nil {
		itemIDs = []string{}
	}
	return c.do(ctx, http.MethodPatch, tripPath(tripID)+"/itinerary/order",
		map[string]any{"day": day, "itemIds": itemIDs}, nil)
}

// MoveItem moves an item to the end of another day.
func (c *Client) MoveItem(ctx context.Context, tripID, itemID string, fromDay, toDay int) (*models.Trip, error) {
	return c.trip(ctx, http.MethodPatch, tripPath(tripID)+"/itinerary/"+url.PathEscape(itemID)+"/move",
		map[string]int{"fromDay": fromDay, "toDay": toDay})
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, tripID, itemID string) (*models.Trip, error) {
	return c.trip(ctx, http.MethodDelete, tripPath(tripID)+"/itinerary/"+url.PathEscape(itemID), nil)
}

// AddDay appends an empty day.
func (c *Client) AddDay(ctx context.Context, tripID string) (*models.Trip, error) {
	return c.trip(ctx, http.MethodPost, tripPath(tripID)+"/days", nil)
}

// DeleteDay removes a day. renumber shifts later days down by one.
func (c *Client) DeleteDay(ctx context.Context, tripID string, day int, renumber bool) (*models.Trip, error) {
	return c.trip(ctx, http.MethodDelete, tripPath(tripID)+"/day/"+strconv.Itoa(day),
		map[string]bool{"renumber": renumber})
}

// DuplicateDay copies the items of sourceDay into destDay.
func (c *Client) DuplicateDay(ctx context.Context, tripID string, sourceDay, destDay int) (*models.Trip, error) {
	return c.trip(ctx, http.MethodPost, tripPath(tripID)+"/duplicate-day",
		map[string]int{"sourceDay": sourceDay, "destDay": destDay})
}

func tripPath(tripID string) string {
	return "/trips/" + url.PathEscape(tripID)
}

func (c *Client) trip(ctx context.Context, method, path string, body any) (*models.Trip, error) {
	var out models.Trip
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &StatusError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
