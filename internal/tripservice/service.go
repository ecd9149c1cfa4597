// Package tripservice applies itinerary operations to stored trips.
//
// Every mutation loads the trip document, applies one itinerary.Store
// operation, writes the result back, re-indexes it and notifies the trip's
// room. Operations that change nothing are not written and not announced.
package tripservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/checksum"
	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/itinerary"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/storage"
)

// Notifier announces that a trip changed.
type Notifier interface {
	PublishUpdated(tripID string)
}

// CreateTripInput describes a new trip.
type CreateTripInput struct {
	ID        string
	Title     string
	StartDate string
	Days      int
}

type cached struct {
	checksum string
	trip     *models.Trip
}

// Service coordinates storage, index and notifications.
type Service struct {
	store  storage.Provider
	db     index.TripIndex
	ops    *itinerary.Store
	notify Notifier
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	cache *lru.Cache[string, cached]
	locks sync.Map // trip id -> *sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets the room notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notify = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithCacheSize sets how many decoded trips are kept in memory.
func WithCacheSize(n int) Option {
	return func(s *Service) {
		if c, err := lru.New[string, cached](n); err == nil {
			s.cache = c
		}
	}
}

// WithIDGenerator overrides trip and item id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithClock overrides the time source for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new trip service.
func NewService(store storage.Provider, db index.TripIndex, opts ...Option) *Service {
	s := &Service{
		store:  store,
		db:     db,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache, _ = lru.New[string, cached](128)
	}
	s.ops = itinerary.New(itinerary.Authoritative(), itinerary.WithIDGenerator(s.newID))
	return s
}

// CreateTrip stores a new trip with the requested number of empty days.
func (s *Service) CreateTrip(_ context.Context, in CreateTripInput) (*models.Trip, error) {
	id := in.ID
	if id == "" {
		id = s.newID()
	}
	if !storage.ValidID(id) {
		return nil, fmt.Errorf("trip id %q: %w", id, apperr.ErrInvalid)
	}
	days := in.Days
	if days < 1 {
		days = 1
	}

	unlock := s.lock(id)
	defer unlock()

	if _, err := s.store.Read(id); err == nil {
		return nil, fmt.Errorf("trip %s: %w", id, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	trip := &models.Trip{
		ID:        id,
		Title:     strings.TrimSpace(in.Title),
		StartDate: in.StartDate,
		Days:      make([]*models.Day, days),
		UpdatedAt: s.now(),
	}
	for i := range trip.Days {
		trip.Days[i] = &models.Day{Number: i + 1, Items: []*models.Item{}}
	}
	trip = itinerary.Normalize(trip)
	if err := s.save(trip, ""); err != nil {
		return nil, err
	}
	s.logger.Info("trip created", slog.String("trip_id", id), slog.Int("days", days))
	s.publish(id)
	return trip, nil
}

// GetTrip returns the stored trip and the checksum of its document.
func (s *Service) GetTrip(_ context.Context, id string) (*models.Trip, string, error) {
	return s.load(id)
}

// DeleteTrip removes a trip from storage and index.
func (s *Service) DeleteTrip(_ context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.cache.Remove(id)
	if err := s.db.DeleteTrip(id); err != nil {
		return err
	}
	s.publish(id)
	return nil
}

// ListTrips returns indexed trip summaries.
func (s *Service) ListTrips(_ context.Context, limit, offset int, sort string) ([]models.TripSummary, int, error) {
	return s.db.ListTrips(limit, offset, sort)
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// AddItem appends an item built from p to a day.
func (s *Service) AddItem(ctx context.Context, id string, day int, p models.Place) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		if t.Day(day) == nil {
			return nil, dayNotFound(day)
		}
		return s.ops.AddItem(t, p, day), nil
	})
}

// ReorderDay sets the order of a day. ids must be a permutation of the day's items.
func (s *Service) ReorderDay(ctx context.Context, id string, day int, ids []string) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		d := t.Day(day)
		if d == nil {
			return nil, dayNotFound(day)
		}
		if !itinerary.IsPermutation(d, ids) {
			return nil, fmt.Errorf("itemIds must list every item of day %d exactly once: %w", day, apperr.ErrInvalid)
		}
		return s.ops.SetOrder(t, day, ids), nil
	})
}

// MoveItem moves an item from one day to the end of another.
func (s *Service) MoveItem(ctx context.Context, id, itemID string, fromDay, toDay int) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		if err := requireItem(t, itemID, fromDay); err != nil {
			return nil, err
		}
		if t.Day(toDay) == nil {
			return nil, dayNotFound(toDay)
		}
		return s.ops.Move(t, itemID, fromDay, toDay), nil
	})
}

// DeleteItem removes an item wherever it is.
func (s *Service) DeleteItem(ctx context.Context, id, itemID string) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		_, d := t.Find(itemID)
		if d == nil {
			return nil, fmt.Errorf("item %s: %w", itemID, apperr.ErrNotFound)
		}
		return s.ops.RemoveItem(t, itemID, d.Number), nil
	})
}

// AddDay appends an empty day.
func (s *Service) AddDay(ctx context.Context, id string) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		return s.ops.AddDay(t), nil
	})
}

// DeleteDay removes a day and its items, optionally renumbering later days.
func (s *Service) DeleteDay(ctx context.Context, id string, day int, renumber bool) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		if t.Day(day) == nil {
			return nil, dayNotFound(day)
		}
		if len(t.Days) <= 1 {
			return nil, apperr.ErrLastDay
		}
		return s.ops.RemoveDay(t, day, renumber), nil
	})
}

// DuplicateDay copies the items of src into dst, creating days up to dst.
func (s *Service) DuplicateDay(ctx context.Context, id string, src, dst int) (*models.Trip, error) {
	return s.mutate(ctx, id, func(t *models.Trip) (*models.Trip, error) {
		if t.Day(src) == nil {
			return nil, dayNotFound(src)
		}
		if dst < 1 || dst == src {
			return nil, fmt.Errorf("target day %d: %w", dst, apperr.ErrInvalid)
		}
		return s.ops.DuplicateDay(t, src, dst), nil
	})
}

// mutate runs op against the current document. A concurrent external edit
// surfaces as ErrConflict; the operation is retried once on a fresh load.
func (s *Service) mutate(_ context.Context, id string, op func(*models.Trip) (*models.Trip, error)) (*models.Trip, error) {
	unlock := s.lock(id)
	defer unlock()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		cur, cs, err := s.load(id)
		if err != nil {
			return nil, err
		}
		next, err := op(cur)
		if err != nil {
			return nil, err
		}
		if next == cur {
			return cur, nil
		}
		out := *next
		out.UpdatedAt = s.now()
		if err := s.save(&out, cs); err != nil {
			if errors.Is(err, apperr.ErrConflict) {
				s.logger.Warn("trip changed during write; retrying", slog.String("trip_id", id))
				lastErr = err
				continue
			}
			return nil, err
		}
		s.publish(id)
		return &out, nil
	}
	return nil, lastErr
}

// load reads and decodes a trip, reusing the cached decode when the
// document checksum is unchanged.
func (s *Service) load(id string) (*models.Trip, string, error) {
	data, err := s.store.Read(id)
	if err != nil {
		return nil, "", err
	}
	cs := checksum.Sum(data)
	if c, ok := s.cache.Get(id); ok && c.checksum == cs {
		return c.trip, cs, nil
	}
	trip, err := index.DecodeDocument(id, data)
	if err != nil {
		return nil, "", err
	}
	s.cache.Add(id, cached{checksum: cs, trip: trip})
	return trip, cs, nil
}

// save writes trip if the stored document still has checksum expect ("" for
// a new trip). The index is updated before the file so the watcher sees a
// matching checksum and stays quiet.
func (s *Service) save(trip *models.Trip, expect string) error {
	data, err := json.MarshalIndent(trip, "", "  ")
	if err != nil {
		return fmt.Errorf("tripservice: encode %s: %w", trip.ID, err)
	}
	var prev []byte
	if expect != "" {
		prev, err = s.store.Read(trip.ID)
		if err != nil {
			return err
		}
		if checksum.Sum(prev) != expect {
			s.cache.Remove(trip.ID)
			return fmt.Errorf("trip %s: %w", trip.ID, apperr.ErrConflict)
		}
	}

	cs := checksum.Sum(data)
	if err := s.db.UpsertTrip(trip, cs); err != nil {
		return err
	}
	if err := s.store.Write(trip.ID, data); err != nil {
		s.restoreIndex(trip.ID, prev)
		return err
	}
	s.cache.Add(trip.ID, cached{checksum: cs, trip: trip})
	return nil
}

func (s *Service) restoreIndex(id string, prev []byte) {
	var err error
	if prev == nil {
		err = s.db.DeleteTrip(id)
	} else {
		_, err = index.IndexDocument(s.db, id, prev)
	}
	if err != nil {
		s.logger.Error("restore index after failed write", slog.String("trip_id", id), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(id string) {
	if s.notify != nil {
		s.notify.PublishUpdated(id)
	}
}

func (s *Service) lock(id string) func() {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func dayNotFound(day int) error {
	return fmt.Errorf("day %d: %w", day, apperr.ErrNotFound)
}

func requireItem(t *models.Trip, itemID string, day int) error {
	d := t.Day(day)
	if d == nil {
		return dayNotFound(day)
	}
	for _, it := range d.Items {
		if it.ID == itemID {
			return nil
		}
	}
	return fmt.Errorf("item %s in day %d: %w", itemID, day, apperr.ErrNotFound)
}
