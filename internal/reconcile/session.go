// Package reconcile keeps an open trip's local snapshot in step with the
// persistence API.
//
// Every mutation is applied to the local snapshot first and then sent to the
// server. Operations where the server assigns identifiers (add, delete,
// duplicate, day changes, moves) block until the server answers and replace
// the snapshot with the server's trip. Reorders are sent in the background
// and never reported to the caller.
package reconcile

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/itinerary"
	"github.com/starford/waypoint/internal/models"
)

// Persistence is the remote itinerary API.
type Persistence interface {
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	AddItem(ctx context.Context, tripID string, day int, p models.Place) (*models.Trip, error)
	ReorderDay(ctx context.Context, tripID string, day int, itemIDs []string) error
	MoveItem(ctx context.Context, tripID, itemID string, fromDay, toDay int) (*models.Trip, error)
	DeleteItem(ctx context.Context, tripID, itemID string) (*models.Trip, error)
	AddDay(ctx context.Context, tripID string) (*models.Trip, error)
	DeleteDay(ctx context.Context, tripID string, day int, renumber bool) (*models.Trip, error)
	DuplicateDay(ctx context.Context, tripID string, sourceDay, destDay int) (*models.Trip, error)
}

// Reorder failure policies.
const (
	// ReorderIgnore drops reorder failures after logging them.
	ReorderIgnore = "ignore"
	// ReorderRefetch reloads the trip from the server after a reorder failure.
	ReorderRefetch = "refetch"
)

// Failure policies for awaited mutations.
const (
	// FailureKeep leaves the optimistic snapshot in place.
	FailureKeep = "keep"
	// FailureRollback restores the last confirmed snapshot, or refetches when
	// later mutations have been applied on top of the failed one.
	FailureRollback = "rollback"
)

// Listener receives every snapshot the session publishes.
type Listener func(*models.Trip)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStore sets the itinerary store used for optimistic mutations.
func WithStore(st *itinerary.Store) Option {
	return func(s *Session) { s.store = st }
}

// WithReorderPolicy sets what happens after a failed reorder.
func WithReorderPolicy(p string) Option {
	return func(s *Session) { s.reorderPolicy = p }
}

// WithFailurePolicy sets what happens to the local snapshot after a failed awaited mutation.
func WithFailurePolicy(p string) Option {
	return func(s *Session) { s.failurePolicy = p }
}

// Session owns the snapshot of the trip that is currently being viewed.
type Session struct {
	api           Persistence
	store         *itinerary.Store
	logger        *slog.Logger
	reorderPolicy string
	failurePolicy string

	mu        sync.Mutex
	tripID    string
	current   *models.Trip
	confirmed *models.Trip
	gen       uint64 // bumped whenever the viewed trip changes
	seq       uint64 // bumped on every applied local mutation
	pending   map[string]mutation
	listeners []Listener

	bg sync.WaitGroup
}

type mutation struct {
	id  string
	op  string
	gen uint64
	seq uint64

	// Set for reorders: the day and the id order sent to the server.
	day int
	ids []string
}

// NewSession creates a session that persists through api.
func NewSession(api Persistence, opts ...Option) *Session {
	s := &Session{
		api:           api,
		store:         itinerary.New(),
		logger:        slog.Default(),
		reorderPolicy: ReorderRefetch,
		failurePolicy: FailureRollback,
		pending:       make(map[string]mutation),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every published snapshot.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Open loads tripID from the server and makes it the viewed trip.
func (s *Session) Open(ctx context.Context, tripID string) (*models.Trip, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.tripID = tripID
	s.current, s.confirmed = nil, nil
	s.mu.Unlock()

	trip, err := s.api.GetTrip(ctx, tripID)
	if err != nil {
		return nil, apperr.NewFailure("load the trip", err)
	}
	return s.replace(gen, trip)
}

// Close detaches the session from its trip. Responses that arrive later are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	s.tripID = ""
	s.current, s.confirmed = nil, nil
	s.pending = make(map[string]mutation)
	s.mu.Unlock()
}

// Wait blocks until background reorder persistence has finished.
func (s *Session) Wait() {
	s.bg.Wait()
}

// TripID returns the id of the viewed trip, or "" when closed.
func (s *Session) TripID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tripID
}

// Snapshot returns the current local snapshot.
func (s *Session) Snapshot() *models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Confirmed returns the last snapshot the server confirmed.
func (s *Session) Confirmed() *models.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmed
}

// Pending returns the number of mutations awaiting a server answer.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Refetch reloads the viewed trip and replaces the local snapshot wholesale.
func (s *Session) Refetch(ctx context.Context) error {
	s.mu.Lock()
	tripID, gen := s.tripID, s.gen
	s.mu.Unlock()
	if tripID == "" {
		return nil
	}
	trip, err := s.api.GetTrip(ctx, tripID)
	if err != nil {
		return apperr.NewFailure("reload the trip", err)
	}
	_, err = s.replace(gen, trip)
	return err
}

// AddItem appends a place to a day and waits for the server's ids.
func (s *Session) AddItem(ctx context.Context, p models.Place, day int) (*models.Trip, error) {
	return s.commit(ctx, "add the place",
		func(t *models.Trip) *models.Trip { return s.store.AddItem(t, p, day) },
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.AddItem(ctx, tripID, day, p)
		})
}

// RemoveItem deletes an item from a day.
func (s *Session) RemoveItem(ctx context.Context, itemID string, day int) (*models.Trip, error) {
	return s.commit(ctx, "remove the place",
		func(t *models.Trip) *models.Trip { return s.store.RemoveItem(t, itemID, day) },
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.DeleteItem(ctx, tripID, itemID)
		})
}

// MoveItem moves an item to the end of another day.
func (s *Session) MoveItem(ctx context.Context, itemID string, fromDay, toDay int) (*models.Trip, error) {
	return s.commit(ctx, "move the place",
		func(t *models.Trip) *models.Trip { return s.store.Move(t, itemID, fromDay, toDay) },
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.MoveItem(ctx, tripID, itemID, fromDay, toDay)
		})
}

// AddDay appends an empty day.
func (s *Session) AddDay(ctx context.Context) (*models.Trip, error) {
	return s.commit(ctx, "add a day",
		s.store.AddDay,
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.AddDay(ctx, tripID)
		})
}

// RemoveDay deletes a day. The last day is kept.
func (s *Session) RemoveDay(ctx context.Context, day int, renumber bool) (*models.Trip, error) {
	return s.commit(ctx, "remove the day",
		func(t *models.Trip) *models.Trip { return s.store.RemoveDay(t, day, renumber) },
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.DeleteDay(ctx, tripID, day, renumber)
		})
}

// DuplicateDay copies a day's items into another day.
func (s *Session) DuplicateDay(ctx context.Context, sourceDay, destDay int) (*models.Trip, error) {
	return s.commit(ctx, "duplicate the day",
		func(t *models.Trip) *models.Trip { return s.store.DuplicateDay(t, sourceDay, destDay) },
		func(ctx context.Context, tripID string) (*models.Trip, error) {
			return s.api.DuplicateDay(ctx, tripID, sourceDay, destDay)
		})
}

// Reorder moves an item within a day. The new order is sent in the
// background; failures are logged and handled by the reorder policy but
// never returned.
func (s *Session) Reorder(ctx context.Context, day, from, to int) *models.Trip {
	m, next, ok := s.apply("reorder the day", day, func(t *models.Trip) *models.Trip {
		return s.store.Reorder(t, day, from, to)
	})
	if !ok {
		return next
	}
	ids := m.ids
	tripID := next.ID

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		err := s.api.ReorderDay(context.WithoutCancel(ctx), tripID, day, ids)
		s.finishReorder(ctx, m, day, ids, err)
	}()
	return next
}

func (s *Session) finishReorder(ctx context.Context, m mutation, day int, ids []string, err error) {
	s.mu.Lock()
	delete(s.pending, m.id)
	stale := m.gen != s.gen
	if err == nil && !stale {
		s.confirmed = s.store.SetOrder(s.confirmed, day, ids)
	}
	s.mu.Unlock()

	if err == nil || stale {
		return
	}
	s.logger.Warn("reorder not persisted",
		slog.String("correlation_id", m.id),
		slog.Int("day", day),
		slog.String("policy", s.reorderPolicy),
		slog.String("error", err.Error()))
	if s.reorderPolicy == ReorderRefetch {
		if rerr := s.Refetch(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("refetch after reorder failure", slog.String("error", rerr.Error()))
		}
	}
}

// apply runs a local mutation and publishes the result. ok is false when the
// mutation changed nothing and must not be sent. reorderDay is the day a
// reorder rearranges, 0 for every other mutation.
func (s *Session) apply(op string, reorderDay int, fn func(*models.Trip) *models.Trip) (mutation, *models.Trip, bool) {
	s.mu.Lock()
	prev := s.current
	if prev == nil {
		s.mu.Unlock()
		return mutation{}, nil, false
	}
	next := fn(prev)
	if next == prev {
		s.mu.Unlock()
		return mutation{}, prev, false
	}
	s.seq++
	m := mutation{id: uuid.NewString(), op: op, gen: s.gen, seq: s.seq}
	if reorderDay > 0 {
		m.day, m.ids = reorderDay, next.Day(reorderDay).IDs()
	}
	s.pending[m.id] = m
	s.current = next
	listeners := s.listeners
	s.mu.Unlock()

	s.logger.Debug("optimistic update", slog.String("op", op), slog.String("correlation_id", m.id))
	for _, fn := range listeners {
		fn(next)
	}
	return m, next, true
}

func (s *Session) commit(ctx context.Context, op string, local func(*models.Trip) *models.Trip,
	remote func(context.Context, string) (*models.Trip, error)) (*models.Trip, error) {
	m, next, ok := s.apply(op, 0, local)
	if !ok {
		return next, nil
	}

	trip, err := remote(ctx, next.ID)
	if err != nil {
		return s.fail(ctx, m, err)
	}
	return s.confirm(m, trip)
}

// confirm installs a server answer. The local snapshot is replaced only when
// no later mutation was applied in the meantime; the later one will confirm
// on its own.
func (s *Session) confirm(m mutation, trip *models.Trip) (*models.Trip, error) {
	trip = itinerary.Normalize(trip)

	s.mu.Lock()
	delete(s.pending, m.id)
	if m.gen != s.gen {
		s.mu.Unlock()
		return nil, apperr.ErrStaleSession
	}
	s.confirmed = trip
	if m.seq != s.seq {
		cur := s.current
		s.mu.Unlock()
		return cur, nil
	}
	cur := s.withPendingReorders(trip)
	s.current = cur
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cur)
	}
	return cur, nil
}

func (s *Session) fail(ctx context.Context, m mutation, err error) (*models.Trip, error) {
	failure := apperr.NewFailure(m.op, err)
	s.logger.Warn("mutation not persisted",
		slog.String("op", m.op),
		slog.String("correlation_id", m.id),
		slog.String("policy", s.failurePolicy),
		slog.String("error", err.Error()))

	s.mu.Lock()
	delete(s.pending, m.id)
	if m.gen != s.gen {
		s.mu.Unlock()
		return nil, apperr.ErrStaleSession
	}
	if s.failurePolicy != FailureRollback {
		cur := s.current
		s.mu.Unlock()
		return cur, failure
	}
	if m.seq == s.seq && s.confirmed != nil {
		s.current = s.withPendingReorders(s.confirmed)
		cur := s.current
		listeners := s.listeners
		s.mu.Unlock()
		for _, fn := range listeners {
			fn(cur)
		}
		return cur, failure
	}
	s.mu.Unlock()

	if rerr := s.Refetch(context.WithoutCancel(ctx)); rerr != nil {
		s.logger.Warn("refetch after failure", slog.String("error", rerr.Error()))
	}
	return s.Snapshot(), failure
}

func (s *Session) replace(gen uint64, trip *models.Trip) (*models.Trip, error) {
	if trip == nil {
		return nil, apperr.NewFailure("load the trip", errors.New("empty response"))
	}
	trip = itinerary.Normalize(trip)

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil, apperr.ErrStaleSession
	}
	s.confirmed = trip
	s.current = s.withPendingReorders(trip)
	cur := s.current
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(cur)
	}
	return cur, nil
}

// withPendingReorders lays the reorders still in flight over a server
// snapshot, oldest first. Callers hold s.mu.
func (s *Session) withPendingReorders(trip *models.Trip) *models.Trip {
	if trip == nil {
		return nil
	}
	var reorders []mutation
	for _, m := range s.pending {
		if m.ids != nil && m.gen == s.gen {
			reorders = append(reorders, m)
		}
	}
	slices.SortFunc(reorders, func(a, b mutation) int { return cmp.Compare(a.seq, b.seq) })
	for _, m := range reorders {
		trip = s.store.SetOrder(trip, m.day, mergeOrder(trip.Day(m.day), m.ids))
	}
	return trip
}

// mergeOrder returns the day's ids with the ones named in ids rearranged to
// follow ids. Items the day gained keep their slots and items it lost are
// skipped, so the result is always a permutation of the day.
func mergeOrder(d *models.Day, ids []string) []string {
	if d == nil {
		return nil
	}
	cur := d.IDs()
	present := make(map[string]bool, len(cur))
	for _, id := range cur {
		present[id] = true
	}
	wanted := make([]string, 0, len(ids))
	inOrder := make(map[string]bool, len(ids))
	for _, id := range ids {
		if present[id] && !inOrder[id] {
			wanted = append(wanted, id)
			inOrder[id] = true
		}
	}
	out := make([]string, len(cur))
	next := 0
	for i, id := range cur {
		if inOrder[id] {
			out[i] = wanted[next]
			next++
			continue
		}
		out[i] = id
	}
	return out
}
