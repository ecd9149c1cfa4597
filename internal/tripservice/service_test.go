package tripservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/index"
	"github.com/starford/waypoint/internal/itinerary"
	"github.com/starford/waypoint/internal/models"
	"github.com/starford/waypoint/internal/storage"
	"github.com/starford/waypoint/internal/testutil"
	"github.com/starford/waypoint/internal/tripservice"
)

func counterIDs() tripservice.Option {
	n := 0
	return tripservice.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})
}

func newTrip(t *testing.T, svc *tripservice.Service, days int) *models.Trip {
	t.Helper()
	trip, err := svc.CreateTrip(context.Background(), tripservice.CreateTripInput{
		ID: "lisbon", Title: " Lisbon ", StartDate: "2026-05-01", Days: days,
	})
	require.NoError(t, err)
	return trip
}

func TestCreateTrip(t *testing.T) {
	svc, store, db, n := testutil.TestService(t, counterIDs())
	trip := newTrip(t, svc, 3)

	assert.Equal(t, "Lisbon", trip.Title)
	require.Len(t, trip.Days, 3)
	assert.Equal(t, "Fri, May 1", trip.Days[0].Label)
	assert.Equal(t, []string{"lisbon"}, n.IDs())

	_, err := store.Read("lisbon")
	require.NoError(t, err)
	s, err := db.GetSummary("lisbon")
	require.NoError(t, err)
	assert.Equal(t, 3, s.DayCount)

	_, err = svc.CreateTrip(context.Background(), tripservice.CreateTripInput{ID: "lisbon", Title: "again"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = svc.CreateTrip(context.Background(), tripservice.CreateTripInput{ID: "../x", Title: "bad"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	generated, err := svc.CreateTrip(context.Background(), tripservice.CreateTripInput{Title: "Porto"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", generated.ID)
	assert.Len(t, generated.Days, 1, "defaults to one day")
}

func TestGetTrip_NotFound(t *testing.T) {
	svc, _, _, _ := testutil.TestService(t)
	_, _, err := svc.GetTrip(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestItemLifecycle(t *testing.T) {
	svc, _, db, n := testutil.TestService(t, counterIDs())
	newTrip(t, svc, 2)
	ctx := context.Background()

	trip, err := svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "Belém", Location: "Belém"})
	require.NoError(t, err)
	trip, err = svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "Alfama"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id-1", "id-2"}, trip.Day(1).IDs())
	assert.False(t, itinerary.IsProvisional(trip.Day(1).Items[1].ID))

	trip, err = svc.ReorderDay(ctx, "lisbon", 1, []string{"id-2", "id-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2", "id-1"}, trip.Day(1).IDs())

	trip, err = svc.MoveItem(ctx, "lisbon", "id-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-2"}, trip.Day(1).IDs())
	assert.Equal(t, []string{"id-1"}, trip.Day(2).IDs())
	assert.Equal(t, 2, trip.Day(2).Items[0].Day)

	trip, err = svc.DeleteItem(ctx, "lisbon", "id-2")
	require.NoError(t, err)
	assert.Empty(t, trip.Day(1).Items)
	require.NoError(t, itinerary.Check(trip))

	stored, _, err := svc.GetTrip(ctx, "lisbon")
	require.NoError(t, err)
	assert.Equal(t, trip.Day(2).IDs(), stored.Day(2).IDs())

	s, err := db.GetSummary("lisbon")
	require.NoError(t, err)
	assert.Equal(t, 1, s.ItemCount)
	assert.Len(t, n.IDs(), 6, "create + five mutations")
}

func TestValidationErrors(t *testing.T) {
	svc, _, _, _ := testutil.TestService(t, counterIDs())
	newTrip(t, svc, 2)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "a"})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, "lisbon", 9, models.Place{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.ReorderDay(ctx, "lisbon", 1, []string{"id-1", "ghost"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.MoveItem(ctx, "lisbon", "id-1", 2, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.MoveItem(ctx, "lisbon", "id-1", 1, 7)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.DeleteItem(ctx, "lisbon", "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.DuplicateDay(ctx, "lisbon", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.AddItem(ctx, "nope", 1, models.Place{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNoOpIsNotWrittenOrAnnounced(t *testing.T) {
	svc, _, _, n := testutil.TestService(t, counterIDs())
	newTrip(t, svc, 2)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "a"})
	require.NoError(t, err)
	before := len(n.IDs())

	_, err = svc.ReorderDay(ctx, "lisbon", 1, []string{"id-1"})
	require.NoError(t, err)
	_, err = svc.MoveItem(ctx, "lisbon", "id-1", 1, 1)
	require.NoError(t, err)
	assert.Len(t, n.IDs(), before)
}

func TestDayOperations(t *testing.T) {
	svc, _, _, _ := testutil.TestService(t, counterIDs())
	newTrip(t, svc, 1)
	ctx := context.Background()

	_, err := svc.DeleteDay(ctx, "lisbon", 1, true)
	assert.ErrorIs(t, err, apperr.ErrLastDay)

	trip, err := svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "a"})
	require.NoError(t, err)
	trip, err = svc.AddDay(ctx, "lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Sat, May 2", trip.Day(2).Label)

	trip, err = svc.DuplicateDay(ctx, "lisbon", 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, trip.MaxDay())
	require.Len(t, trip.Day(4).Items, 1)
	assert.NotEqual(t, "id-1", trip.Day(4).Items[0].ID)

	trip, err = svc.DeleteDay(ctx, "lisbon", 2, true)
	require.NoError(t, err)
	assert.Equal(t, 3, trip.MaxDay())
	assert.Len(t, trip.Day(3).Items, 1)
	assert.Equal(t, "Sun, May 3", trip.Day(3).Label)
	require.NoError(t, itinerary.Check(trip))

	_, err = svc.DeleteDay(ctx, "lisbon", 9, true)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

// racingStore changes the document behind the service's back on a chosen read.
type racingStore struct {
	storage.Provider
	reads  int
	raceOn int
	mutate func()
}

func (r *racingStore) Read(id string) ([]byte, error) {
	r.reads++
	if r.reads == r.raceOn && r.mutate != nil {
		r.mutate()
	}
	return r.Provider.Read(id)
}

func TestExternalEditConflictIsRetried(t *testing.T) {
	_, fs := testutil.TestData(t)
	db := testutil.TestDB(t)
	rs := &racingStore{Provider: fs}
	svc := tripservice.NewService(rs, db, counterIDs())
	newTrip(t, svc, 1)

	// Reads: 1 = load, 2 = pre-write check. An external editor renames the trip in between.
	rs.reads, rs.raceOn = 0, 2
	rs.mutate = func() {
		data, err := fs.Read("lisbon")
		require.NoError(t, err)
		trip, err := index.DecodeDocument("lisbon", data)
		require.NoError(t, err)
		trip.Title = "Lisbon (edited)"
		require.NoError(t, fs.Write("lisbon", mustJSON(t, trip)))
	}

	trip, err := svc.AddItem(context.Background(), "lisbon", 1, models.Place{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon (edited)", trip.Title, "retry applied on top of the external edit")
	assert.Len(t, trip.Day(1).Items, 1)
}

func TestPersistentConflictSurfaces(t *testing.T) {
	_, fs := testutil.TestData(t)
	db := testutil.TestDB(t)
	svc := tripservice.NewService(fs, db, counterIDs())
	newTrip(t, svc, 1)

	edits := 0
	ar := &alwaysRacing{Provider: fs, hook: func() {
		edits++
		require.NoError(t, fs.Write("lisbon", []byte(fmt.Sprintf(`{"title":"edit %d","days":[{"day":1,"items":[]}]}`, edits))))
	}}
	svc = tripservice.NewService(ar, db, counterIDs())

	_, err := svc.AddItem(context.Background(), "lisbon", 1, models.Place{Name: "a"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 2, edits, "one retry only")
}

// alwaysRacing edits the document before every pre-write check.
type alwaysRacing struct {
	storage.Provider
	reads int
	hook  func()
}

func (a *alwaysRacing) Read(id string) ([]byte, error) {
	a.reads++
	if a.reads%2 == 0 {
		a.hook()
	}
	return a.Provider.Read(id)
}

func mustJSON(t *testing.T, trip *models.Trip) []byte {
	t.Helper()
	data, err := json.Marshal(trip)
	require.NoError(t, err)
	return data
}

func TestListAndSearch(t *testing.T) {
	svc, _, _, _ := testutil.TestService(t, counterIDs())
	newTrip(t, svc, 1)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "lisbon", 1, models.Place{Name: "Jerónimos Monastery", Location: "Belém"})
	require.NoError(t, err)

	list, total, err := svc.ListTrips(ctx, 10, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, list[0].ItemCount)

	hits, err := svc.Search(ctx, "Belém", 10)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "lisbon", hits[0].TripID)
}

func TestDeleteTrip(t *testing.T) {
	svc, _, db, _ := testutil.TestService(t)
	newTrip(t, svc, 1)
	require.NoError(t, svc.DeleteTrip(context.Background(), "lisbon"))
	_, _, err := svc.GetTrip(context.Background(), "lisbon")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	cs, _ := db.GetChecksum("lisbon")
	assert.Empty(t, cs)
	assert.ErrorIs(t, svc.DeleteTrip(context.Background(), "lisbon"), apperr.ErrNotFound)
}
