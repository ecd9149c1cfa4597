package itinerary

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/waypoint/internal/models"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func testStore() *Store {
	return New(WithIDGenerator(counterIDs()))
}

func item(id string, day, order int) *models.Item {
	return &models.Item{ID: id, Name: "Place " + id, Day: day, Order: order}
}

// testTrip builds a trip where days[i] lists the item ids of day i+1.
func testTrip(days ...[]string) *models.Trip {
	t := &models.Trip{ID: "trip-1", Title: "Test"}
	for i, ids := range days {
		d := &models.Day{Number: i + 1, Label: Label("", i+1), Items: []*models.Item{}}
		for j, id := range ids {
			d.Items = append(d.Items, item(id, i+1, j))
		}
		t.Days = append(t.Days, d)
	}
	return t
}

func ids(d *models.Day) []string { return d.IDs() }

func orders(d *models.Day) []int {
	out := make([]int, len(d.Items))
	for i, it := range d.Items {
		out[i] = it.Order
	}
	return out
}

func TestAddItem_AppendsWithNextOrder(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"a", "b"})
	lat := 48.85
	out := s.AddItem(trip, models.Place{ID: "p1", Name: "Louvre", Geo: &models.GeoPoint{Lat: lat, Lng: 2.33}}, 1)

	d := out.Day(1)
	require.Len(t, d.Items, 3)
	added := d.Items[2]
	assert.Equal(t, "id-1", added.ID)
	assert.Equal(t, "Louvre", added.Name)
	assert.Equal(t, 2, added.Order)
	assert.Equal(t, 1, added.Day)
	assert.Equal(t, lat, added.Geo.Lat)
	assert.Len(t, trip.Day(1).Items, 2, "input snapshot must not change")
}

func TestAddItem_ProvisionalIDWithoutSourceID(t *testing.T) {
	s := testStore()
	out := s.AddItem(testTrip(nil), models.Place{Name: "Café"}, 1)
	id := out.Day(1).Items[0].ID
	assert.Equal(t, "tmp-id-1", id)
	assert.True(t, IsProvisional(id))
}

func TestAddItem_UnknownDayIsNoOp(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"a"})
	assert.Same(t, trip, s.AddItem(trip, models.Place{Name: "x"}, 7))
}

func TestRemoveItem_ClosesGap(t *testing.T) {
	s := testStore()
	out := s.RemoveItem(testTrip([]string{"a", "b", "c"}), "b", 1)
	assert.Equal(t, []string{"a", "c"}, ids(out.Day(1)))
	assert.Equal(t, []int{0, 1}, orders(out.Day(1)))
}

func TestRemoveItem_MissingIsNoOp(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"a"})
	assert.Same(t, trip, s.RemoveItem(trip, "zzz", 1))
	assert.Same(t, trip, s.RemoveItem(trip, "a", 2))
}

func TestReorder_MoveFirstToEnd(t *testing.T) {
	s := testStore()
	out := s.Reorder(testTrip([]string{"A", "B", "C"}), 1, 0, 2)
	assert.Equal(t, []string{"B", "C", "A"}, ids(out.Day(1)))
	assert.Equal(t, []int{0, 1, 2}, orders(out.Day(1)))
}

func TestReorder_MoveLastToFront(t *testing.T) {
	s := testStore()
	out := s.Reorder(testTrip([]string{"A", "B", "C", "D"}), 1, 3, 1)
	assert.Equal(t, []string{"A", "D", "B", "C"}, ids(out.Day(1)))
}

func TestReorder_NoOpCases(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A", "B"}, []string{"C"})
	for _, tc := range []struct {
		name          string
		day, from, to int
	}{
		{"same index", 1, 1, 1},
		{"from out of range", 1, 5, 0},
		{"to out of range", 1, 0, 2},
		{"negative", 1, -1, 0},
		{"unknown day", 9, 0, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := s.Reorder(trip, tc.day, tc.from, tc.to)
			require.Same(t, trip, out)
			for i := range trip.Days {
				assert.Same(t, trip.Days[i], out.Days[i])
				for j := range trip.Days[i].Items {
					assert.Same(t, trip.Days[i].Items[j], out.Days[i].Items[j])
				}
			}
		})
	}
}

func TestReorder_UntouchedDaysKeepIdentity(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A", "B"}, []string{"C"})
	out := s.Reorder(trip, 1, 0, 1)
	assert.NotSame(t, trip.Days[0], out.Days[0])
	assert.Same(t, trip.Days[1], out.Days[1])
}

func TestMove_AppendsToDestination(t *testing.T) {
	s := testStore()
	out := s.Move(testTrip([]string{"A", "B"}, nil), "B", 1, 2)
	assert.Equal(t, []string{"A"}, ids(out.Day(1)))
	assert.Equal(t, []int{0}, orders(out.Day(1)))
	require.Equal(t, []string{"B"}, ids(out.Day(2)))
	assert.Equal(t, 0, out.Day(2).Items[0].Order)
	assert.Equal(t, 2, out.Day(2).Items[0].Day)
}

func TestMove_BackAndForthUsesAppendPosition(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A", "B", "C"}, []string{"D"})
	out := s.Move(trip, "A", 1, 2)
	out = s.Move(out, "A", 2, 1)

	d1 := out.Day(1)
	assert.Equal(t, []string{"B", "C", "A"}, ids(d1))
	_, holder := out.Find("A")
	require.NotNil(t, holder)
	assert.Equal(t, 1, holder.Number)
	it, _ := out.Find("A")
	assert.Equal(t, len(d1.Items)-1, it.Order)
}

func TestMove_NoOpCases(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A"}, []string{"B"})
	assert.Same(t, trip, s.Move(trip, "A", 1, 1))
	assert.Same(t, trip, s.Move(trip, "B", 1, 2))
	assert.Same(t, trip, s.Move(trip, "A", 1, 5))
	assert.Same(t, trip, s.Move(trip, "A", 5, 1))
}

func TestMove_PreservesIdentity(t *testing.T) {
	s := testStore()
	out := s.Move(testTrip([]string{"A"}, []string{"B"}), "A", 1, 2)
	it, d := out.Find("A")
	require.NotNil(t, it)
	assert.Equal(t, 2, d.Number)
	assert.Equal(t, "Place A", it.Name)
}

func TestAddDay_NextNumber(t *testing.T) {
	s := testStore()
	out := s.AddDay(testTrip(nil, nil, nil))
	require.Len(t, out.Days, 4)
	assert.Equal(t, 4, out.Days[3].Number)
	assert.Empty(t, out.Days[3].Items)
	assert.Equal(t, "Day 4", out.Days[3].Label)
}

func TestAddDay_LabelFromStartDate(t *testing.T) {
	s := testStore()
	trip := testTrip(nil)
	trip.StartDate = "2026-03-30"
	out := s.AddDay(s.AddDay(trip))
	assert.Equal(t, "Wed, Apr 1", out.Days[2].Label)
}

func TestRemoveDay_Renumbers(t *testing.T) {
	s := testStore()
	out := s.RemoveDay(testTrip([]string{"A"}, []string{"B"}, []string{"C", "D"}), 2, true)
	require.Len(t, out.Days, 2)
	assert.Equal(t, 1, out.Days[0].Number)
	assert.Equal(t, 2, out.Days[1].Number)
	assert.Equal(t, []string{"C", "D"}, ids(out.Days[1]))
	for _, it := range out.Days[1].Items {
		assert.Equal(t, 2, it.Day)
	}
	_, gone := out.Find("B")
	assert.Nil(t, gone)
	require.NoError(t, Check(out))
}

func TestRemoveDay_WithoutRenumberLeavesGap(t *testing.T) {
	s := testStore()
	out := s.RemoveDay(testTrip(nil, nil, []string{"C"}), 2, false)
	require.Len(t, out.Days, 2)
	assert.Equal(t, 3, out.Days[1].Number)
	assert.Equal(t, 4, s.AddDay(out).Days[2].Number)
}

func TestRemoveDay_LastDayForbidden(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A"})
	assert.Same(t, trip, s.RemoveDay(trip, 1, true))
}

func TestDuplicateDay_IntoNewDay(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A", "B"})
	trip.Days[0].Items[0].Geo = &models.GeoPoint{Lat: 35.68, Lng: 139.76}
	trip.Days[0].Items[0].Notes = "early"

	out := s.DuplicateDay(trip, 1, 2)
	require.Len(t, out.Days, 2)
	d2 := out.Day(2)
	require.Len(t, d2.Items, 2)
	a, b := d2.Items[0], d2.Items[1]
	assert.NotEqual(t, "A", a.ID)
	assert.NotEqual(t, "B", b.ID)
	assert.Equal(t, "Place A", a.Name)
	assert.Equal(t, 35.68, a.Geo.Lat)
	assert.Equal(t, "early", a.Notes)
	assert.Equal(t, []int{0, 1}, orders(d2))
	assert.NotSame(t, trip.Days[0].Items[0].Geo, a.Geo)
	require.NoError(t, Check(out))
}

func TestDuplicateDay_AppendsToExistingDay(t *testing.T) {
	s := testStore()
	out := s.DuplicateDay(testTrip([]string{"A"}, []string{"X"}), 1, 2)
	assert.Equal(t, []string{"X", "id-1"}, ids(out.Day(2)))
}

func TestDuplicateDay_CreatesIntermediateDays(t *testing.T) {
	s := testStore()
	out := s.DuplicateDay(testTrip([]string{"A"}), 1, 3)
	require.Len(t, out.Days, 3)
	assert.Empty(t, out.Day(2).Items)
	assert.Len(t, out.Day(3).Items, 1)
}

func TestDuplicateDay_UnknownSourceIsNoOp(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A"})
	assert.Same(t, trip, s.DuplicateDay(trip, 4, 2))
	assert.Same(t, trip, s.DuplicateDay(trip, 1, 1))
}

func TestNormalize_RederivesOrder(t *testing.T) {
	trip := &models.Trip{Days: []*models.Day{
		{Number: 2, Items: []*models.Item{{ID: "y", Order: 7}}},
		{Number: 1, Items: []*models.Item{{ID: "b", Order: 5}, {ID: "a", Order: 1}}},
	}}
	out := Normalize(trip)
	assert.Equal(t, []string{"a", "b"}, ids(out.Days[0]))
	assert.Equal(t, []int{0, 1}, orders(out.Days[0]))
	assert.Equal(t, 2, out.Days[1].Items[0].Day)
	require.NoError(t, Check(out))
}

func TestNormalize_DropsNullEntries(t *testing.T) {
	trip := &models.Trip{Days: []*models.Day{
		nil,
		{Number: 1, Items: []*models.Item{nil, {ID: "a"}, nil}},
	}}
	out := Normalize(trip)
	require.Len(t, out.Days, 1)
	assert.Equal(t, []string{"a"}, ids(out.Days[0]))
	require.NoError(t, Check(out))
}

// TestRandomSequences drives random mutations and checks the invariants after each.
func TestRandomSequences(t *testing.T) {
	s := testStore()
	rng := rand.New(rand.NewSource(42))
	trip := testTrip([]string{"a", "b", "c"}, []string{"d"}, nil)

	for step := 0; step < 500; step++ {
		day := rng.Intn(trip.MaxDay()+1) + 1
		switch rng.Intn(6) {
		case 0:
			trip = s.AddItem(trip, models.Place{ID: "p", Name: "n"}, day)
		case 1:
			if d := trip.Day(day); d != nil && len(d.Items) > 0 {
				trip = s.RemoveItem(trip, d.Items[rng.Intn(len(d.Items))].ID, day)
			}
		case 2:
			if d := trip.Day(day); d != nil && len(d.Items) > 0 {
				trip = s.Reorder(trip, day, rng.Intn(len(d.Items)), rng.Intn(len(d.Items)))
			}
		case 3:
			if d := trip.Day(day); d != nil && len(d.Items) > 0 {
				to := rng.Intn(trip.MaxDay()) + 1
				trip = s.Move(trip, d.Items[rng.Intn(len(d.Items))].ID, day, to)
			}
		case 4:
			if rng.Intn(2) == 0 {
				trip = s.AddDay(trip)
			} else {
				trip = s.RemoveDay(trip, day, true)
			}
		case 5:
			trip = s.DuplicateDay(trip, day, rng.Intn(trip.MaxDay()+1)+1)
		}
		require.NoError(t, Check(trip), "step %d", step)
	}
}

func TestSetOrder(t *testing.T) {
	s := testStore()
	trip := testTrip([]string{"A", "B", "C"})

	out := s.SetOrder(trip, 1, []string{"C", "A", "B"})
	assert.Equal(t, []string{"C", "A", "B"}, ids(out.Day(1)))
	assert.Equal(t, []int{0, 1, 2}, orders(out.Day(1)))

	assert.Same(t, trip, s.SetOrder(trip, 1, []string{"A", "B", "C"}), "unchanged order")
	assert.Same(t, trip, s.SetOrder(trip, 1, []string{"A", "B"}), "missing id")
	assert.Same(t, trip, s.SetOrder(trip, 1, []string{"A", "B", "B"}), "duplicate id")
	assert.Same(t, trip, s.SetOrder(trip, 1, []string{"A", "B", "X"}), "foreign id")
	assert.Same(t, trip, s.SetOrder(trip, 2, []string{}), "unknown day")
}

func TestAddItem_AuthoritativeNeverProvisional(t *testing.T) {
	s := New(Authoritative(), WithIDGenerator(counterIDs()))
	out := s.AddItem(testTrip(nil), models.Place{Name: "Café"}, 1)
	assert.Equal(t, "id-1", out.Day(1).Items[0].ID)
}
