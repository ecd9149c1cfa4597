// Package itinerary maintains a trip's day-by-day item lists.
//
// Every mutation takes a trip snapshot and returns a new one. Days that a
// mutation does not touch are carried over by pointer, so callers can detect
// changes with a pointer comparison. Touched days and their items are always
// fresh records. Invalid references (unknown day, unknown item, out of range
// index) leave the snapshot unchanged and return it as is.
package itinerary

import (
	"slices"

	"github.com/google/uuid"

	"github.com/starford/waypoint/internal/models"
)

// ProvisionalPrefix marks item ids that were assigned locally for a source
// without a persisted id. The server replaces them on confirmation.
const ProvisionalPrefix = "tmp-"

// Store applies itinerary mutations to trip snapshots. It holds no trip state.
type Store struct {
	newID       func() string
	provisional bool
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the identifier source (tests use a counter).
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		s.newID = fn
	}
}

// Authoritative makes the store issue final ids only. The server side uses it.
func Authoritative() Option {
	return func(s *Store) {
		s.provisional = false
	}
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{newID: uuid.NewString, provisional: true}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsProvisional reports whether id was assigned locally and not yet confirmed.
func IsProvisional(id string) bool {
	return len(id) > len(ProvisionalPrefix) && id[:len(ProvisionalPrefix)] == ProvisionalPrefix
}

// AddItem appends a new item built from p to the end of the given day.
func (s *Store) AddItem(t *models.Trip, p models.Place, day int) *models.Trip {
	idx := dayIndex(t, day)
	if idx < 0 {
		return t
	}
	id := s.newID()
	if p.ID == "" && s.provisional {
		id = ProvisionalPrefix + id
	}
	src := t.Days[idx]
	items := make([]*models.Item, 0, len(src.Items)+1)
	items = append(items, src.Items...)
	items = append(items, itemFromPlace(id, p))
	return replaceDays(t, map[int]*models.Day{idx: rebuildDay(src.Number, src.Label, items)})
}

// RemoveItem deletes the item from the day and closes the gap in order.
func (s *Store) RemoveItem(t *models.Trip, itemID string, day int) *models.Trip {
	idx := dayIndex(t, day)
	if idx < 0 {
		return t
	}
	src := t.Days[idx]
	pos := itemIndex(src, itemID)
	if pos < 0 {
		return t
	}
	items := slices.Delete(slices.Clone(src.Items), pos, pos+1)
	return replaceDays(t, map[int]*models.Day{idx: rebuildDay(src.Number, src.Label, items)})
}

// Reorder moves the item at index from to index to within one day.
// The item is extracted first and then inserted into the shortened list at to.
func (s *Store) Reorder(t *models.Trip, day, from, to int) *models.Trip {
	idx := dayIndex(t, day)
	if idx < 0 || from == to {
		return t
	}
	src := t.Days[idx]
	n := len(src.Items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return t
	}
	items := slices.Clone(src.Items)
	moved := items[from]
	items = slices.Delete(items, from, from+1)
	items = slices.Insert(items, to, moved)
	return replaceDays(t, map[int]*models.Day{idx: rebuildDay(src.Number, src.Label, items)})
}

// SetOrder rearranges a day to follow ids exactly. ids must be a
// permutation of the day's current item ids; anything else is a no-op.
func (s *Store) SetOrder(t *models.Trip, day int, ids []string) *models.Trip {
	idx := dayIndex(t, day)
	if idx < 0 || !IsPermutation(t.Days[idx], ids) {
		return t
	}
	src := t.Days[idx]
	if slices.Equal(src.IDs(), ids) {
		return t
	}
	byID := make(map[string]*models.Item, len(src.Items))
	for _, it := range src.Items {
		byID[it.ID] = it
	}
	items := make([]*models.Item, len(ids))
	for i, id := range ids {
		items[i] = byID[id]
	}
	return replaceDays(t, map[int]*models.Day{idx: rebuildDay(src.Number, src.Label, items)})
}

// IsPermutation reports whether ids names every item of d exactly once.
func IsPermutation(d *models.Day, ids []string) bool {
	if d == nil || len(ids) != len(d.Items) {
		return false
	}
	want := make(map[string]bool, len(d.Items))
	for _, it := range d.Items {
		want[it.ID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return true
}

// Move takes the item out of fromDay and appends it to toDay as one step.
func (s *Store) Move(t *models.Trip, itemID string, fromDay, toDay int) *models.Trip {
	if fromDay == toDay {
		return t
	}
	fi, ti := dayIndex(t, fromDay), dayIndex(t, toDay)
	if fi < 0 || ti < 0 {
		return t
	}
	src, dst := t.Days[fi], t.Days[ti]
	pos := itemIndex(src, itemID)
	if pos < 0 {
		return t
	}
	moved := src.Items[pos]
	srcItems := slices.Delete(slices.Clone(src.Items), pos, pos+1)
	dstItems := append(slices.Clone(dst.Items), moved)
	return replaceDays(t, map[int]*models.Day{
		fi: rebuildDay(src.Number, src.Label, srcItems),
		ti: rebuildDay(dst.Number, dst.Label, dstItems),
	})
}

// AddDay appends an empty day numbered one past the current maximum.
func (s *Store) AddDay(t *models.Trip) *models.Trip {
	if t == nil {
		return t
	}
	next := t.MaxDay() + 1
	out := shallowCopy(t)
	out.Days = append(slices.Clone(t.Days), &models.Day{
		Number: next,
		Label:  Label(t.StartDate, next),
		Items:  []*models.Item{},
	})
	return out
}

// RemoveDay deletes a day and its items. The last remaining day is never
// removed. With renumber set, every later day shifts down by one so that
// numbering stays contiguous.
func (s *Store) RemoveDay(t *models.Trip, day int, renumber bool) *models.Trip {
	idx := dayIndex(t, day)
	if idx < 0 || len(t.Days) <= 1 {
		return t
	}
	out := shallowCopy(t)
	out.Days = make([]*models.Day, 0, len(t.Days)-1)
	for i, d := range t.Days {
		switch {
		case i == idx:
			continue
		case renumber && d.Number > day:
			n := d.Number - 1
			out.Days = append(out.Days, rebuildDay(n, Label(t.StartDate, n), d.Items))
		default:
			out.Days = append(out.Days, d)
		}
	}
	return out
}

// DuplicateDay copies the items of src into dst with fresh identifiers,
// appending them in their original order. Missing days up to dst are created.
func (s *Store) DuplicateDay(t *models.Trip, src, dst int) *models.Trip {
	si := dayIndex(t, src)
	if si < 0 || dst < 1 || src == dst {
		return t
	}
	out := t
	for out.MaxDay() < dst {
		out = s.AddDay(out)
	}
	di := dayIndex(out, dst)
	if di < 0 {
		// dst sits inside a numbering gap left by a non-renumbering removal.
		return t
	}
	source, target := out.Days[si], out.Days[di]
	items := slices.Clone(target.Items)
	for _, it := range source.Items {
		cp := cloneItem(it)
		cp.ID = s.newID()
		items = append(items, cp)
	}
	return replaceDays(out, map[int]*models.Day{di: rebuildDay(target.Number, target.Label, items)})
}

// Normalize re-derives order, day references and labels for every day, and
// sorts days by number. It is used on documents that did not come through
// Store, such as server responses or hand-edited files. Null days and items
// are dropped.
func Normalize(t *models.Trip) *models.Trip {
	if t == nil {
		return nil
	}
	out := shallowCopy(t)
	out.Days = make([]*models.Day, 0, len(t.Days))
	for _, d := range t.Days {
		if d == nil {
			continue
		}
		items := slices.DeleteFunc(slices.Clone(d.Items), func(it *models.Item) bool { return it == nil })
		slices.SortStableFunc(items, func(a, b *models.Item) int { return a.Order - b.Order })
		out.Days = append(out.Days, rebuildDay(d.Number, Label(t.StartDate, d.Number), items))
	}
	slices.SortStableFunc(out.Days, func(a, b *models.Day) int { return a.Number - b.Number })
	return out
}

func dayIndex(t *models.Trip, day int) int {
	if t == nil {
		return -1
	}
	for i, d := range t.Days {
		if d.Number == day {
			return i
		}
	}
	return -1
}

func itemIndex(d *models.Day, itemID string) int {
	for i, it := range d.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}

// rebuildDay returns a new day holding fresh copies of items with dense
// order and the day reference set to number.
func rebuildDay(number int, label string, items []*models.Item) *models.Day {
	out := &models.Day{Number: number, Label: label, Items: make([]*models.Item, len(items))}
	for i, it := range items {
		cp := cloneItem(it)
		cp.Order = i
		cp.Day = number
		out.Items[i] = cp
	}
	return out
}

func replaceDays(t *models.Trip, repl map[int]*models.Day) *models.Trip {
	out := shallowCopy(t)
	out.Days = slices.Clone(t.Days)
	for i, d := range repl {
		out.Days[i] = d
	}
	return out
}

func shallowCopy(t *models.Trip) *models.Trip {
	cp := *t
	return &cp
}

func cloneItem(it *models.Item) *models.Item {
	cp := *it
	if it.Geo != nil {
		g := *it.Geo
		cp.Geo = &g
	}
	if it.Cost != nil {
		c := *it.Cost
		cp.Cost = &c
	}
	return &cp
}

func itemFromPlace(id string, p models.Place) *models.Item {
	it := &models.Item{
		ID:        id,
		Name:      p.Name,
		Location:  p.Location,
		Category:  p.Category,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Notes:     p.Notes,
	}
	if p.Geo != nil {
		g := *p.Geo
		it.Geo = &g
	}
	if p.Cost != nil {
		c := *p.Cost
		it.Cost = &c
	}
	return it
}
