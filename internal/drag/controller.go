// Package drag turns drag-and-drop gestures into itinerary mutations.
//
// A gesture starts on an item, may hover over any number of targets, and
// ends with a drop or a cancel. Only the drop issues a mutation, and it
// issues at most one.
package drag

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/starford/waypoint/internal/models"
)

// ErrBusy is returned when a gesture starts while another is in progress.
var ErrBusy = errors.New("drag: a gesture is already in progress")

// ErrNotItem is returned when a gesture starts on something other than an item.
var ErrNotItem = errors.New("drag: gestures start on an item")

// Kind discriminates drag contexts.
type Kind int

const (
	// KindItem is an item card at a position within a day.
	KindItem Kind = iota + 1
	// KindDay is a day container, used as a drop zone for empty days.
	KindDay
)

// Context is the payload attached to a drag source or drop target.
type Context struct {
	Kind   Kind
	ItemID string
	Day    int
	Index  int
}

// Item builds an item context.
func Item(itemID string, day, index int) Context {
	return Context{Kind: KindItem, ItemID: itemID, Day: day, Index: index}
}

// Day builds a day container context.
func Day(day int) Context {
	return Context{Kind: KindDay, Day: day}
}

// Action is what a drop resolves to.
type Action int

const (
	None Action = iota
	Reorder
	Move
)

func (a Action) String() string {
	switch a {
	case Reorder:
		return "reorder"
	case Move:
		return "move"
	default:
		return "none"
	}
}

// Decision is a resolved drop.
type Decision struct {
	Action  Action
	ItemID  string
	FromDay int
	ToDay   int
	From    int
	To      int
}

// Resolve maps a source and an optional drop target to a single decision.
//
// Rules, first match wins:
//  1. item in the same day at another index: reorder
//  2. day container of another day: move (append)
//  3. item in another day: move (append, not insert before the target)
//  4. anything else: none
func Resolve(src Context, dst *Context) Decision {
	if src.Kind != KindItem || dst == nil {
		return Decision{}
	}
	switch {
	case dst.Kind == KindItem && dst.Day == src.Day && dst.Index != src.Index:
		return Decision{Action: Reorder, ItemID: src.ItemID, FromDay: src.Day, ToDay: src.Day, From: src.Index, To: dst.Index}
	case dst.Kind == KindDay && dst.Day != src.Day:
		return Decision{Action: Move, ItemID: src.ItemID, FromDay: src.Day, ToDay: dst.Day}
	case dst.Kind == KindItem && dst.Day != src.Day:
		return Decision{Action: Move, ItemID: src.ItemID, FromDay: src.Day, ToDay: dst.Day}
	}
	return Decision{}
}

// Mutator receives the resolved mutation.
type Mutator interface {
	Reorder(ctx context.Context, day, from, to int) *models.Trip
	MoveItem(ctx context.Context, itemID string, fromDay, toDay int) (*models.Trip, error)
}

// Controller tracks one gesture at a time.
type Controller struct {
	m      Mutator
	logger *slog.Logger

	mu       sync.Mutex
	active   *Context
	hovering *Context
	dropping bool // End is issuing the mutation for active
}

// NewController creates a controller that sends drops to m.
func NewController(m Mutator, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{m: m, logger: logger}
}

// Dragging reports the active source, if any.
func (c *Controller) Dragging() (Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return Context{}, false
	}
	return *c.active, true
}

// Hovering reports the last target passed to Over during the active gesture.
func (c *Controller) Hovering() (Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovering == nil {
		return Context{}, false
	}
	return *c.hovering, true
}

// Start begins a gesture on an item. It fails with ErrBusy until the previous
// drop's mutation has returned.
func (c *Controller) Start(src Context) error {
	if src.Kind != KindItem {
		return ErrNotItem
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return ErrBusy
	}
	c.active = &src
	c.hovering = nil
	return nil
}

// Over records the target under the pointer. It never mutates the itinerary.
func (c *Controller) Over(dst *Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil || c.dropping {
		return
	}
	if dst == nil {
		c.hovering = nil
		return
	}
	d := *dst
	c.hovering = &d
}

// Cancel ends the gesture without a mutation. A drop already in progress is
// not affected.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if !c.dropping {
		c.active, c.hovering = nil, nil
	}
	c.mu.Unlock()
}

// End finishes the gesture with a drop on dst (nil for no target) and issues
// the resolved mutation. The controller returns to idle once the mutation
// call has returned.
func (c *Controller) End(ctx context.Context, dst *Context) (Decision, error) {
	c.mu.Lock()
	if c.active == nil || c.dropping {
		c.mu.Unlock()
		return Decision{}, nil
	}
	src := *c.active
	c.hovering = nil
	c.dropping = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.active, c.dropping = nil, false
		c.mu.Unlock()
	}()

	d := Resolve(src, dst)
	c.logger.Debug("drop resolved",
		slog.String("action", d.Action.String()),
		slog.String("item_id", d.ItemID),
		slog.Int("from_day", d.FromDay),
		slog.Int("to_day", d.ToDay))

	switch d.Action {
	case Reorder:
		c.m.Reorder(ctx, d.FromDay, d.From, d.To)
	case Move:
		if _, err := c.m.MoveItem(ctx, d.ItemID, d.FromDay, d.ToDay); err != nil {
			return d, err
		}
	}
	return d, nil
}
