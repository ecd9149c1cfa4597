// Package collab keeps the viewed trip fresh while collaborators edit it.
//
// A Bridge joins the notification room of the viewed trip and reloads the
// whole trip whenever the room reports an update. There is no merge: the
// reload replaces local state. Without a channel every call is a no-op.
package collab

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Event types delivered by the notification channel.
const (
	EventUpdated = "updated"
)

// Event is a server notification.
type Event struct {
	Type   string `json:"type"`
	TripID string `json:"tripId"`
}

// Channel is the process-wide notification connection.
type Channel interface {
	// Connected reports whether the connection is live.
	Connected() bool
	Join(ctx context.Context, tripID string) error
	Leave(ctx context.Context, tripID string) error
	// Events delivers notifications until the connection ends, then closes.
	Events() <-chan Event
}

// Refetcher reloads a trip into local state.
type Refetcher interface {
	TripID() string
	Refetch(ctx context.Context) error
}

// State is the bridge lifecycle state.
type State int

const (
	Disconnected State = iota
	Connected
	JoinedRoom
	LeftRoom
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case JoinedRoom:
		return "joined"
	case LeftRoom:
		return "left"
	default:
		return "disconnected"
	}
}

// Bridge binds one Channel to one Refetcher.
type Bridge struct {
	ch     Channel
	target Refetcher
	logger *slog.Logger

	group singleflight.Group
	wg    sync.WaitGroup

	mu       sync.Mutex
	state    State
	room     string
	inflight bool
	again    bool
}

// NewBridge creates a bridge. ch may be nil when there is no authenticated
// session; the bridge then stays Disconnected.
func NewBridge(ch Channel, target Refetcher, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{ch: ch, target: target, logger: logger}
	if ch != nil && ch.Connected() {
		b.state = Connected
	}
	return b
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Room returns the joined trip id, or "".
func (b *Bridge) Room() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.room
}

// Mount joins the room of tripID, leaving any previously joined room.
// Join failures degrade the bridge to Disconnected; a later Mount on a live
// channel reconnects it. After a reconnect the host restarts Run to consume
// the new connection's events.
func (b *Bridge) Mount(ctx context.Context, tripID string) {
	if b.ch == nil {
		return
	}
	if !b.ch.Connected() {
		b.disconnect()
		return
	}
	b.mu.Lock()
	if b.state == Disconnected {
		b.state = Connected
		b.logger.Debug("notification channel live again")
	}
	prev := b.room
	b.mu.Unlock()

	if prev != "" && prev != tripID {
		b.Unmount(ctx)
	}
	if err := b.ch.Join(ctx, tripID); err != nil {
		b.logger.Warn("join room failed", slog.String("trip_id", tripID), slog.String("error", err.Error()))
		b.disconnect()
		return
	}

	b.mu.Lock()
	if b.state != Disconnected {
		b.state = JoinedRoom
		b.room = tripID
	}
	b.mu.Unlock()
	b.logger.Debug("joined room", slog.String("trip_id", tripID))
}

// Unmount leaves the joined room. Failures are logged and ignored.
func (b *Bridge) Unmount(ctx context.Context) {
	b.mu.Lock()
	room := b.room
	if b.state != JoinedRoom || room == "" {
		b.mu.Unlock()
		return
	}
	b.room = ""
	b.state = LeftRoom
	b.mu.Unlock()

	if err := b.ch.Leave(ctx, room); err != nil {
		b.logger.Debug("leave room failed", slog.String("trip_id", room), slog.String("error", err.Error()))
	}
}

// Run consumes channel events until ctx ends or the channel closes.
// A closed channel moves the bridge to Disconnected.
func (b *Bridge) Run(ctx context.Context) {
	if b.ch == nil {
		return
	}
	events := b.ch.Events()
	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				b.logger.Warn("notification channel closed; collaboration disabled")
				b.disconnect()
				return
			}
			b.handle(ctx, ev)
		}
	}
}

// Refresh reloads the viewed trip. Concurrent calls share one request.
func (b *Bridge) Refresh(ctx context.Context) error {
	tripID := b.target.TripID()
	if tripID == "" {
		return nil
	}
	_, err, _ := b.group.Do(tripID, func() (any, error) {
		return nil, b.target.Refetch(ctx)
	})
	return err
}

func (b *Bridge) handle(ctx context.Context, ev Event) {
	if ev.Type != EventUpdated {
		return
	}
	b.mu.Lock()
	if b.state != JoinedRoom || ev.TripID != b.room || ev.TripID != b.target.TripID() {
		b.mu.Unlock()
		return
	}
	if b.inflight {
		// Reload again once the running one finishes so this update is not missed.
		b.again = true
		b.mu.Unlock()
		return
	}
	b.inflight = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			if err := b.Refresh(ctx); err != nil {
				b.logger.Warn("refetch after remote update failed",
					slog.String("trip_id", ev.TripID), slog.String("error", err.Error()))
			}
			b.mu.Lock()
			if !b.again || ctx.Err() != nil {
				b.inflight, b.again = false, false
				b.mu.Unlock()
				return
			}
			b.again = false
			b.mu.Unlock()
		}
	}()
}

func (b *Bridge) disconnect() {
	b.mu.Lock()
	b.state = Disconnected
	b.room = ""
	b.mu.Unlock()
}
