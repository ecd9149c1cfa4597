// Package hub fans trip change notifications out to connected clients.
//
// Clients join per-trip rooms. A mutation of trip X is delivered to the
// members of room X as an "updated" event; every client additionally gets a
// throttled "trips.changed" event so list views can refresh.
package hub

import (
	"sync/atomic"
	"time"
)

// Event types.
const (
	EventUpdated      = "updated"
	EventTripsChanged = "trips.changed"
)

// Event is a notification delivered to clients.
type Event struct {
	Type   string `json:"type"`
	TripID string `json:"tripId,omitempty"`
}

// Client is one subscriber. Its Events channel is closed when the client is
// unsubscribed or the hub stops.
type Client struct {
	send chan Event
}

// Events returns the delivery channel.
func (c *Client) Events() <-chan Event { return c.send }

type membership struct {
	client *Client
	room   string
	done   chan struct{}
}

type countReq struct {
	room string
	resp chan int
}

// Hub manages client subscriptions and room membership.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable
// state (clients, rooms, list throttle timestamp). Public methods talk to the
// loop through channels, so no mutexes are required.
type Hub struct {
	listMin time.Duration

	subscribeCh   chan *Client
	unsubscribeCh chan *Client
	joinCh        chan membership
	leaveCh       chan membership
	publishCh     chan Event
	countReqCh    chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a hub. listThrottle bounds how often "trips.changed" is sent.
func New(listThrottle time.Duration) *Hub {
	if listThrottle <= 0 {
		listThrottle = 2 * time.Second
	}

	h := &Hub{
		listMin:       listThrottle,
		subscribeCh:   make(chan *Client),
		unsubscribeCh: make(chan *Client),
		joinCh:        make(chan membership),
		leaveCh:       make(chan membership),
		publishCh:     make(chan Event, 256),
		countReqCh:    make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)

	clients := make(map[*Client]map[string]struct{})
	rooms := make(map[string]map[*Client]struct{})
	var lastList time.Time

	deliver := func(c *Client, ev Event) {
		select {
		case c.send <- ev:
		default:
			// Client buffer full; skip to avoid blocking the loop.
		}
	}

	leave := func(c *Client, room string) {
		members := rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(rooms, room)
		}
		if joined, ok := clients[c]; ok {
			delete(joined, room)
		}
	}

	for {
		select {
		case <-h.stopCh:
			for c := range clients {
				close(c.send)
			}
			return

		case c := <-h.subscribeCh:
			clients[c] = make(map[string]struct{})

		case c := <-h.unsubscribeCh:
			joined, ok := clients[c]
			if !ok {
				continue
			}
			for room := range joined {
				leave(c, room)
			}
			delete(clients, c)
			close(c.send)

		case m := <-h.joinCh:
			if joined, ok := clients[m.client]; ok {
				joined[m.room] = struct{}{}
				if rooms[m.room] == nil {
					rooms[m.room] = make(map[*Client]struct{})
				}
				rooms[m.room][m.client] = struct{}{}
			}
			close(m.done)

		case m := <-h.leaveCh:
			leave(m.client, m.room)
			close(m.done)

		case ev := <-h.publishCh:
			for c := range rooms[ev.TripID] {
				deliver(c, ev)
			}

			now := time.Now()
			if now.Sub(lastList) >= h.listMin {
				lastList = now
				for c := range clients {
					deliver(c, Event{Type: EventTripsChanged})
				}
			}

		case req := <-h.countReqCh:
			if req.room == "" {
				req.resp <- len(clients)
			} else {
				req.resp <- len(rooms[req.room])
			}
		}
	}
}

// Close stops the loop and closes every client channel.
func (h *Hub) Close() {
	if h.closed.CompareAndSwap(false, true) {
		close(h.stopCh)
	}
	<-h.stopped
}

// Subscribe registers a new client.
func (h *Hub) Subscribe() *Client {
	c := &Client{send: make(chan Event, 64)}
	if h.closed.Load() {
		close(c.send)
		return c
	}

	select {
	case h.subscribeCh <- c:
	case <-h.stopped:
		close(c.send)
	}
	return c
}

// Unsubscribe removes a client from all rooms and closes its channel.
func (h *Hub) Unsubscribe(c *Client) {
	if h.closed.Load() {
		return
	}
	select {
	case h.unsubscribeCh <- c:
	case <-h.stopped:
	}
}

// Join adds c to the room of tripID. It returns once membership is in place.
func (h *Hub) Join(c *Client, tripID string) {
	h.membership(h.joinCh, c, tripID)
}

// Leave removes c from the room of tripID.
func (h *Hub) Leave(c *Client, tripID string) {
	h.membership(h.leaveCh, c, tripID)
}

func (h *Hub) membership(ch chan membership, c *Client, tripID string) {
	if h.closed.Load() || tripID == "" {
		return
	}
	m := membership{client: c, room: tripID, done: make(chan struct{})}
	select {
	case ch <- m:
	case <-h.stopped:
		return
	}
	select {
	case <-m.done:
	case <-h.stopped:
	}
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	return h.count("")
}

// RoomSize returns the number of clients in the room of tripID.
func (h *Hub) RoomSize(tripID string) int {
	if tripID == "" {
		return 0
	}
	return h.count(tripID)
}

func (h *Hub) count(room string) int {
	if h.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case h.countReqCh <- countReq{room: room, resp: resp}:
	case <-h.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-h.stopped:
		return 0
	}
}

// PublishUpdated notifies the room of tripID that the trip changed.
func (h *Hub) PublishUpdated(tripID string) {
	if h.closed.Load() || tripID == "" {
		return
	}
	select {
	case h.publishCh <- Event{Type: EventUpdated, TripID: tripID}:
	case <-h.stopped:
	}
}
