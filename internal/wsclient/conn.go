// Package wsclient is the client side of the websocket notification channel.
// A Conn joins and leaves trip rooms and streams room events to a collab.Bridge.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/waypoint/internal/collab"
	"github.com/starford/waypoint/internal/hub"
)

// ErrClosed is returned for requests on a closed connection.
var ErrClosed = errors.New("wsclient: connection closed")

const (
	writeWait  = 10 * time.Second
	eventQueue = 64
)

// Conn is one websocket connection to the notification endpoint.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	// opMu keeps one request in flight; the server answers in order.
	opMu sync.Mutex
	acks chan hub.Message

	events    chan collab.Event
	connected atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Endpoint converts an API base URL (http://host/api) into the websocket URL.
func Endpoint(apiBase string) (string, error) {
	u, err := url.Parse(strings.TrimRight(apiBase, "/") + "/ws")
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// Dial connects to wsURL. A non-empty token is sent as a Bearer header.
func Dial(ctx context.Context, wsURL, token string, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", wsURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	c := &Conn{
		ws:     ws,
		logger: logger,
		acks:   make(chan hub.Message, 1),
		events: make(chan collab.Event, eventQueue),
		done:   make(chan struct{}),
	}
	c.connected.Store(true)
	go c.readLoop()
	return c, nil
}

// Connected reports whether the connection is live.
func (c *Conn) Connected() bool { return c.connected.Load() }

// Events delivers room notifications until the connection ends.
func (c *Conn) Events() <-chan collab.Event { return c.events }

// Join subscribes to the room of tripID and waits for the acknowledgement.
func (c *Conn) Join(ctx context.Context, tripID string) error {
	_, err := c.request(ctx, hub.Message{Type: hub.MsgJoin, TripID: tripID}, hub.MsgJoined)
	return err
}

// Leave unsubscribes from the room of tripID.
func (c *Conn) Leave(ctx context.Context, tripID string) error {
	_, err := c.request(ctx, hub.Message{Type: hub.MsgLeave, TripID: tripID}, hub.MsgLeft)
	return err
}

// Ping round-trips an application-level ping.
func (c *Conn) Ping(ctx context.Context) error {
	_, err := c.request(ctx, hub.Message{Type: hub.MsgPing}, hub.MsgPong)
	return err
}

// Close ends the connection. Events is closed once the reader exits.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}

func (c *Conn) request(ctx context.Context, out hub.Message, want string) (hub.Message, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.Connected() {
		return hub.Message{}, ErrClosed
	}
	// A reply that arrived after its caller gave up must not answer this request.
	select {
	case <-c.acks:
	default:
	}

	c.writeMu.Lock()
	err := c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err == nil {
		err = c.ws.WriteJSON(out)
	}
	c.writeMu.Unlock()
	if err != nil {
		return hub.Message{}, fmt.Errorf("send %s: %w", out.Type, err)
	}

	select {
	case <-ctx.Done():
		return hub.Message{}, ctx.Err()
	case <-c.done:
		return hub.Message{}, ErrClosed
	case ack := <-c.acks:
		if ack.Type == hub.MsgError {
			return ack, fmt.Errorf("%s rejected: %s", out.Type, ack.Message)
		}
		if ack.Type != want {
			return ack, fmt.Errorf("%s: unexpected reply %q", out.Type, ack.Type)
		}
		return ack, nil
	}
}

func (c *Conn) readLoop() {
	defer func() {
		c.connected.Store(false)
		close(c.events)
		close(c.done)
	}()
	for {
		var in hub.Message
		if err := c.ws.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("notification channel read failed", slog.String("error", err.Error()))
			}
			return
		}
		switch in.Type {
		case hub.MsgJoined, hub.MsgLeft, hub.MsgPong, hub.MsgError:
			select {
			case c.acks <- in:
			default:
				c.logger.Debug("unsolicited reply dropped", slog.String("type", in.Type))
			}
		default:
			c.deliver(collab.Event{Type: in.Type, TripID: in.TripID})
		}
	}
}

// deliver enqueues ev, dropping the oldest pending event when the queue is full.
func (c *Conn) deliver(ev collab.Event) {
	select {
	case c.events <- ev:
		return
	default:
	}
	select {
	case <-c.events:
	default:
	}
	select {
	case c.events <- ev:
	default:
	}
}
