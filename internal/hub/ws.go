package hub

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Inbound message types.
const (
	MsgJoin  = "join"
	MsgLeave = "leave"
	MsgPing  = "ping"
)

// Outbound acknowledgement types.
const (
	MsgJoined = "joined"
	MsgLeft   = "left"
	MsgPong   = "pong"
	MsgError  = "error"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string `json:"type"`
	TripID  string `json:"tripId,omitempty"`
	Message string `json:"message,omitempty"`
}

// WSHandler serves the websocket notification endpoint (GET /api/ws).
// A connection may join and leave any number of trip rooms.
func (h *Hub) WSHandler(logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		h.serveConn(r.Context(), conn, logger)
	}
}

func (h *Hub) serveConn(parent context.Context, conn *websocket.Conn, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	c := h.Subscribe()
	defer h.Unsubscribe(c)

	writeCh := make(chan Message, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// A dead writer must also stop the reader, which may be waiting on
		// a full writeCh or on the next frame.
		defer conn.Close()
		defer cancel()
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			var out Message
			select {
			case <-ctx.Done():
				return
			case out = <-writeCh:
			case ev, ok := <-c.Events():
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteWait))
					return
				}
				out = Message{Type: ev.Type, TripID: ev.TripID}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}()

	defer func() {
		cancel()
		<-writerDone
	}()

	reply := func(out Message) bool { return push(ctx, writeCh, out) }
	for {
		var in Message
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ws read failed", slog.String("error", err.Error()))
			}
			return
		}
		var out Message
		tripID := strings.TrimSpace(in.TripID)
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case MsgJoin:
			if tripID == "" {
				out = Message{Type: MsgError, Message: "tripId is required"}
				break
			}
			h.Join(c, tripID)
			out = Message{Type: MsgJoined, TripID: tripID}
		case MsgLeave:
			h.Leave(c, tripID)
			out = Message{Type: MsgLeft, TripID: tripID}
		case MsgPing:
			out = Message{Type: MsgPong}
		case "":
			out = Message{Type: MsgError, Message: "type is required"}
		default:
			out = Message{Type: MsgError, Message: "unsupported type: " + in.Type}
		}
		if !reply(out) {
			return
		}
	}
}

// push queues a reply for the writer. Every request gets its reply, so a full
// queue blocks the reader instead of dropping one. Room events never pass
// through here; the hub drops those for slow clients. push reports false once
// the connection is closing.
func push(ctx context.Context, writeCh chan<- Message, out Message) bool {
	select {
	case writeCh <- out:
		return true
	case <-ctx.Done():
		return false
	}
}
