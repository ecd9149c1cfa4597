package hub

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ServeHTTP streams list-level events (GET /api/events).
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ServeRoom(w, r, "")
}

// ServeRoom streams the events of one trip room as Server-Sent Events.
// An empty tripID subscribes without joining a room.
func (h *Hub) ServeRoom(w http.ResponseWriter, r *http.Request, tripID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	c := h.Subscribe()
	defer h.Unsubscribe(c)
	if tripID != "" {
		h.Join(c, tripID)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.Events():
			if !ok {
				return
			}
			_, _ = w.Write(formatSSE(ev))
			flusher.Flush()
		}
	}
}

func formatSSE(ev Event) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", ev.Type, payload))
}
