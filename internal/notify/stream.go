package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"example.com/prayer/internal/events"
)

// SSE event names written by StreamHandler.
const (
	EventReady = "ready"
	EventPing  = "ping"
)

// StreamHandler serves the hub as a Server-Sent Events stream.
type StreamHandler struct {
	hub       *Hub
	keepalive time.Duration
}

// NewStreamHandler constructs a StreamHandler. keepalive controls the ping interval.
func NewStreamHandler(hub *Hub, keepalive time.Duration) *StreamHandler {
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	return &StreamHandler{hub: hub, keepalive: keepalive}
}

// ServeHTTP implements http.Handler.
func (s *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	ctx := r.Context()
	sub := s.hub.Subscribe(ctx, 32)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, EventReady, []byte("{}"))
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeEvent(w, EventPing, []byte("{}"))
			if err := rc.Flush(); err != nil {
				return
			}
		case evt, ok := <-sub:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			writeEvent(w, events.TypeEntryCreated, data)
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
