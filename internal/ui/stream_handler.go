package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/linkstash/internal/auth"
	"github.com/example/linkstash/internal/metrics"
)

const heartbeatInterval = 25 * time.Second

// StreamBookmarks holds an SSE stream carrying the user's bookmark change
// events. The client re-fetches the full list on every event; no payload
// diffing happens on either side. One hub subscription exists per stream
// and is released when the client disconnects.
func (h *Handler) StreamBookmarks(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	user, _ := auth.UserFromContext(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, cancel := h.hub.Subscribe(user.ID)
	defer cancel()

	metrics.SubscriberOpened()
	defer metrics.SubscriberClosed()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
