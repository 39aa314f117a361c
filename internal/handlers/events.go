package handlers

import (
	"fmt"
	"net/http"

	"github.com/maneesh/fasttranscribe/internal/events"
)

// EventsHandler streams dashboard events to the browser
type EventsHandler struct {
	broadcaster *events.Broadcaster
}

// NewEventsHandler creates a new event stream handler
func NewEventsHandler(broadcaster *events.Broadcaster) *EventsHandler {
	return &EventsHandler{broadcaster: broadcaster}
}

// ServeHTTP handles GET /api/events
func (eh *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := eh.broadcaster.Subscribe()
	defer eh.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}
