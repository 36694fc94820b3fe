package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ripple-community/pebs-api/internal/presence"
	"go.uber.org/zap"
)

// EventsHandler serves the live notification stream over server-sent events.
// Subscribing marks the member online for the duration of the connection, so
// notification fan-out switches from store-only to store-and-push.
type EventsHandler struct {
	streamer presence.Streamer
}

func NewEventsHandler(streamer presence.Streamer) *EventsHandler {
	return &EventsHandler{streamer: streamer}
}

func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	actorID, _, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, r, http.StatusInternalServerError, "events/streaming-unsupported", "streaming unsupported")
		return
	}

	events, stop, err := h.streamer.Stream(r.Context(), actorID)
	if err != nil {
		zap.L().Error("event stream open failed", zap.Error(err), zap.String("user_id", actorID.String()))
		RespondError(w, r, http.StatusServiceUnavailable, "events/unavailable", "event stream unavailable")
		return
	}
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Comment frames keep intermediaries from closing an idle stream.
	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				zap.L().Warn("event encode failed", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
