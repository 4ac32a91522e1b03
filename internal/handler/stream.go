package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

var streamHeartbeat = 15 * time.Second

// Stream handles GET /events/{id}/stream
// Sends the current roster, then one server-sent "change" event per committed
// membership mutation until the client disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	roster, err := h.members.Roster(r.Context(), eventID)
	if err != nil {
		h.writeOpError(w, r, err)
		return
	}

	changes, err := h.changes.Subscribe(r.Context(), eventID)
	if err != nil {
		h.log.Error().Err(err).Str("event_id", eventID).Msg("subscribe to membership changes")
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "roster", roster); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := writeSSE(w, "change", change); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
