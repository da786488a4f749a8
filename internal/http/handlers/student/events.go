package student

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/student-directory/internal/directory"
)

// eventBuffer is how many notifications may queue up for a slow client
// before further ones are dropped. Each event carries a fresh snapshot,
// so a dropped event loses nothing but an intermediate state.
const eventBuffer = 16

// Events handles GET /api/events: a server-sent event stream with one
// "changed" event per directory notification. Each event's data is the
// state as read when the event is written. The first event is sent on
// connect so the client starts from the current state. The stream ends
// when the client goes away or shutdown is closed; a nil shutdown never
// fires.
func Events(dir *directory.Service, shutdown <-chan struct{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		changed := make(chan struct{}, eventBuffer)
		unsubscribe := dir.Subscribe(func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		send := func() error {
			data, err := json.Marshal(dir.State())
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: changed\ndata: %s\n\n", data); err != nil {
				return err
			}
			flusher.Flush()
			return nil
		}

		if err := send(); err != nil {
			return
		}
		for {
			select {
			case <-r.Context().Done():
				return
			case <-shutdown:
				return
			case <-changed:
				if err := send(); err != nil {
					slog.Debug("event stream closed", slog.String("error", err.Error()))
					return
				}
			}
		}
	}
}
