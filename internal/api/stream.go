package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/joescharf/tracker/internal/store"
	"github.com/joescharf/tracker/internal/tracker"
)

// streamIssues pushes the full list as a "snapshot" event every time the
// filtered result set changes, starting with the current state.
func (s *Server) streamIssues(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeFailure(w, err, "")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Only the newest snapshot matters; an unsent older one is replaced.
	latest := make(chan store.Snapshot, 1)
	sub, err := s.store.Subscribe(r.Context(), store.QueryFor(filter), func(snap store.Snapshot, err error) {
		if err != nil {
			s.logger.Warn("stream snapshot", "error", err)
			return
		}
		select {
		case <-latest:
		default:
		}
		latest <- snap
	})
	if err != nil {
		s.writeFailure(w, err, "Failed to load issues.")
		return
	}
	defer sub.Stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case snap := <-latest:
			payload, err := json.Marshal(tracker.BuildCards(snap.Issues, s.now()))
			if err != nil {
				s.logger.Error("encode snapshot", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
