package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mattwynharris/Meshcore-Dashboard/internal/models"
)

// refreshInterval bounds how stale a quiet stream can get. Liveness is
// computed at read time, so a repeater crossing its stale threshold
// flips to offline on the next refresh tick even with no poll events.
const refreshInterval = 5 * time.Second

// HandleStream serves the live snapshot feed over Server-Sent Events.
// The current snapshot is sent immediately on connect, then on every
// state change and at least every refresh interval.
func (s *RESTServer) HandleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.hub.Subscribe(r.Context())

	// 先推一次当前状态, 面板无需等下一个轮询周期
	if err := writeSSE(w, s.table.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case snapshot, open := <-sub.Updates():
			if !open {
				return
			}
			if err := writeSSE(w, snapshot); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			// Re-render so lazy staleness transitions surface
			if err := writeSSE(w, s.table.Snapshot()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one snapshot as an SSE data event
func writeSSE(w http.ResponseWriter, snapshot models.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return err
	}

	_, err = fmt.Fprintf(w, "event: update\ndata: %s\n\n", data)
	return err
}
