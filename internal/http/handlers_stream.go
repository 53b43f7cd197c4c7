package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/esg-pipeline/internal/domain/model"
)

const (
	// StatusEventName is the SSE event name of a status update.
	StatusEventName = "analysisStatusUpdated"

	defaultHeartbeat = 25 * time.Second
)

// StatusSubscriber hands out live status update subscriptions.
type StatusSubscriber interface {
	Subscribe() (func(), <-chan model.StatusUpdate)
}

// StreamHandlers serve the realtime status channel as server-sent events.
type StreamHandlers struct {
	Hub       StatusSubscriber
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Stream writes every update published after the client connected. There is
// no replay; clients recover missed updates with GET /analyses/{id}.
func (h *StreamHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// The server write timeout must not cut a long lived stream.
	_ = rc.SetWriteDeadline(time.Time{})

	unsub, updates := h.Hub.Subscribe()
	defer unsub()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.Logger.WarnContext(r.Context(), "streaming unsupported", "error", err)
		return
	}

	interval := h.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeStatusEvent(w, update); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeStatusEvent(w http.ResponseWriter, update model.StatusUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode status update: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", StatusEventName, data)
	return err
}
