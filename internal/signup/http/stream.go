package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/pixelgrid/signupmill/internal/signup/domain"
	"github.com/pixelgrid/signupmill/pkg/broadcast"
)

// StreamHandler forwards worker progress events to SSE clients. Each
// connection gets its own subscription; events published before a client
// connected are never replayed.
type StreamHandler struct {
	Events *broadcast.Broadcaster[domain.ProgressEvent]
	Logger *slog.Logger
}

// HandleGet godoc
//
//	@Summary		Stream Signup Progress
//	@Description	Server-sent event stream of worker progress. Each event is one
//	@Description	JSON-encoded progress record. Disconnecting only ends the stream;
//	@Description	in-flight signups keep running.
//	@Tags			Signups
//	@Produce		text/event-stream
//	@Success		200	{string}	string	"SSE stream"
//	@Router			/v1/signups/stream [get].
func (h *StreamHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := h.Events.Subscribe(r.Context())
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-sub.C():
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("failed to encode progress event", slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
