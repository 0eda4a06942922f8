package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pixelgrid/signupmill/pkg/httpx"
)

// DefaultMaxBatch caps how many signups one request may schedule.
const DefaultMaxBatch = 50

// BatchLauncher schedules signup attempts. Implemented by service.Launcher.
type BatchLauncher interface {
	Start(count int)
	InFlight() int64
}

// SignupsHandler schedules batches of signup attempts.
type SignupsHandler struct {
	Launcher BatchLauncher
	MaxBatch int
	Logger   *slog.Logger
}

// HandlePost godoc
//
//	@Summary		Start Signup Batch
//	@Description	Schedules a batch of automated signup attempts. Launches are paced
//	@Description	internally; the call returns as soon as the batch is accepted.
//	@Tags			Signups
//	@Accept			json
//	@Produce		json
//	@Param			request	body		StartSignupsRequest		true	"batch size"
//	@Success		202		{object}	StartSignupsResponse	"batch accepted"
//	@Failure		400		{object}	ErrorResponse			"invalid count"
//	@Router			/v1/signups [post].
func (h *SignupsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	var req StartSignupsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "request body must be JSON with a count field",
		})
		return
	}

	maxBatch := h.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	if req.Count < 1 || req.Count > maxBatch {
		httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: "count must be between 1 and the configured batch limit",
		})
		return
	}

	h.Launcher.Start(req.Count)
	h.Logger.Info("signup batch accepted", slog.Int("count", req.Count))

	httpx.WriteJSON(w, http.StatusAccepted, StartSignupsResponse{
		Requested: req.Count,
		InFlight:  h.Launcher.InFlight(),
	})
}
