// Package handlers provides HTTP handlers for the hard-stop admin API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courtedge/courtedge/internal/domain"
	"github.com/courtedge/courtedge/internal/modules/risk"
	"github.com/rs/zerolog"
)

// Handler handles HTTP requests for the risk module
type Handler struct {
	tracker *risk.Tracker
	log     zerolog.Logger
}

// NewHandler creates a new risk handler
func NewHandler(tracker *risk.Tracker, log zerolog.Logger) *Handler {
	return &Handler{
		tracker: tracker,
		log:     log.With().Str("handler", "risk").Logger(),
	}
}

// HandleGetStatus handles GET /api/risk/hard-stop - returns the kill-switch
// state, limits and recommended action
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracker.GetStatus())
}

type resetRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

// HandleReset handles POST /api/risk/hard-stop/reset - deactivates the
// kill-switch. A reset while inactive is a structured failure, not an error.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Reason == "" {
		h.writeError(w, http.StatusBadRequest, "Reason is required")
		return
	}

	err := h.tracker.Reset(req.Reason, req.ActorID)
	if errors.Is(err, domain.ErrNotActive) {
		h.writeJSON(w, http.StatusConflict, risk.ResetResult{
			Success: false,
			Message: "hard stop is not active",
		})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to reset hard stop")
		h.writeError(w, http.StatusInternalServerError, "Failed to reset hard stop")
		return
	}

	h.log.Info().
		Str("reason", req.Reason).
		Str("actor_id", req.ActorID).
		Msg("Hard stop reset via admin API")

	h.writeJSON(w, http.StatusOK, risk.ResetResult{
		Success: true,
		Message: "hard stop reset",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": message,
	})
}
