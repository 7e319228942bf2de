package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all risk routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/hard-stop", func(r chi.Router) {
		r.Get("/", h.HandleGetStatus)   // Kill-switch state + limits
		r.Post("/reset", h.HandleReset) // Admin reset
	})
}
