package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all scoring routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scoring", func(r chi.Router) {
		// Config document
		r.Get("/config", h.HandleGetConfig)    // Active config (or platform default)
		r.Put("/config", h.HandleUpdateConfig) // Replace whole document

		// Bulk operations
		r.Post("/preview", h.HandlePreview)     // Dry run, nothing persisted
		r.Post("/recompute", h.HandleRecompute) // Re-score the whole org
		r.Post("/reset", h.HandleReset)         // Back to platform default

		r.Get("/insights", h.HandleInsights) // Distribution stats + suggestions
	})
}
