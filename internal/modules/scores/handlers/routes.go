package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all score routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scores", func(r chi.Router) {
		r.Get("/", h.HandleList) // Top accounts, ?tier=&limit=

		r.Route("/{accountId}", func(r chi.Router) {
			r.Get("/", h.HandleGet)             // Current snapshot
			r.Post("/compute", h.HandleCompute) // Score right now
			r.Get("/history", h.HandleHistory)  // Score trail, ?limit=
		})
	})
}
