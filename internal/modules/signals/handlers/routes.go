package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all signal ingestion routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/signals", func(r chi.Router) {
		r.Post("/", h.HandleIngest)           // Ingest one signal
		r.Post("/batch", h.HandleIngestBatch) // Ingest a batch
	})
}
