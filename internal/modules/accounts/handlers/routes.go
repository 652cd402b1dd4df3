package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all account registry routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.HandleCreate) // Register an account
		r.Get("/", h.HandleList)    // List org accounts
	})
}
