// Package handlers provides HTTP handlers for signal ingestion.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/signals"
)

// Handler provides HTTP handlers for the signals endpoints
type Handler struct {
	service *signals.Service
	log     zerolog.Logger
}

// NewHandler creates a new signals handler
func NewHandler(service *signals.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "signals").Logger(),
	}
}

// HandleIngest handles POST /api/signals
// Accepts one signal; replaying an id is a no-op and returns the stored signal.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var req signals.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.writeBadRequest(w, err.Error())
		return
	}

	signal, created, err := h.service.Ingest(r.Context(), orgID, req)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Failed to ingest signal")
		h.writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, signal)
}

// HandleIngestBatch handles POST /api/signals/batch
// Accepts an array of signals; invalid items are rejected individually.
func (h *Handler) HandleIngestBatch(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var reqs []signals.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		h.writeBadRequest(w, "Invalid request body: expected an array of signals")
		return
	}
	if len(reqs) == 0 {
		h.writeBadRequest(w, "Batch must contain at least one signal")
		return
	}

	result, err := h.service.IngestBatch(r.Context(), orgID, reqs)
	if err != nil {
		h.log.Error().Err(err).Int("batch_size", len(reqs)).Msg("Signal batch failed")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// writeJSON writes a JSON response with status code
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError maps a domain error onto the API error envelope
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, domain.HTTPStatus(err), map[string]any{
		"error": map[string]any{
			"message": err.Error(),
			"code":    domain.ErrorCode(err),
		},
	})
}

// writeBadRequest writes a 400 envelope for malformed requests
func (h *Handler) writeBadRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    "INVALID_REQUEST",
		},
	})
}
