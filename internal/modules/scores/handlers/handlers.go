// Package handlers provides HTTP handlers for account score reads and
// on-demand computes.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/scores"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultHistoryLimit = 90
	maxHistoryLimit     = 1000
)

// Handler provides HTTP handlers for score endpoints
type Handler struct {
	service *scores.ComputeService
	log     zerolog.Logger
}

// NewHandler creates a new scores handler
func NewHandler(service *scores.ComputeService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scores").Logger(),
	}
}

// HandleGet handles GET /api/scores/{accountId}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())
	accountID := chi.URLParam(r, "accountId")

	score, err := h.service.GetLatest(r.Context(), orgID, accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, score)
}

// HandleCompute handles POST /api/scores/{accountId}/compute
// Scores the account right now under the org's active config.
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())
	accountID := chi.URLParam(r, "accountId")

	score, err := h.service.Compute(r.Context(), orgID, accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("On-demand compute failed")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, score)
}

// HandleList handles GET /api/scores?tier=&limit=
// Returns the org's top accounts by score, optionally filtered to one tier.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var tier domain.Tier
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier = domain.Tier(strings.ToUpper(raw))
		if !tier.Valid() {
			h.writeBadRequest(w, "Unknown tier: "+raw)
			return
		}
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultListLimit, maxListLimit)
	if err != nil {
		h.writeBadRequest(w, err.Error())
		return
	}

	listed, err := h.service.ListTop(r.Context(), orgID, tier, limit)
	if err != nil {
		h.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to list scores")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, listed)
}

// HandleHistory handles GET /api/scores/{accountId}/history?limit=
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())
	accountID := chi.URLParam(r, "accountId")

	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		h.writeBadRequest(w, err.Error())
		return
	}

	entries, err := h.service.GetHistory(r.Context(), orgID, accountID, limit)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("Failed to load score history")
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// parseLimit parses an optional limit query parameter within bounds
func parseLimit(raw string, fallback, max int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if limit > max {
		limit = max
	}
	return limit, nil
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
