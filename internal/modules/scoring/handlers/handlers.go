// Package handlers provides HTTP handlers for scoring configuration and the
// bulk operations driven by it: preview, recompute, reset and insights.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/modules/scoring"
)

// Handler provides HTTP handlers for scoring endpoints
type Handler struct {
	service *scoring.Service
	log     zerolog.Logger
}

// NewHandler creates a new scoring handler
func NewHandler(service *scoring.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scoring").Logger(),
	}
}

// HandleGetConfig handles GET /api/scoring/config
// Returns the org's active config, falling back to the platform default.
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	cfg, err := h.service.Manager().Get(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// HandleUpdateConfig handles PUT /api/scoring/config
// Replaces the org's config with the request body after validation.
func (h *Handler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var cfg domain.ScoringConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.writeBadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	saved, err := h.service.Manager().Update(r.Context(), orgID, cfg)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, saved)
}

// HandlePreview handles POST /api/scoring/preview
// Dry-runs the candidate config in the body against every account's current
// signals. Nothing is persisted.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var candidate domain.ScoringConfig
	if err := json.NewDecoder(r.Body).Decode(&candidate); err != nil {
		h.writeBadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	previews, err := h.service.Preview(r.Context(), orgID, candidate)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if previews == nil {
		previews = []domain.ScorePreview{}
	}
	h.writeJSON(w, http.StatusOK, previews)
}

// HandleRecompute handles POST /api/scoring/recompute
// An empty body recomputes under the active config; a config in the body is
// validated and saved first, then the run scores against it.
func (h *Handler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeBadRequest(w, "Failed to read request body")
		return
	}

	var override *domain.ScoringConfig
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		var cfg domain.ScoringConfig
		if err := json.Unmarshal(trimmed, &cfg); err != nil {
			h.writeBadRequest(w, "Invalid config in request body: "+err.Error())
			return
		}
		override = &cfg
	}

	result, err := h.service.Recompute(r.Context(), orgID, override, scoring.TriggerAPI)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// HandleReset handles POST /api/scoring/reset
// Restores the platform default config and recomputes under it.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	cfg, err := h.service.Reset(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// HandleInsights handles GET /api/scoring/insights
// Returns score distribution statistics and suggested tier thresholds.
func (h *Handler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	insights, err := h.service.Insights(r.Context(), orgID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, insights)
}

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
