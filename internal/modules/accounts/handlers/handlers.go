// Package handlers provides HTTP handlers for the account registry.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/relaycrm/pulse/internal/auth"
	"github.com/relaycrm/pulse/internal/domain"
	"github.com/relaycrm/pulse/internal/events"
	"github.com/relaycrm/pulse/internal/modules/accounts"
)

// Handler provides HTTP handlers for account endpoints
type Handler struct {
	repo *accounts.Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewHandler creates a new accounts handler
func NewHandler(repo *accounts.Repository, bus *events.Bus, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("handler", "accounts").Logger(),
	}
}

// CreateRequest is the wire shape for account registration
type CreateRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Domain string `json:"domain,omitempty"`
}

// HandleCreate handles POST /api/accounts
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeBadRequest(w, "Invalid request body")
		return
	}
	if req.Name == "" {
		h.writeBadRequest(w, "name is required")
		return
	}

	account := domain.Account{
		ID:        req.ID,
		OrgID:     orgID,
		Name:      req.Name,
		Domain:    req.Domain,
		CreatedAt: time.Now().UTC(),
	}
	if account.ID == "" {
		account.ID = uuid.NewString()
	}

	created, err := h.repo.Create(r.Context(), account)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", account.ID).Msg("Failed to create account")
		h.writeError(w, err)
		return
	}

	if created && h.bus != nil {
		h.bus.Emit(events.AccountAdded, "accounts", map[string]any{
			"org_id":     orgID,
			"account_id": account.ID,
			"name":       account.Name,
		})
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, account)
}

// HandleList handles GET /api/accounts
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orgID := auth.OrgID(r.Context())

	accts, err := h.repo.List(r.Context(), orgID)
	if err != nil {
		h.log.Error().Err(err).Str("org_id", orgID).Msg("Failed to list accounts")
		h.writeError(w, err)
		return
	}
	if accts == nil {
		accts = []domain.Account{}
	}

	h.writeJSON(w, http.StatusOK, accts)
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
