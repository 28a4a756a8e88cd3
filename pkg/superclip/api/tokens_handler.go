package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/pixia1234/super-clipboard/pkg/superclip"
)

// TokensHandler handles access token registration.
type TokensHandler struct {
	service superclip.Service
}

// NewTokensHandler creates a new tokens handler.
func NewTokensHandler(service superclip.Service) *TokensHandler {
	return &TokensHandler{service: service}
}

// Routes returns the router for token endpoints.
func (h *TokensHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.RegisterToken)
	return r
}

// RegisterTokenRequest is the request body for registering a token.
type RegisterTokenRequest struct {
	Token   string `json:"token"`
	OwnerID string `json:"ownerId"`
}

// RegisterToken claims a personal access token for an owner. A token
// already held by a different live owner is reported as a conflict.
func (h *TokensHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token := strings.TrimSpace(req.Token)
	if len(token) < 7 {
		http.Error(w, "token must be at least 7 characters", http.StatusBadRequest)
		return
	}
	ownerID := strings.TrimSpace(req.OwnerID)
	if len(ownerID) > 64 {
		http.Error(w, "ownerId must be at most 64 characters", http.StatusBadRequest)
		return
	}

	record, err := h.service.RegisterToken(r.Context(), superclip.RegisterTokenRequest{
		Token:   token,
		OwnerID: ownerID,
	})
	if err != nil {
		if errors.Is(err, superclip.ErrTokenOccupied) || errors.Is(err, superclip.ErrTokenInvalid) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		slog.Error("Failed to register token", "error", err)
		http.Error(w, "failed to register token", http.StatusInternalServerError)
		return
	}

	slog.Info("Token registered", "owner_id", record.OwnerID)
	render.JSON(w, r, newTokenView(record))
}
