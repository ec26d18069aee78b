package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/middleware"
	"github.com/epochzone/epochzone/internal/model"
)

// KeyManager is the part of auth.Service the admin endpoints use.
type KeyManager interface {
	GenerateKey(ctx context.Context, in auth.CreateKeyInput) (*auth.CreatedKey, error)
	ListKeys(ctx context.Context) ([]*model.APIKey, error)
	RevokeKey(ctx context.Context, id string) error
}

// APIKeyHandler handles API key management endpoints. Every route is
// behind middleware.AdminAuth.
type APIKeyHandler struct {
	keys   KeyManager
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(keys KeyManager, logger *slog.Logger) *APIKeyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyHandler{
		keys:   keys,
		logger: logger,
	}
}

// Create issues a new API key. The plaintext secret is returned only here.
// POST /admin/api-keys
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.APIKeyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	created, err := h.keys.GenerateKey(r.Context(), auth.CreateKeyInput{
		Label:     req.EffectiveLabel(),
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidLabel):
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		case errors.Is(err, auth.ErrExpiresInPast):
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		default:
			h.internalError(w, r, "create api key failed", err)
		}
		return
	}

	key := created.Key
	writeJSON(w, http.StatusCreated, model.APIKeyCreateResponse{
		ID:        key.ID,
		Secret:    created.Secret,
		Label:     key.Label,
		KeyPrefix: key.KeyPrefix,
		CreatedAt: key.CreatedAt,
		ExpiresAt: key.ExpiresAt,
	})
}

// List returns every key record without secrets or hashes.
// GET /admin/api-keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.ListKeys(r.Context())
	if err != nil {
		h.internalError(w, r, "list api keys failed", err)
		return
	}

	response := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		response = append(response, key.ToResponse())
	}

	writeJSON(w, http.StatusOK, response)
}

// Revoke revokes a key. Revoking twice is not an error.
// DELETE /admin/api-keys/{id}
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusNotFound, CodeKeyNotFound, "api key not found")
		return
	}

	if err := h.keys.RevokeKey(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			writeError(w, http.StatusNotFound, CodeKeyNotFound, "api key not found")
			return
		}
		h.internalError(w, r, "revoke api key failed", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIKeyHandler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Error(msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
