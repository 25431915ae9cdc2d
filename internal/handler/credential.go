package handler

import (
	"fmt"
	"net/http"

	"github.com/asmr-studio/creator-studio/internal/credential"
	"github.com/asmr-studio/creator-studio/internal/middleware"
	"github.com/asmr-studio/creator-studio/internal/service"
	"github.com/asmr-studio/creator-studio/pkg/logger"
)

// SelectKeyRequest supplies a credential at runtime.
type SelectKeyRequest struct {
	Key string `json:"key" validate:"required,notblank"`
}

// CredentialHandler lets a client pick the credential used for generation.
type CredentialHandler struct {
	store  *credential.KeyStore
	logger *logger.Logger
}

// NewCredentialHandler creates a new credential handler.
func NewCredentialHandler(store *credential.KeyStore, log *logger.Logger) *CredentialHandler {
	return &CredentialHandler{store: store, logger: log}
}

// Select handles PUT /api/v1/credential
func (h *CredentialHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	if err := middleware.Validate(req); err != nil {
		respondWithError(w, h.logger, err)
		return
	}
	if err := h.store.Select(req.Key); err != nil {
		respondWithError(w, h.logger, fmt.Errorf("%w: %v", service.ErrValidation, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
