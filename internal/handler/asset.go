package handler

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/asmr-studio/creator-studio/internal/asset"
	"github.com/asmr-studio/creator-studio/internal/middleware"
)

// AssetHandler serves downloaded previews.
type AssetHandler struct {
	store *asset.Store
}

// NewAssetHandler creates a new asset handler.
func NewAssetHandler(store *asset.Store) *AssetHandler {
	return &AssetHandler{store: store}
}

// Serve handles GET /assets/{id}
// Only the session that generated the asset may read it.
func (h *AssetHandler) Serve(w http.ResponseWriter, r *http.Request) {
	a, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok || a.SessionID != middleware.GetSessionID(r.Context()) {
		writeError(w, http.StatusNotFound, "not_found", "asset not found")
		return
	}

	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, a.ID, a.CreatedAt, bytes.NewReader(a.Data))
}
