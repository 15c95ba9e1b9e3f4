package handler

import (
	"net/http"

	"github.com/mmeshcher/shortlinks/internal/models"
)

// SearchKeyHandler hands the caller a short-lived search key restricted to their own links.
func (h *Handler) SearchKeyHandler(rw http.ResponseWriter, r *http.Request) {
	key, err := h.service.SearchKey(userID(r))
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	rw.Header().Set("Cache-Control", "no-store")
	h.writeJSON(rw, http.StatusOK, models.SearchKeyResponse{
		Key:       key.Key,
		IndexName: key.IndexName,
		AppID:     key.AppID,
	})
}
