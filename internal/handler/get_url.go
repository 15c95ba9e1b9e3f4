package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/service"
)

// GetURLHandler is the public JSON lookup of a slug.
func (h *Handler) GetURLHandler(rw http.ResponseWriter, r *http.Request) {
	slugValue := chi.URLParam(r, "slug")

	link, err := h.service.GetLink(r.Context(), slugValue)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			rw.Header().Set("Cache-Control", redirectCacheControl)
			h.writeJSON(rw, http.StatusNotFound, models.ErrorResponse{Error: "not found"})
			return
		}
		h.logger.Error("Failed to look up slug", zap.String("slug", slugValue), zap.Error(err))
		h.writeJSON(rw, http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
		return
	}

	rw.Header().Set("Cache-Control", redirectCacheControl)
	h.writeJSON(rw, http.StatusOK, link)
}
