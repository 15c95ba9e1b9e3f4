package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/middleware"
	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/service"
)

type Handler struct {
	service *service.LinkService
	logger  *zap.Logger
	auth    *middleware.AuthMiddleware
}

func NewHandler(service *service.LinkService, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
		auth:    auth,
	}
}

func (h *Handler) toResponse(link models.ShortLink) models.LinkResponse {
	return models.LinkResponse{
		ShortLink: link,
		ShortURL:  h.service.ShortURL(link.Slug),
	}
}

// decodeJSON reads a JSON body into dst, rejecting other content types and unknown fields.
func decodeJSON(r *http.Request, dst any) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst) == nil
}

func (h *Handler) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	if err := json.NewEncoder(rw).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// writeServiceError maps service errors onto HTTP statuses. Internal faults are
// logged and answered with a generic message.
func (h *Handler) writeServiceError(rw http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyURL),
		errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrInvalidSlug):
		http.Error(rw, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSlugTaken):
		http.Error(rw, "Slug already exists", http.StatusConflict)
	case errors.Is(err, service.ErrNotFound):
		http.Error(rw, "Short link not found", http.StatusNotFound)
	case errors.Is(err, service.ErrUnauthenticated):
		http.Error(rw, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	default:
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func userID(r *http.Request) string {
	id, _ := middleware.GetUserIDFromContext(r.Context())
	return id
}
