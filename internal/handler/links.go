package handler

import (
	"net/http"

	"github.com/mmeshcher/shortlinks/internal/models"
)

func (h *Handler) CreateLinkHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.CreateLinkRequest
	if !decodeJSON(r, &req) {
		http.Error(rw, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	link, err := h.service.CreateLink(r.Context(), userID(r), req)
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	h.writeJSON(rw, http.StatusCreated, h.toResponse(link))
}

func (h *Handler) ListLinksHandler(rw http.ResponseWriter, r *http.Request) {
	links, err := h.service.ListLinks(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	if len(links) == 0 {
		rw.WriteHeader(http.StatusNoContent)
		return
	}

	response := make([]models.LinkResponse, 0, len(links))
	for _, link := range links {
		response = append(response, h.toResponse(link))
	}

	h.writeJSON(rw, http.StatusOK, response)
}

func (h *Handler) UpdateLinkHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.UpdateLinkRequest
	if !decodeJSON(r, &req) {
		http.Error(rw, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateLinkURL(r.Context(), userID(r), req); err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DeleteLinkHandler(rw http.ResponseWriter, r *http.Request) {
	var req models.DeleteLinkRequest
	if !decodeJSON(r, &req) {
		http.Error(rw, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteLink(r.Context(), userID(r), req); err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	rw.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SlugAvailableHandler(rw http.ResponseWriter, r *http.Request) {
	slugValue := r.URL.Query().Get("slug")

	available, err := h.service.SlugAvailable(r.Context(), slugValue)
	if err != nil {
		h.writeServiceError(rw, r, err)
		return
	}

	h.writeJSON(rw, http.StatusOK, models.SlugAvailability{
		Slug:      slugValue,
		Available: available,
	})
}
