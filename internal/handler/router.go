package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmeshcher/shortlinks/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(h.Redirector)
	r.Use(middleware.Gzip)

	r.Get("/ping", h.PingHandler)
	r.Get("/api/get-url/{slug}", h.GetURLHandler)

	r.Route("/api/user", func(r chi.Router) {
		r.Use(h.auth.RequireUser)

		r.Post("/links", h.CreateLinkHandler)
		r.Get("/links", h.ListLinksHandler)
		r.Patch("/links", h.UpdateLinkHandler)
		r.Delete("/links", h.DeleteLinkHandler)
		r.Get("/links/available", h.SlugAvailableHandler)
		r.Get("/search-key", h.SearchKeyHandler)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return r
}
