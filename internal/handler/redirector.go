package handler

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/service"
	"github.com/mmeshcher/shortlinks/internal/slug"
)

// Short-lived shared caching: edits reach clients within a minute.
const redirectCacheControl = "s-maxage=60, stale-while-revalidate"

// Redirector turns single-segment GET and HEAD paths into redirects to the stored
// destination. Everything else, including misses and lookup failures, falls through
// to next untouched.
func (h *Handler) Redirector(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			next.ServeHTTP(rw, r)
			return
		}

		slugValue, ok := slugFromPath(r.URL.Path)
		if !ok {
			next.ServeHTTP(rw, r)
			return
		}

		destination, err := h.service.Resolve(r.Context(), slugValue)
		if err != nil {
			if !errors.Is(err, service.ErrNotFound) {
				h.logger.Warn("Redirect lookup failed, passing through",
					zap.String("slug", slugValue),
					zap.Error(err))
			}
			next.ServeHTTP(rw, r)
			return
		}

		rw.Header().Set("Cache-Control", redirectCacheControl)
		rw.Header().Set("Location", destination)
		rw.WriteHeader(http.StatusTemporaryRedirect)
	})
}

// slugFromPath accepts exactly one non-empty segment that is not a reserved route prefix.
func slugFromPath(path string) (string, bool) {
	segment := strings.TrimPrefix(path, "/")
	if segment == "" || strings.Contains(segment, "/") {
		return "", false
	}
	if slug.IsReserved(segment) {
		return "", false
	}
	return segment, true
}
