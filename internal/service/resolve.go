package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/cache"
	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
)

// Resolve returns the destination of slug. It sits on the hot request path, so the
// whole lookup is bounded by the resolve timeout; callers treat any error as "no
// redirect" and fall through.
func (s *LinkService) Resolve(ctx context.Context, slugValue string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	if s.cache != nil {
		entry, err := s.cache.Get(ctx, slugValue)
		switch {
		case err == nil && entry.Missing:
			return "", ErrNotFound
		case err == nil:
			return entry.URL, nil
		case !errors.Is(err, cache.ErrMiss):
			s.logger.Warn("Redirect cache lookup failed", zap.String("slug", slugValue), zap.Error(err))
		}
	}

	link, err := s.store.FindBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.remember(ctx, slugValue, "")
			return "", ErrNotFound
		}
		return "", fmt.Errorf("find link: %w", err)
	}

	s.remember(ctx, slugValue, link.URL)
	return link.URL, nil
}

// GetLink returns the full record behind slug for public lookups.
func (s *LinkService) GetLink(ctx context.Context, slugValue string) (models.ShortLink, error) {
	ctx, cancel := context.WithTimeout(ctx, s.resolveTimeout)
	defer cancel()

	link, err := s.store.FindBySlug(ctx, slugValue)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ShortLink{}, ErrNotFound
		}
		return models.ShortLink{}, fmt.Errorf("find link: %w", err)
	}

	return link, nil
}

func (s *LinkService) remember(ctx context.Context, slugValue, url string) {
	if s.cache == nil {
		return
	}

	var err error
	if url == "" {
		err = s.cache.SetMissing(ctx, slugValue)
	} else {
		err = s.cache.SetURL(ctx, slugValue, url)
	}
	if err != nil {
		s.logger.Debug("Failed to populate redirect cache", zap.String("slug", slugValue), zap.Error(err))
	}
}
