package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/slug"
)

// CreateLink stores a new link owned by userID.
//
// A requested slug is inserted once; if it is taken the call fails with ErrSlugTaken.
// Without one, random candidates are inserted optimistically and only a uniqueness
// violation is retried, up to maxAttempts; the store's constraint is the only
// arbiter, so there is no separate existence check to race against.
func (s *LinkService) CreateLink(ctx context.Context, userID string, req models.CreateLinkRequest) (models.ShortLink, error) {
	if userID == "" {
		return models.ShortLink{}, ErrUnauthenticated
	}

	if err := s.checkStruct(req); err != nil {
		s.logger.Warn("Invalid create link request",
			zap.String("url", req.Link),
			zap.Error(err))
		return models.ShortLink{}, err
	}

	var (
		link models.ShortLink
		err  error
	)
	if req.Slug != "" {
		link, err = s.createWithSlug(ctx, userID, req.Slug, req.Link)
	} else {
		link, err = s.allocate(ctx, userID, req.Link)
	}
	if err != nil {
		return models.ShortLink{}, err
	}

	// a cached "missing" marker for this slug would hide the new link
	s.invalidate(ctx, link.Slug)
	s.mirror.LinkCreated(link)

	s.logger.Info("Short link created",
		zap.String("userID", userID),
		zap.String("slug", link.Slug),
		zap.String("id", link.ID))

	return link, nil
}

func (s *LinkService) createWithSlug(ctx context.Context, userID, requested, target string) (models.ShortLink, error) {
	if err := slug.Validate(requested); err != nil {
		return models.ShortLink{}, fmt.Errorf("%w: %w", ErrInvalidSlug, err)
	}

	link, err := s.insert(ctx, userID, requested, target)
	if err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return models.ShortLink{}, ErrSlugTaken
		}
		s.logger.Error("Failed to save link", zap.Error(err))
		return models.ShortLink{}, err
	}

	return link, nil
}

func (s *LinkService) allocate(ctx context.Context, userID, target string) (models.ShortLink, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate := s.generator.Generate(s.slugLength)

		link, err := s.insert(ctx, userID, candidate, target)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			s.logger.Error("Failed to save link", zap.Error(err))
			return models.ShortLink{}, err
		}

		s.logger.Debug("Slug collision, retrying",
			zap.String("slug", candidate),
			zap.Int("attempt", attempt))
	}

	s.logger.Error("Failed to generate unique slug after max attempts",
		zap.Int("attempts", s.maxAttempts),
		zap.Int("slugLength", s.slugLength))

	return models.ShortLink{}, ErrAllocationExhausted
}

func (s *LinkService) insert(ctx context.Context, userID, slugValue, target string) (models.ShortLink, error) {
	return s.store.Insert(ctx, models.ShortLink{
		ID:     uuid.NewString(),
		Slug:   slugValue,
		URL:    target,
		UserID: userID,
	})
}
