package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/search"
	"github.com/mmeshcher/shortlinks/internal/slug"
)

// ListLinks returns the caller's links, oldest first.
func (s *LinkService) ListLinks(ctx context.Context, userID string) ([]models.ShortLink, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	links, err := s.store.FindByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}

	return links, nil
}

// UpdateLinkURL points the caller's link at a new destination. The slug never changes.
// A slug owned by someone else is reported as ErrNotFound.
func (s *LinkService) UpdateLinkURL(ctx context.Context, userID string, req models.UpdateLinkRequest) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.checkStruct(req); err != nil {
		return err
	}

	link, err := s.findOwned(ctx, userID, req.Slug)
	if err != nil {
		return err
	}

	if err := s.store.UpdateURL(ctx, link.ID, userID, req.URL); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update link: %w", err)
	}

	s.invalidate(ctx, link.Slug)
	s.mirror.LinkURLUpdated(link.ID, req.URL)

	s.logger.Info("Short link updated",
		zap.String("userID", userID),
		zap.String("slug", link.Slug))

	return nil
}

// DeleteLink removes the caller's link. A slug owned by someone else is reported as ErrNotFound.
func (s *LinkService) DeleteLink(ctx context.Context, userID string, req models.DeleteLinkRequest) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.checkStruct(req); err != nil {
		return err
	}

	link, err := s.findOwned(ctx, userID, req.Slug)
	if err != nil {
		return err
	}

	if err := s.store.DeleteByID(ctx, link.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete link: %w", err)
	}

	s.invalidate(ctx, link.Slug)
	s.mirror.LinkDeleted(link.ID)

	s.logger.Info("Short link deleted",
		zap.String("userID", userID),
		zap.String("slug", link.Slug))

	return nil
}

// SlugAvailable reports whether a custom slug could be claimed right now.
// The answer is advisory: CreateLink still relies on the store's constraint.
func (s *LinkService) SlugAvailable(ctx context.Context, slugValue string) (bool, error) {
	if err := slug.Validate(slugValue); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidSlug, err)
	}

	count, err := s.store.CountBySlug(ctx, slugValue)
	if err != nil {
		return false, fmt.Errorf("count slug: %w", err)
	}

	return count == 0, nil
}

// SearchKey issues a search credential that only matches the caller's own links.
func (s *LinkService) SearchKey(userID string) (search.ScopedKey, error) {
	if userID == "" {
		return search.ScopedKey{}, ErrUnauthenticated
	}

	key, err := s.keys.Issue(userID)
	if err != nil {
		s.logger.Error("Failed to issue search key", zap.String("userID", userID), zap.Error(err))
		return search.ScopedKey{}, fmt.Errorf("issue search key: %w", err)
	}

	return key, nil
}

func (s *LinkService) findOwned(ctx context.Context, userID, slugValue string) (models.ShortLink, error) {
	link, err := s.store.FindOwnedBySlug(ctx, userID, slugValue)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.ShortLink{}, ErrNotFound
		}
		return models.ShortLink{}, fmt.Errorf("find link: %w", err)
	}
	return link, nil
}
