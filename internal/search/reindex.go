package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/models"
)

const DefaultReindexPageSize = 500

// LinkSource pages through every stored link in a stable order.
type LinkSource interface {
	All(ctx context.Context, fn func([]models.ShortLink) error, pageSize int) error
}

// Reindex rewrites every stored link into the index and reapplies the faceting
// settings. It repairs drift left by dropped or failed mirror tasks; documents for
// links deleted while the mirror was down are not removed.
func Reindex(ctx context.Context, source LinkSource, index Index, pageSize int, logger *zap.Logger) (int, error) {
	if pageSize <= 0 {
		pageSize = DefaultReindexPageSize
	}

	if err := index.ConfigureFaceting(ctx); err != nil {
		return 0, fmt.Errorf("configure faceting: %w", err)
	}

	total := 0
	err := source.All(ctx, func(page []models.ShortLink) error {
		docs := make([]Document, 0, len(page))
		for _, link := range page {
			docs = append(docs, DocumentFromLink(link))
		}

		if err := index.SaveObjects(ctx, docs); err != nil {
			return fmt.Errorf("save page at %d: %w", total, err)
		}

		total += len(docs)
		logger.Debug("Reindexed page", zap.Int("size", len(docs)), zap.Int("total", total))
		return nil
	}, pageSize)
	if err != nil {
		return total, err
	}

	return total, nil
}
