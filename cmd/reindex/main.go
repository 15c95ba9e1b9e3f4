// Command reindex rebuilds the search index from the link store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/config"
	"github.com/mmeshcher/shortlinks/internal/logging"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/search"
)

func main() {
	pageSize := flag.Int("page", search.DefaultReindexPageSize, "Links per index batch")
	dsn := flag.String("d", "", "Postgres connection string")
	flag.Parse()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *dsn != "" && cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = *dsn
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.DatabaseDSN == "" || !cfg.SearchEnabled() {
		logger.Fatal("Reindex needs DATABASE_DSN, ALGOLIA_APP_ID and ALGOLIA_ADMIN_API_KEY")
	}

	if err := run(cfg, *pageSize, logger); err != nil {
		logger.Fatal("Reindex failed", zap.Error(err))
	}
}

func run(cfg *config.Config, pageSize int, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.NewPostgresRepository(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer store.Close()

	index := search.NewAlgoliaIndex(cfg.AlgoliaAppID, cfg.AlgoliaAdminAPIKey, cfg.AlgoliaIndexName)

	total, err := search.Reindex(ctx, store, index, pageSize, logger)
	if err != nil {
		return fmt.Errorf("after %d links: %w", total, err)
	}

	logger.Info("Reindex finished",
		zap.String("index", cfg.AlgoliaIndexName),
		zap.Int("indexed", total))
	return nil
}
