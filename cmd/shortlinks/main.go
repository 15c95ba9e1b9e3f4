package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mmeshcher/shortlinks/internal/cache"
	"github.com/mmeshcher/shortlinks/internal/config"
	"github.com/mmeshcher/shortlinks/internal/handler"
	"github.com/mmeshcher/shortlinks/internal/logging"
	"github.com/mmeshcher/shortlinks/internal/middleware"
	"github.com/mmeshcher/shortlinks/internal/repository"
	"github.com/mmeshcher/shortlinks/internal/search"
	"github.com/mmeshcher/shortlinks/internal/service"
)

const shutdownTimeout = 30 * time.Second

type linkStore interface {
	service.LinkStore
	Close() error
}

func main() {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sugar := logger.Sugar()
	sugar.Infow("Configuration loaded",
		"server_address", cfg.ServerAddress,
		"base_url", cfg.BaseURL,
		"postgres", cfg.DatabaseDSN != "",
		"redis", cfg.RedisAddr != "",
		"search", cfg.SearchEnabled(),
	)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []service.Option{
		service.WithBaseURL(cfg.BaseURL),
		service.WithResolveTimeout(cfg.RedirectTimeout),
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()

		redirectCache := cache.NewRedisCache(client, cfg.RedirectCacheTTL, cache.DefaultMissTTL)
		if err := redirectCache.Ping(ctx); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		opts = append(opts, service.WithCache(redirectCache))
	}

	var index search.Index = search.NopIndex{}
	if cfg.SearchEnabled() {
		index = search.NewAlgoliaIndex(cfg.AlgoliaAppID, cfg.AlgoliaAdminAPIKey, cfg.AlgoliaIndexName)
	} else {
		logger.Warn("Search mirror disabled, ALGOLIA_APP_ID or ALGOLIA_ADMIN_API_KEY not set")
	}

	mirror := search.NewMirror(index, logger, search.MirrorOptions{
		Workers:   cfg.MirrorWorkers,
		QueueSize: cfg.MirrorQueueSize,
	})
	defer func() {
		mirror.Close()
		stats := mirror.Stats()
		logger.Info("Search mirror drained",
			zap.Uint64("applied", stats.Applied),
			zap.Uint64("failed", stats.Failed),
			zap.Uint64("dropped", stats.Dropped))
	}()

	keys := search.NewKeyIssuer(cfg.AlgoliaAppID, cfg.AlgoliaIndexName, cfg.AlgoliaSearchAPIKey, cfg.SearchKeyTTL)

	linkService := service.NewLinkService(store, mirror, keys, logger, opts...)
	auth := middleware.NewAuthMiddleware(cfg.AuthSecret, logger)
	h := handler.NewHandler(linkService, logger, auth)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		sugar.Infow("Server starting", "address", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (linkStore, error) {
	if cfg.DatabaseDSN == "" {
		logger.Warn("DATABASE_DSN not set, links are kept in memory only")
		return repository.NewMemoryRepository(), nil
	}

	store, err := repository.NewPostgresRepository(ctx, cfg.DatabaseDSN, logger)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return store, nil
}
