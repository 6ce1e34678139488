package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tasklens/doccached/internal/cachestore"
	"github.com/tasklens/doccached/internal/config"
	"github.com/tasklens/doccached/internal/docsync"
	"github.com/tasklens/doccached/internal/embeddings"
	"github.com/tasklens/doccached/internal/identity"
	"github.com/tasklens/doccached/internal/logging"
	"github.com/tasklens/doccached/internal/primarystore"
	"github.com/tasklens/doccached/internal/retrieval"
	"github.com/tasklens/doccached/internal/server"
	"github.com/tasklens/doccached/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the doccached daemon",
	Long: `Start the doccached HTTP server.

Configuration comes from the --config YAML file, overridden by
DOCCACHED_* environment variables.

Examples:
  # Memory primary store, embedded cache (dev profile)
  DOCCACHED_PRIMARY_PROVIDER=memory doccached serve

  # Postgres primary store
  DOCCACHED_PRIMARY_DSN=postgres://app@db/app doccached serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(cmd.Context(), cfg.TelemetryOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()
	if tel.Enabled() {
		logger.Info("trace export enabled", zap.String("endpoint", tel.Endpoint()))
	}

	primary, err := newPrimaryStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open primary store: %w", err)
	}
	defer func() { _ = primary.Close() }()

	embedder, err := embeddings.New(cfg.EmbeddingOptions())
	if err != nil {
		return fmt.Errorf("failed to build embedder: %w", err)
	}

	cache, err := cachestore.NewStore(cfg.CacheOptions(), embedder, logger)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer func() { _ = cache.Close() }()

	var locker docsync.Locker
	if cfg.Sync.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sync.RedisAddr,
			Password: cfg.Sync.RedisPassword,
			DB:       cfg.Sync.RedisDB,
		})
		defer func() { _ = client.Close() }()
		locker = docsync.NewRedisLocker(client, cfg.Sync.LeaseTTL, logger)
		logger.Info("using redis sync lease", zap.String("addr", cfg.Sync.RedisAddr))
	}

	engine := docsync.NewEngine(primary, cache, locker, cfg.SyncOptions(), logger)
	resolver := identity.NewResolver(primary, cfg.IdentityOptions(), logger)
	chain := retrieval.NewChain(cache, primary, engine, resolver, cfg.RetrievalOptions(), logger)

	srv, err := server.NewServer(chain, engine, logger, &server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	})
	if err != nil {
		return fmt.Errorf("failed to build http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func newPrimaryStore(cfg *config.Config, logger *zap.Logger) (primarystore.Store, error) {
	switch cfg.Primary.Provider {
	case "postgres":
		return primarystore.NewPostgresStore(cfg.PostgresOptions(), logger)
	case "memory":
		logger.Warn("using in-memory primary store; data is lost on restart")
		return primarystore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported primary provider %q", cfg.Primary.Provider)
	}
}
