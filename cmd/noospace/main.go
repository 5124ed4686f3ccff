package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/noospace/noospace/pkg/cache"
	"github.com/noospace/noospace/pkg/config"
	"github.com/noospace/noospace/pkg/ident"
	"github.com/noospace/noospace/pkg/server"
	"github.com/noospace/noospace/pkg/storage"
	"github.com/noospace/noospace/pkg/store"
	"github.com/noospace/noospace/pkg/validation"
)

func main() {
	// Setup logger
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Logger().
		Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	// Load configuration
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	printBanner(cfg)

	// Initialize storage. A failing migration aborts startup: the store
	// must never serve with partially migrated tables.
	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath, storage.DefaultSQLiteConfig(cfg.DBPath))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}
	defer sqliteStore.Close()

	info := sqliteStore.Info()
	logger.Info().
		Str("type", info.Type).
		Int("schema_version", info.SchemaVersion).
		Msg("Storage initialized")

	// Initialize cache
	var cacheInstance cache.Cache
	if cfg.CacheType == "redis" {
		redisCache, err := cache.NewRedisCache(
			cfg.RedisHost,
			cfg.RedisPort,
			time.Duration(cfg.CacheTTL)*time.Second,
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to connect to Redis, falling back to memory cache")
			cacheInstance = cache.NewMemoryCache(cfg.CacheSize, time.Duration(cfg.CacheTTL)*time.Second)
		} else {
			cacheInstance = redisCache
			logger.Info().Msg("Using Redis cache")
		}
	} else {
		cacheInstance = cache.NewMemoryCache(cfg.CacheSize, time.Duration(cfg.CacheTTL)*time.Second)
		logger.Info().Msg("Using in-memory cache")
	}
	defer cacheInstance.Close()

	// Build and initialize the graph store facade
	graphStore := store.New(
		sqliteStore,
		ident.NewUUIDGenerator(),
		validation.New(),
		cacheInstance,
		logger,
		store.Options{
			FlushInterval:   time.Duration(cfg.ViewFlushMillis) * time.Millisecond,
			PlacementJitter: cfg.PlacementJitter,
		},
	)

	rm, err := graphStore.Initialize(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize store")
	}
	logger.Info().
		Int("spaces", len(rm.Spaces)).
		Str("active", rm.ActiveSpaceID).
		Msg("Store ready")

	// Create server
	srv := server.New(cfg, graphStore, logger)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info().Msg("Shutting down gracefully...")

		// Flush any coalesced view write before exit
		if err := graphStore.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
		sqliteStore.Close()
		os.Exit(0)
	}()

	// Start server
	logger.Info().Msg("Server ready to accept requests")
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

func printBanner(cfg *config.Config) {
	fmt.Println("/////////////////////// noospace " + config.Version + " ///////////////////////")
	fmt.Println("----------------------------------------------------------------")
	fmt.Println("Server Configuration:")
	fmt.Printf("  Host: %s\n", cfg.Host)
	fmt.Printf("  Port: %d\n", cfg.Port)
	fmt.Printf("  Database: %s\n", cfg.DBPath)
	fmt.Println()
	fmt.Println("Cache Configuration:")
	fmt.Printf("  Type: %s\n", cfg.CacheType)
	fmt.Printf("  TTL: %d seconds\n", cfg.CacheTTL)
	if cfg.CacheType == "redis" {
		fmt.Printf("  Redis: %s:%d\n", cfg.RedisHost, cfg.RedisPort)
	}
	fmt.Println()
	fmt.Println("Other Configuration:")
	fmt.Printf("  View flush interval: %d ms\n", cfg.ViewFlushMillis)
	fmt.Printf("  Placement jitter: %.1f\n", cfg.PlacementJitter)
	fmt.Println("----------------------------------------------------------------")
	fmt.Println()
}
