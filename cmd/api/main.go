package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/museum-guide/internal/config"
	"github.com/jwebster45206/museum-guide/internal/handlers"
	"github.com/jwebster45206/museum-guide/internal/logger"
	"github.com/jwebster45206/museum-guide/internal/services/events"
	internalstorage "github.com/jwebster45206/museum-guide/internal/storage"
	"github.com/jwebster45206/museum-guide/pkg/content"
	"github.com/jwebster45206/museum-guide/pkg/progress"
	"github.com/jwebster45206/museum-guide/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Museum Guide API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"data_dir", cfg.DataDir)

	catalog, err := content.LoadDir(cfg.DataDir, log)
	if err != nil {
		log.Error("Failed to load content", "error", err)
		os.Exit(1)
	}

	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	store, err := openStorage(storageCtx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	if err := store.Ping(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	registry := progress.NewRegistry(store, log, progress.WithWriteTimeout(cfg.PersistTimeout))
	evictCtx, stopEviction := context.WithCancel(context.Background())
	defer stopEviction()
	go registry.RunEviction(evictCtx, cfg.EvictInterval, cfg.StoreIdleTTL)

	mux := http.NewServeMux()
	mux.Handle("GET /health", handlers.NewHealthHandler(store, log))
	handlers.NewHuntsHandler(catalog, log).Register(mux)
	handlers.NewProgressHandler(catalog, registry, log).Register(mux)

	var eventsClient *redis.Client
	var broadcaster *events.Broadcaster
	if cfg.EventsEnabled {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Error("Invalid REDIS_URL for events", "error", err)
			os.Exit(1)
		}
		eventsClient = redis.NewClient(opt)
		broadcaster = events.NewBroadcaster(eventsClient, log)
		registry.AddObserverFactory(broadcaster.Observer)
		handlers.NewEventsHandler(eventsClient, log).Register(mux)
		log.Info("Progress events enabled")
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE endpoint streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// Drain pending progress writes before closing storage
	stopEviction()
	if err := registry.Close(shutdownCtx); err != nil {
		log.Error("Error flushing progress", "error", err)
	}
	if broadcaster != nil {
		if err := broadcaster.Close(shutdownCtx); err != nil {
			log.Error("Error flushing progress events", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}
	if eventsClient != nil {
		if err := eventsClient.Close(); err != nil {
			log.Error("Error closing events connection", "error", err)
		}
	}

	log.Info("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.Storage, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		rs, err := internalstorage.NewRedisStorage(cfg.RedisURL, cfg.KeyPrefix, log)
		if err != nil {
			return nil, err
		}
		if err := rs.WaitForConnection(ctx, 30, 2*time.Second); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return rs, nil
	case config.BackendSQLite:
		return internalstorage.OpenSQLite(ctx, cfg.SQLitePath, log)
	case config.BackendMemory:
		log.Warn("Using in-memory storage; progress will not survive a restart")
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
	}
}
