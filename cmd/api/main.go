package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/internal/config"
	"github.com/jwebster45206/story-runtime/internal/handlers"
	"github.com/jwebster45206/story-runtime/internal/logger"
	"github.com/jwebster45206/story-runtime/internal/middleware"
	"github.com/jwebster45206/story-runtime/internal/services/audio"
	eventsvc "github.com/jwebster45206/story-runtime/internal/services/events"
	internalstorage "github.com/jwebster45206/story-runtime/internal/storage"
	"github.com/jwebster45206/story-runtime/pkg/engine"
	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

const (
	sessionIdleTimeout = 30 * time.Minute
	sweepInterval      = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	storyFile := flag.String("story", cfg.StoryFile, "story graph file (JSON or YAML)")
	catalogFile := flag.String("catalog", cfg.CatalogFile, "item catalog file (JSON or YAML)")
	flag.Parse()

	log, closer, err := logger.Setup(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	log.Info("Starting Story Runtime API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend)

	// Engines run storage and publish calls on this context, not on the
	// request that happened to trigger them.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := internalstorage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage connection", "error", err)
		}
	}()
	log.Info("Storage connection established successfully")

	graph, err := story.Resolve(ctx, *storyFile, store, saves.DefaultKeys(cfg.KeyPrefix).Story)
	if err != nil {
		return err
	}

	var catalog *inventory.Catalog
	if *catalogFile != "" {
		if catalog, err = inventory.LoadCatalog(*catalogFile); err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	bus := events.NewBus(log)
	var subscriber handlers.Subscriber = handlers.NewBusSubscriber(bus)
	if cfg.PublishEvents {
		if r, ok := store.(*internalstorage.RedisStorage); ok {
			broadcaster := eventsvc.NewBroadcaster(r.Client(), log)
			bus.Forward(broadcaster)
			subscriber = broadcaster
		} else {
			log.Warn("PUBLISH_EVENTS needs the redis backend; events stay local", "backend", cfg.StorageBackend)
		}
	}

	registry := handlers.NewRegistry(func(id uuid.UUID) *engine.Engine {
		return engine.New(graph,
			engine.WithSessionID(id),
			engine.WithCatalog(catalog),
			engine.WithStore(store, saves.DefaultKeys(cfg.KeyPrefix+":"+id.String())),
			engine.WithAudio(audio.NewLoggingPlayer(log)),
			engine.WithPublisher(bus),
			engine.WithDebounce(cfg.AutosaveDebounce),
			engine.WithMaxSlots(cfg.MaxSlots),
			engine.WithLogger(logger.WithSession(log, id.String())),
		).WithContext(ctx)
	}, log)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(store, registry, log)
	mux.Handle("/health", healthHandler)

	sessionHandler := handlers.NewSessionHandler(registry, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	storyHandler := handlers.NewStoryHandler(graph, catalog, log)
	mux.Handle("/v1/story", storyHandler)
	mux.Handle("/v1/story/", storyHandler)

	eventsHandler := handlers.NewEventsHandler(subscriber, log)
	mux.Handle("/v1/events/sessions/", eventsHandler)

	// Shutdown does not cancel open event streams; ending requestCtx does.
	requestCtx, endRequests := context.WithCancel(context.Background())
	defer endRequests()

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log, mux),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: event streams stay open
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return requestCtx },
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				registry.Sweep(sessionIdleTimeout)
			}
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", "addr", server.Addr, "story", graph.Title, "nodes", graph.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	endRequests()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	registry.CloseAll()

	log.Info("Server exited")
	return nil
}
