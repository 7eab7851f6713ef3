package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/story-runtime/internal/config"
	"github.com/jwebster45206/story-runtime/internal/logger"
	"github.com/jwebster45206/story-runtime/internal/services/audio"
	eventsvc "github.com/jwebster45206/story-runtime/internal/services/events"
	internalstorage "github.com/jwebster45206/story-runtime/internal/storage"
	"github.com/jwebster45206/story-runtime/pkg/engine"
	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/story"
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

	// The UI owns stdout, so logs go to LOG_FILE or nowhere.
	var log *slog.Logger
	if cfg.LogFile != "" {
		l, closer, err := logger.Setup(cfg)
		if err != nil {
			return err
		}
		defer closer.Close()
		log = l
	} else {
		log = logger.New(io.Discard, cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := internalstorage.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	keys := saves.DefaultKeys(cfg.KeyPrefix)
	graph, err := story.Resolve(ctx, *storyFile, store, keys.Story)
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
	if cfg.PublishEvents {
		if r, ok := store.(*internalstorage.RedisStorage); ok {
			bus.Forward(eventsvc.NewBroadcaster(r.Client(), log))
		} else {
			log.Warn("PUBLISH_EVENTS needs the redis backend; events stay local", "backend", cfg.StorageBackend)
		}
	}

	eng := engine.New(graph,
		engine.WithCatalog(catalog),
		engine.WithStore(store, keys),
		engine.WithAudio(audio.NewLoggingPlayer(log)),
		engine.WithPublisher(bus),
		engine.WithDebounce(cfg.AutosaveDebounce),
		engine.WithMaxSlots(cfg.MaxSlots),
		engine.WithLogger(log),
	).WithContext(ctx)
	defer eng.Close()
	eng.Start()

	p := tea.NewProgram(NewConsoleUI(eng, logger.WithSession(log, eng.SessionID())), tea.WithAltScreen(), tea.WithMouseCellMotion())

	// Listeners run inside engine calls made from Update, so hand events to
	// the program asynchronously.
	unsubscribe := bus.Subscribe(func(ev events.Event) {
		go p.Send(engineEventMsg{event: ev})
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
