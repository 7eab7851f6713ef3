package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/storage"
)

// Option configures an Engine
type Option func(*Engine)

// WithCatalog sets the item catalog used by add_item and migrations
func WithCatalog(catalog *inventory.Catalog) Option {
	return func(e *Engine) {
		e.catalog = catalog
	}
}

// WithStore persists progress, saves and slots to store under keys
func WithStore(store storage.Storage, keys saves.Keys) Option {
	return func(e *Engine) {
		e.store = store
		e.keys = keys
	}
}

// WithSaves uses an existing save manager instead of building one
func WithSaves(m *saves.Manager) Option {
	return func(e *Engine) {
		e.saves = m
	}
}

// WithAudio sets the optional audio collaborator
func WithAudio(audio actions.AudioPlayer) Option {
	return func(e *Engine) {
		e.audio = audio
	}
}

// WithPublisher sets where state-change and autosave notifications go
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithDebounce sets the autosave notification delay
func WithDebounce(d time.Duration) Option {
	return func(e *Engine) {
		e.debounceDelay = d
	}
}

// WithMaxSlots sets the slot limit of fresh inventories
func WithMaxSlots(n int) Option {
	return func(e *Engine) {
		e.maxSlots = n
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithSessionID fixes the session ID instead of generating one, so a caller
// can resume a known session
func WithSessionID(id uuid.UUID) Option {
	return func(e *Engine) {
		e.sessionID = id
	}
}
