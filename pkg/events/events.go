package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a state-change notification
type EventType string

const (
	EventTypeInventoryChanged EventType = "inventory.changed"
	EventTypeVariableChanged  EventType = "variable.changed"
	EventTypeFlagChanged      EventType = "flag.changed"
	EventTypeTextShown        EventType = "text.shown"
	EventTypeAutosave         EventType = "game.autosave"
)

// Inventory change actions carried in inventory.changed events
const (
	InventoryAdd    = "add"
	InventoryRemove = "remove"
	InventoryUse    = "use"
	InventoryClear  = "clear"
)

// Event is a fire-and-forget notification. Listeners return nothing.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to observers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// InventoryChanged builds an inventory.changed event. itemID and quantity are
// omitted when empty or zero.
func InventoryChanged(sessionID uuid.UUID, action, itemID string, quantity int) Event {
	data := map[string]any{"action": action}
	if itemID != "" {
		data["itemId"] = itemID
	}
	if quantity != 0 {
		data["quantity"] = quantity
	}
	return newEvent(EventTypeInventoryChanged, sessionID, data)
}

// VariableChanged builds a variable.changed event
func VariableChanged(sessionID uuid.UUID, key string, value any) Event {
	return newEvent(EventTypeVariableChanged, sessionID, map[string]any{"key": key, "value": value})
}

// FlagChanged builds a flag.changed event
func FlagChanged(sessionID uuid.UUID, flag string, value bool) Event {
	return newEvent(EventTypeFlagChanged, sessionID, map[string]any{"flag": flag, "value": value})
}

// TextShown builds a text.shown event for the show_text effect
func TextShown(sessionID uuid.UUID, text string) Event {
	return newEvent(EventTypeTextShown, sessionID, map[string]any{"text": text})
}

// Autosave builds the debounced autosave notification
func Autosave(sessionID uuid.UUID, source, reason, nodeID string) Event {
	ev := newEvent(EventTypeAutosave, sessionID, map[string]any{
		"source": source,
		"reason": reason,
		"nodeId": nodeID,
	})
	ev.Data["timestamp"] = ev.Timestamp.UnixMilli()
	return ev
}

func newEvent(t EventType, sessionID uuid.UUID, data map[string]any) Event {
	ev := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	if sessionID != uuid.Nil {
		ev.SessionID = sessionID.String()
	}
	return ev
}

// Listener observes published events
type Listener func(Event)

// Bus is an in-process observer list. It is safe for concurrent use because
// the debounced autosave notification fires from a timer goroutine.
type Bus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
	forward   []Publisher
	logger    *slog.Logger
}

// Ensure Bus implements Publisher interface
var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		listeners: make(map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers fn and returns a function that removes it
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Forward relays every event to another publisher, e.g. a Redis broadcaster
func (b *Bus) Forward(p Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forward = append(b.forward, p)
}

// Publish delivers the event to every listener. A panicking listener or a
// failing forward target is logged and skipped; Publish never fails.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	forward := append([]Publisher(nil), b.forward...)
	b.mu.RUnlock()

	for _, l := range listeners {
		b.deliver(l, event)
	}
	for _, p := range forward {
		if err := p.Publish(ctx, event); err != nil {
			b.logger.Warn("Failed to forward event", "event_type", event.Type, "error", err)
		}
	}
	return nil
}

func (b *Bus) deliver(l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event listener panicked", "event_type", event.Type, "panic", r)
		}
	}()
	l(event)
}
