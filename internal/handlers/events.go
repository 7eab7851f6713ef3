package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/pkg/events"
)

// Subscriber streams the events of one play session. The channel is closed
// when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error)
}

// BusSubscriber serves subscriptions straight from an in-process bus, for
// servers running without Redis
type BusSubscriber struct {
	bus    *events.Bus
	buffer int
}

var _ Subscriber = (*BusSubscriber)(nil)

func NewBusSubscriber(bus *events.Bus) *BusSubscriber {
	return &BusSubscriber{bus: bus, buffer: 32}
}

// Subscribe forwards the session's events. Events are dropped while the
// buffer is full.
func (s *BusSubscriber) Subscribe(ctx context.Context, sessionID string) (<-chan events.Event, error) {
	out := make(chan events.Event, s.buffer)
	var mu sync.Mutex
	closed := false

	unsubscribe := s.bus.Subscribe(func(ev events.Event) {
		if ev.SessionID != sessionID {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case out <- ev:
		default:
		}
	})

	// The bus may still be delivering to the listener after unsubscribe
	// returns, so closing happens under the listener's lock.
	go func() {
		<-ctx.Done()
		unsubscribe()
		mu.Lock()
		closed = true
		close(out)
		mu.Unlock()
	}()
	return out, nil
}

// EventsHandler handles Server-Sent Events for a play session
type EventsHandler struct {
	subscriber Subscriber
	keepalive  time.Duration
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(subscriber Subscriber, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{
		subscriber: subscriber,
		keepalive:  30 * time.Second,
		logger:     logger,
	}
}

// WithKeepalive sets the keepalive interval.
// Returns the EventsHandler for method chaining.
func (h *EventsHandler) WithKeepalive(d time.Duration) *EventsHandler {
	h.keepalive = d
	return h
}

// ServeHTTP handles SSE requests for session events
// GET /v1/events/sessions/{sessionID}
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed. Only GET is supported.")
		return
	}

	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 4 || pathParts[0] != "v1" || pathParts[1] != "events" || pathParts[2] != "sessions" {
		h.writeError(w, http.StatusBadRequest, "Invalid path. Expected /v1/events/sessions/{sessionID}")
		return
	}

	sessionID, err := uuid.Parse(pathParts[3])
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid session ID format.")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgChan, err := h.subscriber.Subscribe(ctx, sessionID.String())
	if err != nil {
		h.logger.Error("Failed to subscribe to session events", "error", err, "session_id", sessionID.String())
		h.writeError(w, http.StatusServiceUnavailable, "Event stream unavailable")
		return
	}

	h.logger.Info("SSE connection established",
		"session_id", sessionID.String(),
		"remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	h.sendSSE(w, "connected", map[string]interface{}{
		"sessionId": sessionID.String(),
		"message":   "Connected to event stream",
	})

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("SSE client disconnected", "session_id", sessionID.String())
			return

		case event, ok := <-msgChan:
			if !ok {
				return
			}
			h.sendSSE(w, string(event.Type), event)

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				h.logger.Error("Failed to write keepalive", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSE sends a Server-Sent Event to the client
func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, dataJSON); err != nil {
		h.logger.Error("Failed to write event", "error", err)
		return
	}

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *EventsHandler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: msg}); err != nil {
		h.logger.Error("Failed to encode error response", "error", err)
	}
}
