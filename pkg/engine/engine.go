package engine

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/conditionals"
	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/saves"
	"github.com/jwebster45206/story-runtime/pkg/state"
	"github.com/jwebster45206/story-runtime/pkg/storage"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

// AutosaveSource tags autosave notifications raised by the engine
const AutosaveSource = "engine"

// Engine is the interpreter for one play session. It owns its EngineState
// exclusively; readers get copies through the accessors.
//
// Engine is not safe for concurrent use. The only background work is the
// debounced autosave notification, which reads nothing from the live state.
type Engine struct {
	graph     *story.Graph
	catalog   *inventory.Catalog
	state     *state.EngineState
	executor  *actions.Executor
	saves     *saves.Manager
	store     storage.Storage
	keys      saves.Keys
	audio     actions.AudioPlayer
	publisher events.Publisher
	debouncer *Debouncer
	logger    *slog.Logger
	ctx       context.Context

	debounceDelay time.Duration
	maxSlots      int
	sessionID     uuid.UUID
}

// New creates an engine positioned at the graph's start node with a fresh
// player state. Without WithStore the engine persists to memory only.
func New(graph *story.Graph, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		ctx:      context.Background(),
		keys:     saves.DefaultKeys(""),
		maxSlots: inventory.DefaultMaxSlots,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.store == nil {
		e.store = storage.NewMockStorage()
	}
	if e.saves == nil {
		e.saves = saves.NewManager(e.store, graph, e.catalog, e.keys, e.logger).
			WithMaxSlots(e.maxSlots)
	}

	e.executor = actions.NewExecutor(e.catalog, e.logger).
		WithAudio(e.audio).
		WithPublisher(e.publisher).
		WithContext(e.ctx)
	e.debouncer = NewDebouncer(e.debounceDelay)
	e.state = state.NewEngineState(graph.StartNode())
	if e.sessionID != uuid.Nil {
		e.state.SessionID = e.sessionID
	}
	e.state.PlayerState = e.freshPlayer()
	return e
}

// WithContext sets the context used for storage and publish calls
// Returns the Engine for method chaining
func (e *Engine) WithContext(ctx context.Context) *Engine {
	e.ctx = ctx
	e.executor.WithContext(ctx)
	return e
}

// Start restores saved progress for this story, or resets to the start node
// when there is none. It reports whether progress was restored.
func (e *Engine) Start() bool {
	restored, err := e.saves.LoadProgress(e.ctx, e.state)
	if err != nil {
		e.logger.Error("Failed to load progress", "error", err)
	}
	if restored {
		e.logger.Info("Progress restored",
			"session_id", e.state.SessionID,
			"node_id", e.state.NodeID,
			"history", len(e.state.History))
		return true
	}
	e.Reset()
	return false
}

// Close cancels a pending autosave notification
func (e *Engine) Close() {
	e.debouncer.Stop()
}

// Graph returns the story being played
func (e *Engine) Graph() *story.Graph {
	return e.graph
}

// Catalog returns the item catalog
func (e *Engine) Catalog() *inventory.Catalog {
	return e.catalog
}

// Saves returns the save manager
func (e *Engine) Saves() *saves.Manager {
	return e.saves
}

// SessionID identifies this play session in events
func (e *Engine) SessionID() string {
	return e.state.SessionID.String()
}

// Accessors

// NodeID returns the current node ID
func (e *Engine) NodeID() string {
	return e.state.NodeID
}

// Node returns the current node, or nil when the current ID is dangling
func (e *Engine) Node() *story.Node {
	n, _ := e.graph.Node(e.state.NodeID)
	return n
}

// PlayerState returns a deep copy of the live player state
func (e *Engine) PlayerState() *state.PlayerState {
	return e.state.PlayerState.Clone()
}

// Inventory returns a deep copy of the live inventory
func (e *Engine) Inventory() inventory.Inventory {
	return e.state.PlayerState.Inventory.Clone()
}

// History returns a copy of the back stack
func (e *Engine) History() []string {
	return slices.Clone(e.state.History)
}

// Forward returns a copy of the forward stack
func (e *Engine) Forward() []string {
	return slices.Clone(e.state.Forward)
}

// State returns a deep copy of the whole engine state
func (e *Engine) State() *state.EngineState {
	return e.state.Clone()
}

// Variable returns a player variable
func (e *Engine) Variable(key string) (any, bool) {
	v, ok := e.state.PlayerState.Variables[key]
	return v, ok
}

// Flag returns a player flag; unset flags are false
func (e *Engine) Flag(name string) bool {
	return e.state.PlayerState.Flags[name]
}

// Conditions and choices

// CheckConditions evaluates conds against the live player state. An empty
// list is always true.
func (e *Engine) CheckConditions(conds []conditionals.Condition) bool {
	return conditionals.Check(conds, e.state.PlayerState)
}

// AvailableChoices returns the current node's choices whose conditions pass
// and whose targets exist
func (e *Engine) AvailableChoices() []story.Choice {
	n := e.Node()
	if n == nil {
		return nil
	}
	var out []story.Choice
	for _, c := range n.Choices {
		if e.graph.Has(c.Target) && e.CheckConditions(c.Conditions) {
			out = append(out, c)
		}
	}
	return out
}

// Choose activates choice index of the current node. A choice whose
// conditions fail or whose target is missing is not taken.
func (e *Engine) Choose(index int) bool {
	n := e.Node()
	if n == nil || index < 0 || index >= len(n.Choices) {
		e.logger.Warn("Choice not found", "node_id", e.state.NodeID, "index", index)
		return false
	}
	c := n.Choices[index]
	if !e.CheckConditions(c.Conditions) {
		e.logger.Debug("Choice gated by conditions", "node_id", e.state.NodeID, "label", c.Label)
		return false
	}
	return e.SetNode(c.Target)
}

// Inventory and actions

// Execute runs a single action against the live state
func (e *Engine) Execute(a actions.Action) bool {
	return e.executor.Execute(a, e.state, e.persist)
}

// AddItem adds quantity of itemID the way an add_item action does
func (e *Engine) AddItem(itemID string, quantity int) bool {
	return e.Execute(actions.Action{Type: actions.AddItem, ItemID: itemID, Quantity: quantity})
}

// RemoveItem removes quantity of itemID the way a remove_item action does
func (e *Engine) RemoveItem(itemID string, quantity int) bool {
	return e.Execute(actions.Action{Type: actions.RemoveItem, ItemID: itemID, Quantity: quantity})
}

// UseItem consumes one itemID and applies effect, if any
func (e *Engine) UseItem(itemID string, effect *actions.Effect) bool {
	return e.Execute(actions.Action{Type: actions.UseItem, ItemID: itemID, Effect: effect})
}

// HasItem reports whether at least one itemID is held
func (e *Engine) HasItem(itemID string) bool {
	return e.state.PlayerState.Inventory.Has(itemID, 1)
}

// SetVariable sets a player variable the way a set_variable action does
func (e *Engine) SetVariable(key string, value any, op actions.Operation) bool {
	return e.Execute(actions.Action{Type: actions.SetVariable, Key: key, Value: value, Operation: op})
}

// persist writes the progress record. Failures are logged by the save
// manager and absorbed; the transition itself stands.
func (e *Engine) persist() {
	_ = e.saves.SaveProgress(e.ctx, e.state)
}

// notify arms the debounced autosave notification. Only the last call
// within the window publishes.
func (e *Engine) notify(reason string) {
	if e.publisher == nil {
		return
	}
	sessionID := e.state.SessionID
	nodeID := e.state.NodeID
	ctx := e.ctx
	e.debouncer.Trigger(func() {
		if err := e.publisher.Publish(ctx, events.Autosave(sessionID, AutosaveSource, reason, nodeID)); err != nil {
			e.logger.Warn("Failed to publish autosave notification", "node_id", nodeID, "error", err)
		}
	})
}

func (e *Engine) freshPlayer() *state.PlayerState {
	ps := state.NewPlayerState()
	ps.Inventory.MaxSlots = e.maxSlots
	return ps
}
