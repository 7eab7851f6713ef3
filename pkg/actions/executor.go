package actions

import (
	"context"
	"log/slog"

	"github.com/jwebster45206/story-runtime/pkg/events"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/state"
)

// Executor applies actions and effects to an engine state. Every mutating
// branch calls the persist callback synchronously and then publishes a
// state-change notification.
type Executor struct {
	catalog   *inventory.Catalog
	audio     AudioPlayer
	publisher events.Publisher
	logger    *slog.Logger
	ctx       context.Context
}

// NewExecutor creates an executor backed by the given item catalog
func NewExecutor(catalog *inventory.Catalog, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		catalog: catalog,
		logger:  logger,
		ctx:     context.Background(),
	}
}

// WithAudio sets the audio collaborator
// Returns the Executor for method chaining
func (x *Executor) WithAudio(audio AudioPlayer) *Executor {
	x.audio = audio
	return x
}

// WithPublisher sets where state-change notifications go
// Returns the Executor for method chaining
func (x *Executor) WithPublisher(p events.Publisher) *Executor {
	x.publisher = p
	return x
}

// WithContext sets the context for publish calls
// Returns the Executor for method chaining
func (x *Executor) WithContext(ctx context.Context) *Executor {
	x.ctx = ctx
	return x
}

// Catalog returns the item catalog the executor resolves items against
func (x *Executor) Catalog() *inventory.Catalog {
	return x.catalog
}

// Execute runs one action against es and reports whether state changed.
// A panic inside a handler is logged and swallowed so one malformed action
// cannot abort the rest of a node's actions.
func (x *Executor) Execute(a Action, es *state.EngineState, persist func()) (applied bool) {
	defer func() {
		if r := recover(); r != nil {
			x.logger.Error("Action handler panicked", "action", a.Type, "panic", r)
			applied = false
		}
	}()

	ps := es.PlayerState
	switch a.Type {
	case AddItem:
		return x.addItem(a, es, persist)
	case RemoveItem:
		qty := quantity(a.Quantity)
		if !ps.Inventory.Remove(a.ItemID, qty) {
			x.logger.Debug("Item not held, nothing to remove", "item_id", a.ItemID)
			return false
		}
		x.commit(persist, events.InventoryChanged(es.SessionID, events.InventoryRemove, a.ItemID, qty))
		return true
	case UseItem:
		return x.useItem(a, es, persist)
	case ClearInventory:
		ps.Inventory.Clear()
		x.commit(persist, events.InventoryChanged(es.SessionID, events.InventoryClear, "", 0))
		return true
	case SetVariable:
		if !x.setVariable(ps, a.Key, a.Value, a.Operation) {
			return false
		}
		x.commit(persist, events.VariableChanged(es.SessionID, a.Key, ps.Variables[a.Key]))
		return true
	case PlayBGM, StopBGM, PlaySFX, StopSFX:
		x.playAudio(a)
		return true
	default:
		x.logger.Warn("Unknown action type", "action", a.Type, "node_id", es.NodeID)
		return false
	}
}

// ExecuteAll runs actions in order. Failures are isolated per action.
func (x *Executor) ExecuteAll(list []Action, es *state.EngineState, persist func()) {
	for _, a := range list {
		x.Execute(a, es, persist)
	}
}

func (x *Executor) addItem(a Action, es *state.EngineState, persist func()) bool {
	inv := &es.PlayerState.Inventory
	qty := quantity(a.Quantity)

	if inv.Find(a.ItemID) < 0 {
		if inv.IsFull() {
			x.logger.Warn("Inventory full, item not added",
				"item_id", a.ItemID,
				"max_slots", inv.MaxSlots)
			return false
		}
		if _, ok := x.catalog.Get(a.ItemID); !ok {
			x.logger.Warn("Item not found in catalog", "item_id", a.ItemID)
			return false
		}
	}
	if !inv.Add(a.ItemID, qty, x.catalog) {
		return false
	}
	x.commit(persist, events.InventoryChanged(es.SessionID, events.InventoryAdd, a.ItemID, qty))
	return true
}

func (x *Executor) useItem(a Action, es *state.EngineState, persist func()) bool {
	inv := &es.PlayerState.Inventory
	item, ok := inv.Get(a.ItemID)
	if !ok || item.Quantity <= 0 {
		x.logger.Debug("Item not held, nothing to use", "item_id", a.ItemID)
		return false
	}

	if a.Consume == nil || *a.Consume {
		inv.Remove(a.ItemID, 1)
	}
	if a.Effect != nil {
		x.applyEffect(*a.Effect, es)
	}

	x.commit(persist, events.InventoryChanged(es.SessionID, events.InventoryUse, a.ItemID, 1))
	return true
}

func (x *Executor) applyEffect(e Effect, es *state.EngineState) {
	ps := es.PlayerState
	switch e.Type {
	case ShowText:
		x.publish(events.TextShown(es.SessionID, e.Text))
	case EffectSetVar:
		if x.setVariable(ps, e.Key, e.Value, e.Operation) {
			x.publish(events.VariableChanged(es.SessionID, e.Key, ps.Variables[e.Key]))
		}
	case EffectSetFlag:
		if e.Flag == "" {
			x.logger.Warn("set_flag effect without flag name")
			return
		}
		value := true
		if e.Value != nil {
			value = truthy(e.Value)
		}
		if ps.Flags == nil {
			ps.Flags = make(map[string]bool)
		}
		ps.Flags[e.Flag] = value
		x.publish(events.FlagChanged(es.SessionID, e.Flag, value))
	case EffectHeal:
		key := e.Key
		if key == "" {
			key = "health"
		}
		maxHealth := DefaultMaxHeal
		if e.MaxHealth != nil {
			maxHealth = *e.MaxHealth
		}
		current := state.FloatOr(ps.Variables[key], 0)
		amount := state.FloatOr(e.Value, DefaultHeal)
		ps.Variables[key] = min(current+amount, maxHealth)
		x.publish(events.VariableChanged(es.SessionID, key, ps.Variables[key]))
	default:
		x.logger.Warn("Unknown effect type", "effect", e.Type)
	}
}

// setVariable applies op to the variable and reports whether it changed.
func (x *Executor) setVariable(ps *state.PlayerState, key string, value any, op Operation) bool {
	if key == "" {
		x.logger.Warn("set_variable without key")
		return false
	}
	if ps.Variables == nil {
		ps.Variables = make(map[string]any)
	}

	if op == "" || op == OpSet {
		if value == nil {
			value = true
		}
		ps.Variables[key] = state.NormalizeValue(value)
		return true
	}

	current := state.FloatOr(ps.Variables[key], 0)
	operand := state.FloatOr(value, 0)
	var result float64
	switch op {
	case OpAdd:
		result = current + operand
	case OpSubtract:
		result = current - operand
	case OpMultiply:
		result = current * operand
	case OpDivide:
		if operand == 0 {
			x.logger.Warn("Division by zero ignored", "key", key)
			return false
		}
		result = current / operand
	default:
		x.logger.Warn("Unknown set_variable operation", "key", key, "operation", op)
		return false
	}
	ps.Variables[key] = result
	return true
}

func (x *Executor) playAudio(a Action) {
	if x.audio == nil {
		return
	}
	switch a.Type {
	case PlayBGM:
		x.audio.PlayBGM(a.URL, audioOptions(a))
	case StopBGM:
		x.audio.StopBGM(a.FadeOut)
	case PlaySFX:
		x.audio.PlaySFX(a.URL, audioOptions(a))
	case StopSFX:
		x.audio.StopAllSFX()
	}
}

func (x *Executor) commit(persist func(), ev events.Event) {
	if persist != nil {
		persist()
	}
	x.publish(ev)
}

func (x *Executor) publish(ev events.Event) {
	if x.publisher == nil {
		return
	}
	if err := x.publisher.Publish(x.ctx, ev); err != nil {
		x.logger.Warn("Failed to publish event", "event_type", ev.Type, "error", err)
	}
}

func quantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

func truthy(v any) bool {
	switch t := state.NormalizeValue(v).(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}
