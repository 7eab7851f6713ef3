package saves

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/state"
	"github.com/jwebster45206/story-runtime/pkg/storage"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

// Manager snapshots and restores engine state: the progress autosave,
// manual full saves and named slots. It never holds engine state itself;
// every call takes the state it works on.
type Manager struct {
	store   storage.Storage
	graph   *story.Graph
	catalog *inventory.Catalog
	keys    Keys
	logger  *slog.Logger
	now     func() time.Time

	maxSlots int
}

// NewManager creates a save manager for one story
func NewManager(store storage.Storage, graph *story.Graph, catalog *inventory.Catalog, keys Keys, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		graph:   graph,
		catalog: catalog,
		keys:    keys,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },

		maxSlots: inventory.DefaultMaxSlots,
	}
}

// WithMaxSlots sets the slot limit given to a restored record that carries
// no player state
// Returns the Manager for method chaining
func (m *Manager) WithMaxSlots(n int) *Manager {
	m.maxSlots = n
	return m
}

// Keys returns the storage keys in use
func (m *Manager) Keys() Keys {
	return m.keys
}

func (m *Manager) title() string {
	if m.graph == nil {
		return ""
	}
	return m.graph.Title
}

// Progress autosave

// SaveProgress overwrites the progress record with the current state
func (m *Manager) SaveProgress(ctx context.Context, es *state.EngineState) error {
	rec := ProgressRecord{
		Title:       m.title(),
		NodeID:      es.NodeID,
		History:     slices.Clone(es.History),
		Forward:     slices.Clone(es.Forward),
		PlayerState: es.PlayerState.Clone(),
	}
	if err := m.store.SaveJSON(ctx, m.keys.Progress, rec); err != nil {
		m.logger.Error("Failed to save progress", "node_id", es.NodeID, "error", err)
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}

// LoadProgress restores the progress record into es. A record for another
// story, or one whose current node no longer exists, is ignored and es is
// left untouched. Stack entries naming removed nodes are dropped.
func (m *Manager) LoadProgress(ctx context.Context, es *state.EngineState) (bool, error) {
	var rec ProgressRecord
	found, err := m.store.LoadJSON(ctx, m.keys.Progress, &rec)
	if err != nil {
		return false, fmt.Errorf("failed to load progress: %w", err)
	}
	if !found {
		return false, nil
	}
	if rec.Title != m.title() {
		m.logger.Debug("Ignoring progress for another story", "saved_title", rec.Title, "title", m.title())
		return false, nil
	}
	if !m.graph.Has(rec.NodeID) {
		m.logger.Warn("Ignoring progress at missing node", "node_id", rec.NodeID)
		return false, nil
	}

	es.NodeID = rec.NodeID
	es.History = m.existing(rec.History)
	es.Forward = m.existing(rec.Forward)
	es.PlayerState = m.restorePlayer(rec.PlayerState)
	return true, nil
}

// ClearProgress deletes the progress record
func (m *Manager) ClearProgress(ctx context.Context) error {
	if err := m.store.Delete(ctx, m.keys.Progress); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	return nil
}

func (m *Manager) existing(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if m.graph.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

func (m *Manager) restorePlayer(ps *state.PlayerState) *state.PlayerState {
	if ps == nil {
		fresh := state.NewPlayerState()
		fresh.Inventory.MaxSlots = m.maxSlots
		return fresh
	}
	out := ps.Clone()
	out.Inventory = inventory.Migrate(out.Inventory, m.catalog)
	out.Normalize()
	return out
}

// Manual full saves

// BuildRecord snapshots es into a save record without storing it
func (m *Manager) BuildRecord(es *state.EngineState, slotName string) SaveRecord {
	now := m.now()
	rec := SaveRecord{
		Title:       m.title(),
		Timestamp:   now,
		SlotName:    slotName,
		NodeID:      es.NodeID,
		History:     slices.Clone(es.History),
		Forward:     slices.Clone(es.Forward),
		PlayerState: es.PlayerState.Clone(),
	}
	if rec.History == nil {
		rec.History = []string{}
	}
	if rec.Forward == nil {
		rec.Forward = []string{}
	}

	var lastText string
	if n, ok := m.graph.Node(es.NodeID); ok {
		lastText = truncate(n.Text, lastNodeTextLimit)
	}

	// Duration counts from the player state's start time when known, else
	// from the record itself, which makes it zero.
	start := now
	if es.PlayerState != nil && es.PlayerState.StartedAt != nil {
		start = *es.PlayerState.StartedAt
	}
	rec.Metadata = Metadata{
		GameDuration:   max(now.Sub(start).Milliseconds(), 0),
		NodesVisited:   len(es.History) + 1,
		ChoicesMade:    len(es.History),
		InventoryCount: len(rec.PlayerState.Inventory.Items),
		LastNodeText:   lastText,
		Version:        SaveVersion,
	}
	return rec
}

// SaveGame builds a record for es and stores it under slotName in the saves map
func (m *Manager) SaveGame(ctx context.Context, es *state.EngineState, slotName string) (SaveRecord, error) {
	rec := m.BuildRecord(es, slotName)

	saves, err := m.loadSaves(ctx)
	if err != nil {
		return rec, err
	}
	saves[slotName] = rec
	if err := m.store.SaveJSON(ctx, m.keys.Saves, saves); err != nil {
		m.logger.Error("Failed to store save record", "slot_name", slotName, "error", err)
		return rec, fmt.Errorf("failed to save game: %w", err)
	}
	m.logger.Info("Game saved", "slot_name", slotName, "node_id", es.NodeID)
	return rec, nil
}

// LoadGame restores rec into es. A record for another story returns
// ErrTitleMismatch and leaves es untouched.
func (m *Manager) LoadGame(es *state.EngineState, rec SaveRecord) error {
	if rec.Title != m.title() {
		m.logger.Warn("Save record belongs to another story",
			"saved_title", rec.Title,
			"title", m.title())
		return ErrTitleMismatch
	}
	es.NodeID = rec.NodeID
	es.History = cloneOrEmpty(rec.History)
	es.Forward = cloneOrEmpty(rec.Forward)
	es.PlayerState = m.restorePlayer(rec.PlayerState)
	return nil
}

// LoadSave restores the stored record named slotName
func (m *Manager) LoadSave(ctx context.Context, es *state.EngineState, slotName string) error {
	saves, err := m.loadSaves(ctx)
	if err != nil {
		return err
	}
	rec, ok := saves[slotName]
	if !ok {
		m.logger.Warn("Save record not found", "slot_name", slotName)
		return ErrNoRecord
	}
	return m.LoadGame(es, rec)
}

// ListSaves returns stored records, newest first
func (m *Manager) ListSaves(ctx context.Context) ([]SaveRecord, error) {
	saves, err := m.loadSaves(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SaveRecord, 0, len(saves))
	for _, rec := range saves {
		out = append(out, rec)
	}
	slices.SortFunc(out, func(a, b SaveRecord) int { return b.Timestamp.Compare(a.Timestamp) })
	return out, nil
}

// DeleteSave removes a stored record
func (m *Manager) DeleteSave(ctx context.Context, slotName string) error {
	saves, err := m.loadSaves(ctx)
	if err != nil {
		return err
	}
	if _, ok := saves[slotName]; !ok {
		return ErrNoRecord
	}
	delete(saves, slotName)
	if err := m.store.SaveJSON(ctx, m.keys.Saves, saves); err != nil {
		return fmt.Errorf("failed to delete save: %w", err)
	}
	return nil
}

func (m *Manager) loadSaves(ctx context.Context) (map[string]SaveRecord, error) {
	saves := make(map[string]SaveRecord)
	if _, err := m.store.LoadJSON(ctx, m.keys.Saves, &saves); err != nil {
		return nil, fmt.Errorf("failed to load saves: %w", err)
	}
	if saves == nil {
		saves = make(map[string]SaveRecord)
	}
	return saves, nil
}

// Progress returns nodesVisited as a percentage of the graph size. Revisits
// are counted, so the result can exceed 100.
func (m *Manager) Progress(nodesVisited int) int {
	total := m.graph.Len()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(nodesVisited) / float64(total) * 100))
}

func cloneOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
