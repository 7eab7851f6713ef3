package saves

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jwebster45206/story-runtime/pkg/state"
)

// CreateSlot snapshots es into a new slot. Callers pick unique IDs (see
// NewSlotID); an existing ID returns ErrSlotExists.
func (m *Manager) CreateSlot(ctx context.Context, es *state.EngineState, id, name string) (*SaveSlot, error) {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	if _, exists := slots[id]; exists {
		m.logger.Warn("Save slot already exists", "slot_id", id)
		return nil, ErrSlotExists
	}
	if name == "" {
		name = id
	}

	slot := m.buildSlot(es, id, name)
	slots[id] = slot
	if err := m.saveSlots(ctx, slots); err != nil {
		return nil, err
	}
	m.logger.Info("Save slot created", "slot_id", id, "name", name)
	return &slot, nil
}

// SaveToSlot overwrites a slot's game state with es. A missing slot is
// created with its ID as name.
func (m *Manager) SaveToSlot(ctx context.Context, es *state.EngineState, id string) (*SaveSlot, error) {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return nil, err
	}

	existing, ok := slots[id]
	slot := m.buildSlot(es, id, id)
	if ok {
		slot.Name = existing.Name
		slot.Meta.Created = existing.Meta.Created
	}
	slots[id] = slot
	if err := m.saveSlots(ctx, slots); err != nil {
		return nil, err
	}
	return &slot, nil
}

// LoadFromSlot restores a slot into es
func (m *Manager) LoadFromSlot(ctx context.Context, es *state.EngineState, id string) error {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return err
	}
	slot, ok := slots[id]
	if !ok {
		m.logger.Warn("Save slot not found", "slot_id", id)
		return ErrSlotNotFound
	}
	return m.LoadGame(es, slot.GameState)
}

// DeleteSlot removes a slot
func (m *Manager) DeleteSlot(ctx context.Context, id string) error {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return err
	}
	if _, ok := slots[id]; !ok {
		m.logger.Warn("Save slot not found", "slot_id", id)
		return ErrSlotNotFound
	}
	delete(slots, id)
	return m.saveSlots(ctx, slots)
}

// RenameSlot changes a slot's display name
func (m *Manager) RenameSlot(ctx context.Context, id, name string) error {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return err
	}
	slot, ok := slots[id]
	if !ok {
		m.logger.Warn("Save slot not found", "slot_id", id)
		return ErrSlotNotFound
	}
	slot.Name = name
	slot.Meta.Modified = m.now()
	slots[id] = slot
	return m.saveSlots(ctx, slots)
}

// CopySlot duplicates src into a new slot dst. An existing dst returns
// ErrSlotExists.
func (m *Manager) CopySlot(ctx context.Context, src, dst, name string) error {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return err
	}
	from, ok := slots[src]
	if !ok {
		m.logger.Warn("Save slot not found", "slot_id", src)
		return ErrSlotNotFound
	}
	if _, exists := slots[dst]; exists {
		m.logger.Warn("Save slot already exists", "slot_id", dst)
		return ErrSlotExists
	}
	if name == "" {
		name = from.Name + " (copy)"
	}

	now := m.now()
	cp := from
	cp.ID = dst
	cp.Name = name
	cp.GameState.SlotName = dst
	cp.GameState.History = slices.Clone(from.GameState.History)
	cp.GameState.Forward = slices.Clone(from.GameState.Forward)
	cp.GameState.PlayerState = from.GameState.PlayerState.Clone()
	cp.Meta.Created = now
	cp.Meta.Modified = now
	slots[dst] = cp
	return m.saveSlots(ctx, slots)
}

// ListSlots returns slot summaries, most recently modified first
func (m *Manager) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SlotInfo, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotInfo{ID: s.ID, Name: s.Name, Meta: s.Meta})
	}
	slices.SortFunc(out, func(a, b SlotInfo) int {
		if c := b.Meta.Modified.Compare(a.Meta.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetSlotInfo returns one slot summary
func (m *Manager) GetSlotInfo(ctx context.Context, id string) (*SlotInfo, error) {
	slots, err := m.loadSlots(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &SlotInfo{ID: s.ID, Name: s.Name, Meta: s.Meta}, nil
}

func (m *Manager) buildSlot(es *state.EngineState, id, name string) SaveSlot {
	rec := m.BuildRecord(es, id)
	location := es.NodeID
	if n, ok := m.graph.Node(es.NodeID); ok && n.Title != "" {
		location = n.Title
	}
	return SaveSlot{
		ID:        id,
		Name:      name,
		GameState: rec,
		Meta: SlotMeta{
			Created:         rec.Timestamp,
			Modified:        rec.Timestamp,
			PlayTime:        rec.Metadata.GameDuration,
			CurrentLocation: location,
			Progress:        m.Progress(rec.Metadata.NodesVisited),
			Version:         SaveVersion,
		},
	}
}

func (m *Manager) loadSlots(ctx context.Context) (map[string]SaveSlot, error) {
	slots := make(map[string]SaveSlot)
	if _, err := m.store.LoadJSON(ctx, m.keys.Slots, &slots); err != nil {
		return nil, fmt.Errorf("failed to load save slots: %w", err)
	}
	if slots == nil {
		slots = make(map[string]SaveSlot)
	}
	return slots, nil
}

func (m *Manager) saveSlots(ctx context.Context, slots map[string]SaveSlot) error {
	if err := m.store.SaveJSON(ctx, m.keys.Slots, slots); err != nil {
		m.logger.Error("Failed to store save slots", "error", err)
		return fmt.Errorf("failed to save slots: %w", err)
	}
	return nil
}
