package engine

import (
	"github.com/jwebster45206/story-runtime/pkg/saves"
)

// SaveGame stores a full save record named slotName
func (e *Engine) SaveGame(slotName string) (saves.SaveRecord, error) {
	return e.saves.SaveGame(e.ctx, e.state, slotName)
}

// LoadGame restores rec. A record for another story returns
// saves.ErrTitleMismatch and leaves the engine untouched.
func (e *Engine) LoadGame(rec saves.SaveRecord) error {
	if err := e.saves.LoadGame(e.state, rec); err != nil {
		return err
	}
	e.afterLoad()
	return nil
}

// LoadSave restores the stored record named slotName
func (e *Engine) LoadSave(slotName string) error {
	if err := e.saves.LoadSave(e.ctx, e.state, slotName); err != nil {
		return err
	}
	e.afterLoad()
	return nil
}

// ListSaves returns stored full saves, newest first
func (e *Engine) ListSaves() ([]saves.SaveRecord, error) {
	return e.saves.ListSaves(e.ctx)
}

// DeleteSave removes a stored full save
func (e *Engine) DeleteSave(slotName string) error {
	return e.saves.DeleteSave(e.ctx, slotName)
}

// CreateSlot snapshots the session into a new named slot
func (e *Engine) CreateSlot(id, name string) (*saves.SaveSlot, error) {
	return e.saves.CreateSlot(e.ctx, e.state, id, name)
}

// SaveToSlot overwrites slot id with the session
func (e *Engine) SaveToSlot(id string) (*saves.SaveSlot, error) {
	return e.saves.SaveToSlot(e.ctx, e.state, id)
}

// LoadFromSlot restores slot id into the session
func (e *Engine) LoadFromSlot(id string) error {
	if err := e.saves.LoadFromSlot(e.ctx, e.state, id); err != nil {
		return err
	}
	e.afterLoad()
	return nil
}

// DeleteSlot removes slot id
func (e *Engine) DeleteSlot(id string) error {
	return e.saves.DeleteSlot(e.ctx, id)
}

// RenameSlot changes the display name of slot id
func (e *Engine) RenameSlot(id, name string) error {
	return e.saves.RenameSlot(e.ctx, id, name)
}

// CopySlot duplicates slot src into dst
func (e *Engine) CopySlot(src, dst, name string) error {
	return e.saves.CopySlot(e.ctx, src, dst, name)
}

// ListSlots returns slot summaries, newest first
func (e *Engine) ListSlots() ([]saves.SlotInfo, error) {
	return e.saves.ListSlots(e.ctx)
}

// GetSlotInfo returns the summary of slot id
func (e *Engine) GetSlotInfo(id string) (*saves.SlotInfo, error) {
	return e.saves.GetSlotInfo(e.ctx, id)
}

// afterLoad keeps the progress record in step with a restored state
func (e *Engine) afterLoad() {
	e.logger.Info("Game loaded", "node_id", e.state.NodeID)
	e.persist()
	e.notify(ReasonLoad)
}
