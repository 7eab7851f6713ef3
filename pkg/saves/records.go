package saves

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/story-runtime/pkg/state"
)

// SaveVersion is stamped into every save record and slot
const SaveVersion = "1.0.0"

// lastNodeTextLimit caps the node text preview kept in save metadata
const lastNodeTextLimit = 100

var (
	ErrTitleMismatch = errors.New("save belongs to a different story")
	ErrSlotExists    = errors.New("save slot already exists")
	ErrSlotNotFound  = errors.New("save slot not found")
	ErrNoRecord      = errors.New("save record not found")
)

// Keys names the storage records the manager reads and writes
type Keys struct {
	Story    string
	Progress string
	Saves    string
	Slots    string
}

// DefaultKeys namespaces every key under prefix
func DefaultKeys(prefix string) Keys {
	if prefix == "" {
		prefix = "story"
	}
	return Keys{
		Story:    prefix + ":data",
		Progress: prefix + ":progress",
		Saves:    prefix + ":saves",
		Slots:    prefix + ":slots",
	}
}

// ProgressRecord is the single autosave record, overwritten on every
// transition
type ProgressRecord struct {
	Title       string             `json:"title"`
	NodeID      string             `json:"nodeId"`
	History     []string           `json:"history"`
	Forward     []string           `json:"forward"`
	PlayerState *state.PlayerState `json:"playerState"`
}

// Metadata summarizes a save record for listings
type Metadata struct {
	GameDuration   int64  `json:"gameDuration"` // milliseconds
	NodesVisited   int    `json:"nodesVisited"`
	ChoicesMade    int    `json:"choicesMade"`
	InventoryCount int    `json:"inventoryCount"`
	LastNodeText   string `json:"lastNodeText"`
	Version        string `json:"version"`
}

// SaveRecord is a full snapshot of engine state
type SaveRecord struct {
	Title       string             `json:"title"`
	Timestamp   time.Time          `json:"timestamp"`
	SlotName    string             `json:"slotName"`
	NodeID      string             `json:"nodeId"`
	History     []string           `json:"history"`
	Forward     []string           `json:"forward"`
	PlayerState *state.PlayerState `json:"playerState"`
	Metadata    Metadata           `json:"metadata"`
}

// SlotMeta describes a named slot
type SlotMeta struct {
	Created         time.Time `json:"created"`
	Modified        time.Time `json:"modified"`
	PlayTime        int64     `json:"playTime"` // milliseconds
	CurrentLocation string    `json:"currentLocation"`
	Progress        int       `json:"progress"` // percent, informational
	Version         string    `json:"version"`
}

// SaveSlot is a named save that persists across sessions
type SaveSlot struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	GameState SaveRecord `json:"gameState"`
	Meta      SlotMeta   `json:"meta"`
}

// SlotInfo is the listing view of a slot without its game state
type SlotInfo struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Meta SlotMeta `json:"meta"`
}

// NewSlotID returns a fresh unique slot ID
func NewSlotID() string {
	return "slot_" + uuid.NewString()
}
