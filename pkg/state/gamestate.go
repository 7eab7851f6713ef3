package state

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
)

// PlayerState is the mutable bundle a playthrough carries: inventory, flags,
// variables and the de-duplicated list of visited node IDs.
// Variable values are strings, float64 numbers or bools.
type PlayerState struct {
	Inventory inventory.Inventory `json:"inventory"`
	Flags     map[string]bool     `json:"flags"`
	Variables map[string]any      `json:"variables"`
	History   []string            `json:"history"`
	StartedAt *time.Time          `json:"startedAt,omitempty"`
}

// NewPlayerState returns an empty player state with the default slot limit.
func NewPlayerState() *PlayerState {
	now := time.Now().UTC()
	return &PlayerState{
		Inventory: inventory.New(),
		Flags:     make(map[string]bool),
		Variables: make(map[string]any),
		History:   make([]string, 0),
		StartedAt: &now,
	}
}

// UnmarshalJSON decodes a persisted player state. A record without an
// inventory key gets an empty inventory with the default slot limit, the
// same as a null or malformed one.
func (ps *PlayerState) UnmarshalJSON(data []byte) error {
	type plain PlayerState
	p := plain{Inventory: inventory.New()}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*ps = PlayerState(p)
	return nil
}

// EngineState is the full interpreter state of one play session. It is owned
// by a single engine and mutated in place.
type EngineState struct {
	SessionID   uuid.UUID    `json:"sessionId"`
	NodeID      string       `json:"nodeId"`
	History     []string     `json:"history"` // back stack
	Forward     []string     `json:"forward"` // forward stack
	PlayerState *PlayerState `json:"playerState"`
}

// NewEngineState creates a session state positioned at startNode.
func NewEngineState(startNode string) *EngineState {
	return &EngineState{
		SessionID:   uuid.New(),
		NodeID:      startNode,
		History:     make([]string, 0),
		Forward:     make([]string, 0),
		PlayerState: NewPlayerState(),
	}
}

// Visit appends nodeID to the visited list unless it is already there.
func (ps *PlayerState) Visit(nodeID string) {
	if !slices.Contains(ps.History, nodeID) {
		ps.History = append(ps.History, nodeID)
	}
}

// Normalize replaces nil maps and slices so callers can write without checks.
func (ps *PlayerState) Normalize() {
	if ps.Flags == nil {
		ps.Flags = make(map[string]bool)
	}
	if ps.Variables == nil {
		ps.Variables = make(map[string]any)
	}
	if ps.History == nil {
		ps.History = make([]string, 0)
	}
	if ps.Inventory.Items == nil {
		ps.Inventory.Items = []inventory.Item{}
	}
}
