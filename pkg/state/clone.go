package state

import (
	"maps"
	"slices"
)

// Clone returns a structural deep copy of the player state. Unlike a JSON
// round trip it keeps every variable value as-is, including ints set from Go.
func (ps *PlayerState) Clone() *PlayerState {
	if ps == nil {
		return nil
	}
	out := &PlayerState{
		Inventory: ps.Inventory.Clone(),
		Flags:     maps.Clone(ps.Flags),
		Variables: make(map[string]any, len(ps.Variables)),
		History:   slices.Clone(ps.History),
	}
	for k, v := range ps.Variables {
		out.Variables[k] = cloneValue(v)
	}
	if ps.StartedAt != nil {
		t := *ps.StartedAt
		out.StartedAt = &t
	}
	out.Normalize()
	return out
}

// Clone returns a deep copy of the engine state.
func (es *EngineState) Clone() *EngineState {
	if es == nil {
		return nil
	}
	return &EngineState{
		SessionID:   es.SessionID,
		NodeID:      es.NodeID,
		History:     cloneStack(es.History),
		Forward:     cloneStack(es.Forward),
		PlayerState: es.PlayerState.Clone(),
	}
}

func cloneStack(s []string) []string {
	if s == nil {
		return make([]string, 0)
	}
	return slices.Clone(s)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
