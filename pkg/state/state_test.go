package state

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-runtime/pkg/inventory"
)

func TestNewEngineState(t *testing.T) {
	es := NewEngineState("intro")
	assert.Equal(t, "intro", es.NodeID)
	assert.NotEmpty(t, es.SessionID)
	assert.Empty(t, es.History)
	assert.Empty(t, es.Forward)
	require.NotNil(t, es.PlayerState)
	assert.Equal(t, inventory.DefaultMaxSlots, es.PlayerState.Inventory.MaxSlots)
	assert.NotNil(t, es.PlayerState.StartedAt)
}

func TestPlayerState_Visit(t *testing.T) {
	ps := NewPlayerState()
	ps.Visit("a")
	ps.Visit("b")
	ps.Visit("a")
	assert.Equal(t, []string{"a", "b"}, ps.History)
}

func TestPlayerState_CloneIsDeep(t *testing.T) {
	ps := NewPlayerState()
	ps.Flags["door_open"] = true
	ps.Variables["gold"] = 10.0
	ps.Variables["bag"] = map[string]any{"coins": []any{1.0, 2.0}}
	ps.Inventory.Items = append(ps.Inventory.Items, inventory.Item{ID: "torch", Quantity: 1})
	ps.Visit("start")

	cp := ps.Clone()
	cp.Flags["door_open"] = false
	cp.Variables["gold"] = 0.0
	cp.Variables["bag"].(map[string]any)["coins"].([]any)[0] = 99.0
	cp.Inventory.Items[0].Quantity = 7
	cp.History[0] = "elsewhere"
	*cp.StartedAt = cp.StartedAt.Add(1000)

	assert.True(t, ps.Flags["door_open"])
	assert.Equal(t, 10.0, ps.Variables["gold"])
	assert.Equal(t, 1.0, ps.Variables["bag"].(map[string]any)["coins"].([]any)[0])
	assert.Equal(t, 1, ps.Inventory.Items[0].Quantity)
	assert.Equal(t, "start", ps.History[0])
	assert.NotEqual(t, *ps.StartedAt, *cp.StartedAt)
}

func TestEngineState_Clone(t *testing.T) {
	es := NewEngineState("start")
	es.History = append(es.History, "a")
	cp := es.Clone()
	cp.History[0] = "b"
	cp.Forward = append(cp.Forward, "c")

	assert.Equal(t, []string{"a"}, es.History)
	assert.Empty(t, es.Forward)
	assert.Equal(t, es.SessionID, cp.SessionID)

	var nilState *EngineState
	assert.Nil(t, nilState.Clone())
}

func TestPlayerState_DecodeLegacyInventory(t *testing.T) {
	var ps PlayerState
	require.NoError(t, json.Unmarshal([]byte(`{"inventory":["torch"],"variables":{"hp":5}}`), &ps))
	ps.Normalize()

	assert.NotNil(t, ps.Flags)
	assert.NotNil(t, ps.History)
	assert.Equal(t, 5.0, ps.Variables["hp"])

	ps.Inventory = inventory.Migrate(ps.Inventory, nil)
	require.Len(t, ps.Inventory.Items, 1)
	assert.Equal(t, inventory.UnknownItemName, ps.Inventory.Items[0].Name)
}

func TestPlayerState_DecodeWithoutInventory(t *testing.T) {
	var ps PlayerState
	require.NoError(t, json.Unmarshal([]byte(`{"variables":{"hp":5}}`), &ps))

	assert.Equal(t, inventory.DefaultMaxSlots, ps.Inventory.MaxSlots)
	assert.NotNil(t, ps.Inventory.Items)
	assert.False(t, ps.Inventory.IsFull())
	assert.Equal(t, 5.0, ps.Variables["hp"])

	var explicit PlayerState
	require.NoError(t, json.Unmarshal([]byte(`{"inventory":{"items":[],"maxSlots":0}}`), &explicit))
	assert.Equal(t, 0, explicit.Inventory.MaxSlots, "an explicit limit is kept")
}

func TestParseFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float", 2.5, 2.5, true},
		{"int", 7, 7, true},
		{"numeric string", "42", 42, true},
		{"leading number", "12abc", 12, true},
		{"padded", "  3.5 ", 3.5, true},
		{"negative", "-4", -4, true},
		{"exponent", "1e3", 1000, true},
		{"leading dot", ".5", 0.5, true},
		{"infinity", "Infinity", math.Inf(1), true},
		{"word", "abc", 0, false},
		{"empty", "", 0, false},
		{"bool", true, 0, false},
		{"nil", nil, 0, false},
		{"nan", math.NaN(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseFloat(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFloatOr(t *testing.T) {
	assert.Equal(t, 10.0, FloatOr("nope", 10))
	assert.Equal(t, 3.0, FloatOr("3", 10))
	assert.Equal(t, 0.0, FloatOr(nil, 0))
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{true, 1, true},
		{false, 0, true},
		{"", 0, true},
		{"5", 5, true},
		{"5x", 0, false},
		{nil, 0, false},
		{int64(9), 9, true},
	}
	for _, tt := range tests {
		got, ok := ToNumber(NormalizeValue(tt.in))
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, got, "%v", tt.in)
		}
	}
}
