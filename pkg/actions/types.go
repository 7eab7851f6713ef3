package actions

// ActionType tags an Action variant
type ActionType string

const (
	AddItem        ActionType = "add_item"
	RemoveItem     ActionType = "remove_item"
	UseItem        ActionType = "use_item"
	ClearInventory ActionType = "clear_inventory"
	SetVariable    ActionType = "set_variable"
	PlayBGM        ActionType = "play_bgm"
	StopBGM        ActionType = "stop_bgm"
	PlaySFX        ActionType = "play_sfx"
	StopSFX        ActionType = "stop_sfx"
)

// Known reports whether the executor handles t
func (t ActionType) Known() bool {
	switch t {
	case AddItem, RemoveItem, UseItem, ClearInventory, SetVariable, PlayBGM, StopBGM, PlaySFX, StopSFX:
		return true
	}
	return false
}

// EffectType tags an Effect variant
type EffectType string

const (
	ShowText      EffectType = "show_text"
	EffectSetVar  EffectType = "set_variable"
	EffectSetFlag EffectType = "set_flag"
	EffectHeal    EffectType = "heal"
)

// heal defaults
const (
	DefaultHeal    = 10.0
	DefaultMaxHeal = 100.0
)

// Known reports whether the executor handles t
func (t EffectType) Known() bool {
	switch t {
	case ShowText, EffectSetVar, EffectSetFlag, EffectHeal:
		return true
	}
	return false
}

// Operation is the arithmetic applied by set_variable
type Operation string

const (
	OpSet      Operation = "set"
	OpAdd      Operation = "add"
	OpSubtract Operation = "subtract"
	OpMultiply Operation = "multiply"
	OpDivide   Operation = "divide"
)

// Known reports whether op is a supported operation
func (op Operation) Known() bool {
	switch op {
	case "", OpSet, OpAdd, OpSubtract, OpMultiply, OpDivide:
		return true
	}
	return false
}

// Action is a state mutation run when a node is entered.
//
//	add_item, remove_item       ItemID, Quantity (default 1)
//	use_item                    ItemID, Consume (default true), Effect
//	clear_inventory             -
//	set_variable                Key, Value (default true), Operation (default set)
//	play_bgm, play_sfx          URL, Volume, Loop, FadeIn, Crossfade
//	stop_bgm                    FadeOut
//	stop_sfx                    -
type Action struct {
	Type      ActionType `json:"type" yaml:"type"`
	ItemID    string     `json:"itemId,omitempty" yaml:"itemId,omitempty"`
	Quantity  int        `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Consume   *bool      `json:"consume,omitempty" yaml:"consume,omitempty"`
	Effect    *Effect    `json:"effect,omitempty" yaml:"effect,omitempty"`
	Key       string     `json:"key,omitempty" yaml:"key,omitempty"`
	Value     any        `json:"value,omitempty" yaml:"value,omitempty"`
	Operation Operation  `json:"operation,omitempty" yaml:"operation,omitempty"`

	URL       string   `json:"url,omitempty" yaml:"url,omitempty"`
	Volume    *float64 `json:"volume,omitempty" yaml:"volume,omitempty"`
	Loop      bool     `json:"loop,omitempty" yaml:"loop,omitempty"`
	FadeIn    float64  `json:"fadeIn,omitempty" yaml:"fadeIn,omitempty"`
	Crossfade float64  `json:"crossfade,omitempty" yaml:"crossfade,omitempty"`
	FadeOut   float64  `json:"fadeOut,omitempty" yaml:"fadeOut,omitempty"`
}

// Effect is a secondary mutation nested in a use_item action.
//
//	show_text     Text
//	set_variable  Key, Value, Operation
//	set_flag      Flag, Value (default true)
//	heal          Key, Value (amount, default 10), MaxHealth (default 100)
type Effect struct {
	Type      EffectType `json:"type" yaml:"type"`
	Text      string     `json:"text,omitempty" yaml:"text,omitempty"`
	Key       string     `json:"key,omitempty" yaml:"key,omitempty"`
	Value     any        `json:"value,omitempty" yaml:"value,omitempty"`
	Operation Operation  `json:"operation,omitempty" yaml:"operation,omitempty"`
	Flag      string     `json:"flag,omitempty" yaml:"flag,omitempty"`
	MaxHealth *float64   `json:"maxHealth,omitempty" yaml:"maxHealth,omitempty"`
}
