package conditionals

// ConditionType tags a Condition variant.
type ConditionType string

const (
	HasItem        ConditionType = "has_item"
	ItemCount      ConditionType = "item_count"
	InventoryEmpty ConditionType = "inventory_empty"
	InventoryFull  ConditionType = "inventory_full"
	VariableExists ConditionType = "variable_exists"
	VariableEquals ConditionType = "variable_equals"
)

// Known reports whether t is a condition type the evaluator understands.
func (t ConditionType) Known() bool {
	switch t {
	case HasItem, ItemCount, InventoryEmpty, InventoryFull, VariableExists, VariableEquals:
		return true
	}
	return false
}

// Operator is a comparison operator used by item_count and variable_equals.
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpGreater      Operator = ">"
	OpLessEqual    Operator = "<="
	OpLess         Operator = "<"
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpStrictEqual  Operator = "==="
	OpStrictNot    Operator = "!=="
)

// Known reports whether op is in the supported operator set.
func (op Operator) Known() bool {
	switch op {
	case OpGreaterEqual, OpGreater, OpLessEqual, OpLess, OpEqual, OpNotEqual, OpStrictEqual, OpStrictNot:
		return true
	}
	return false
}

// Condition is a read-only predicate over player state used to gate choices.
// Which fields matter depends on Type:
//
//	has_item         ItemID, Count (default 1)
//	item_count       ItemID, Count, Operator (default >=)
//	inventory_empty  -
//	inventory_full   -
//	variable_exists  Key
//	variable_equals  Key, Operator (default ===), Value
type Condition struct {
	Type     ConditionType `json:"type" yaml:"type"`
	ItemID   string        `json:"itemId,omitempty" yaml:"itemId,omitempty"`
	Count    *int          `json:"count,omitempty" yaml:"count,omitempty"`
	Operator Operator      `json:"operator,omitempty" yaml:"operator,omitempty"`
	Key      string        `json:"key,omitempty" yaml:"key,omitempty"`
	Value    any           `json:"value,omitempty" yaml:"value,omitempty"`
}
