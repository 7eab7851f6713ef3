package conditionals

import (
	"strings"

	"github.com/jwebster45206/story-runtime/pkg/state"
)

// Check evaluates conditions with AND semantics. An empty or nil list is
// vacuously true, so an unconditioned choice is always available.
func Check(conditions []Condition, ps *state.PlayerState) bool {
	for _, cond := range conditions {
		if !Evaluate(cond, ps) {
			return false
		}
	}
	return true
}

// Evaluate checks a single condition. Unknown types and unknown operators
// evaluate to false.
func Evaluate(cond Condition, ps *state.PlayerState) bool {
	if ps == nil {
		return false
	}

	switch cond.Type {
	case HasItem:
		count := 1
		if cond.Count != nil {
			count = *cond.Count
		}
		return ps.Inventory.Count(cond.ItemID) >= count && ps.Inventory.Find(cond.ItemID) >= 0

	case ItemCount:
		count := 0
		if cond.Count != nil {
			count = *cond.Count
		}
		op := cond.Operator
		if op == "" {
			op = OpGreaterEqual
		}
		return Compare(float64(ps.Inventory.Count(cond.ItemID)), float64(count), op)

	case InventoryEmpty:
		return ps.Inventory.IsEmpty()

	case InventoryFull:
		return ps.Inventory.IsFull()

	case VariableExists:
		v, ok := ps.Variables[cond.Key]
		return ok && v != nil

	case VariableEquals:
		op := cond.Operator
		if op == "" {
			op = OpStrictEqual
		}
		return Compare(ps.Variables[cond.Key], cond.Value, op)

	default:
		return false
	}
}

// Compare applies op to a and b. Relational operators compare two strings
// lexically and anything else numerically; == and != coerce across types
// while === and !== require the same type.
func Compare(a, b any, op Operator) bool {
	a = state.NormalizeValue(a)
	b = state.NormalizeValue(b)

	switch op {
	case OpStrictEqual:
		return strictEqual(a, b)
	case OpStrictNot:
		return !strictEqual(a, b)
	case OpEqual:
		return looseEqual(a, b)
	case OpNotEqual:
		return !looseEqual(a, b)
	case OpGreaterEqual, OpGreater, OpLessEqual, OpLess:
		if as, ok := a.(string); ok {
			if bs, ok := b.(string); ok {
				return relate(strings.Compare(as, bs), op)
			}
		}
		af, aok := state.ToNumber(a)
		bf, bok := state.ToNumber(b)
		if !aok || !bok {
			return false
		}
		switch op {
		case OpGreaterEqual:
			return af >= bf
		case OpGreater:
			return af > bf
		case OpLessEqual:
			return af <= bf
		default:
			return af < bf
		}
	default:
		return false
	}
}

func strictEqual(a, b any) bool {
	switch at := a.(type) {
	case nil:
		return b == nil
	case float64:
		bt, ok := b.(float64)
		return ok && at == bt
	case string:
		bt, ok := b.(string)
		return ok && at == bt
	case bool:
		bt, ok := b.(bool)
		return ok && at == bt
	default:
		return false
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if sameKind(a, b) {
		return strictEqual(a, b)
	}
	af, aok := state.ToNumber(a)
	bf, bok := state.ToNumber(b)
	return aok && bok && af == bf
}

func sameKind(a, b any) bool {
	switch a.(type) {
	case float64:
		_, ok := b.(float64)
		return ok
	case string:
		_, ok := b.(string)
		return ok
	case bool:
		_, ok := b.(bool)
		return ok
	}
	return false
}

func relate(cmp int, op Operator) bool {
	switch op {
	case OpGreaterEqual:
		return cmp >= 0
	case OpGreater:
		return cmp > 0
	case OpLessEqual:
		return cmp <= 0
	case OpLess:
		return cmp < 0
	}
	return false
}
