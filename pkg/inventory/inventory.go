package inventory

import (
	"encoding/json"
	"slices"
)

// DefaultMaxSlots is the slot limit used for fresh and migrated inventories.
const DefaultMaxSlots = 20

// Item is a single inventory row. There is at most one row per item ID and
// Quantity is always greater than zero.
type Item struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	Quantity    int            `json:"quantity" yaml:"quantity"`
	Icon        string         `json:"icon" yaml:"icon"`
}

// Inventory is the canonical player inventory container.
// Slots are counted per distinct item ID, not per unit of quantity.
type Inventory struct {
	Items    []Item `json:"items" yaml:"items"`
	MaxSlots int    `json:"maxSlots" yaml:"maxSlots"`

	// legacy holds bare item IDs decoded from the old array format until
	// Migrate expands them against a catalog.
	legacy []string
}

// New returns an empty inventory with the default slot limit.
func New() Inventory {
	return Inventory{Items: []Item{}, MaxSlots: DefaultMaxSlots}
}

// UnmarshalJSON accepts the canonical object as well as the legacy shapes:
// an array of item IDs, null, a non-object value, or an object without items.
// Legacy IDs are only expanded into rows by Migrate.
func (inv *Inventory) UnmarshalJSON(data []byte) error {
	*inv = New()

	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		inv.legacy = ids
		return nil
	}

	var obj struct {
		Items    *[]Item `json:"items"`
		MaxSlots *int    `json:"maxSlots"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		// null, numbers, strings and malformed arrays all collapse to empty
		return nil
	}
	if obj.MaxSlots != nil {
		inv.MaxSlots = *obj.MaxSlots
	}
	if obj.Items != nil {
		inv.Items = *obj.Items
	}
	if inv.Items == nil {
		inv.Items = []Item{}
	}
	return nil
}

// Clone returns a deep copy of the inventory.
func (inv Inventory) Clone() Inventory {
	out := Inventory{
		Items:    make([]Item, len(inv.Items)),
		MaxSlots: inv.MaxSlots,
		legacy:   slices.Clone(inv.legacy),
	}
	for i, item := range inv.Items {
		out.Items[i] = item.clone()
	}
	return out
}

func (item Item) clone() Item {
	if item.Properties != nil {
		props := make(map[string]any, len(item.Properties))
		for k, v := range item.Properties {
			props[k] = cloneValue(v)
		}
		item.Properties = props
	}
	return item
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

// Find returns the index of the row for itemID, or -1.
func (inv *Inventory) Find(itemID string) int {
	return slices.IndexFunc(inv.Items, func(it Item) bool { return it.ID == itemID })
}

// Get returns the row for itemID.
func (inv *Inventory) Get(itemID string) (Item, bool) {
	i := inv.Find(itemID)
	if i < 0 {
		return Item{}, false
	}
	return inv.Items[i], true
}

// Count returns the quantity held of itemID, 0 when absent.
func (inv *Inventory) Count(itemID string) int {
	if item, ok := inv.Get(itemID); ok {
		return item.Quantity
	}
	return 0
}

// Has reports whether at least count units of itemID are held.
func (inv *Inventory) Has(itemID string, count int) bool {
	if count <= 0 {
		count = 1
	}
	return inv.Count(itemID) >= count
}

// IsEmpty reports whether no rows are held.
func (inv *Inventory) IsEmpty() bool {
	return len(inv.Items) == 0
}

// IsFull reports whether every slot is taken. An inventory with no positive
// slot limit is never full.
func (inv *Inventory) IsFull() bool {
	if inv.MaxSlots <= 0 {
		return false
	}
	return len(inv.Items) >= inv.MaxSlots
}

// Add adds quantity units of itemID. An existing row is incremented even when
// all slots are taken. A new row needs a free slot and a catalog record;
// Add returns false and leaves the inventory untouched otherwise.
func (inv *Inventory) Add(itemID string, quantity int, catalog *Catalog) bool {
	if quantity <= 0 {
		quantity = 1
	}
	if i := inv.Find(itemID); i >= 0 {
		inv.Items[i].Quantity += quantity
		return true
	}
	if inv.IsFull() {
		return false
	}
	record, ok := catalog.Get(itemID)
	if !ok {
		return false
	}
	item := record.ToItem(quantity)
	inv.Items = append(inv.Items, item)
	return true
}

// Remove takes quantity units of itemID away. A row whose quantity would
// drop to zero or below is removed entirely. Returns false if the item is
// not held.
func (inv *Inventory) Remove(itemID string, quantity int) bool {
	if quantity <= 0 {
		quantity = 1
	}
	i := inv.Find(itemID)
	if i < 0 {
		return false
	}
	if inv.Items[i].Quantity <= quantity {
		inv.Items = slices.Delete(inv.Items, i, i+1)
		return true
	}
	inv.Items[i].Quantity -= quantity
	return true
}

// Clear drops every row.
func (inv *Inventory) Clear() {
	inv.Items = []Item{}
}
