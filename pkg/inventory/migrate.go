package inventory

import "encoding/json"

const (
	UnknownItemName = "Unknown Item"
	UnknownItemIcon = "❓"
)

var typeIcons = map[string]string{
	"weapon":     "⚔️",
	"armor":      "🛡️",
	"consumable": "🧪",
	"key":        "🔑",
	"tool":       "🔧",
	"book":       "📖",
	"treasure":   "💎",
}

// DefaultIcon is used for item types outside the known vocabulary.
const DefaultIcon = "📦"

// Icon maps an item type to its glyph.
func Icon(item Item) string {
	if icon, ok := typeIcons[item.Type]; ok {
		return icon
	}
	return DefaultIcon
}

// Migrate brings an inventory into canonical shape. Legacy item IDs are
// expanded into rows with quantity 1 built from the catalog, or into an
// "Unknown Item" placeholder when the catalog has no record. Repeated IDs
// collapse into one row. Migrate is idempotent and must run on every load
// path.
func Migrate(inv Inventory, catalog *Catalog) Inventory {
	if inv.Items == nil {
		inv.Items = []Item{}
	}
	if len(inv.legacy) == 0 {
		inv.legacy = nil
		return inv
	}

	items := make([]Item, 0, len(inv.legacy))
	out := Inventory{Items: items, MaxSlots: inv.MaxSlots}
	for _, id := range inv.legacy {
		if i := out.Find(id); i >= 0 {
			out.Items[i].Quantity++
			continue
		}
		if record, ok := catalog.Get(id); ok {
			out.Items = append(out.Items, record.ToItem(1))
			continue
		}
		out.Items = append(out.Items, Item{
			ID:       id,
			Name:     UnknownItemName,
			Quantity: 1,
			Icon:     UnknownItemIcon,
		})
	}
	return out
}

// MigrateJSON decodes any persisted inventory shape and migrates it.
func MigrateJSON(data []byte, catalog *Catalog) Inventory {
	var inv Inventory
	if len(data) == 0 {
		return New()
	}
	if err := json.Unmarshal(data, &inv); err != nil {
		return New()
	}
	return Migrate(inv, catalog)
}
