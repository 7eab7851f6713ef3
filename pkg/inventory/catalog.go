package inventory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// CatalogItem is an authored item definition. The catalog is read-only
// from the interpreter's point of view.
type CatalogItem struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string         `json:"type,omitempty" yaml:"type,omitempty"`
	Properties  map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ToItem builds an inventory row from the catalog record.
func (c CatalogItem) ToItem(quantity int) Item {
	item := Item{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		Type:        c.Type,
		Quantity:    quantity,
	}
	if item.Name == "" {
		item.Name = DisplayName(c.ID)
	}
	if c.Properties != nil {
		item.Properties = make(map[string]any, len(c.Properties))
		for k, v := range c.Properties {
			item.Properties[k] = cloneValue(v)
		}
	}
	item.Icon = Icon(item)
	return item
}

// Catalog indexes catalog records by ID. A nil *Catalog behaves as empty.
type Catalog struct {
	items map[string]CatalogItem
	order []string
}

// NewCatalog builds a catalog. Later records win on duplicate IDs.
func NewCatalog(items []CatalogItem) *Catalog {
	c := &Catalog{items: make(map[string]CatalogItem, len(items))}
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		if _, exists := c.items[it.ID]; !exists {
			c.order = append(c.order, it.ID)
		}
		c.items[it.ID] = it
	}
	return c
}

// Get looks up a record by ID.
func (c *Catalog) Get(id string) (CatalogItem, bool) {
	if c == nil {
		return CatalogItem{}, false
	}
	it, ok := c.items[id]
	return it, ok
}

// Items returns the records in load order.
func (c *Catalog) Items() []CatalogItem {
	if c == nil {
		return nil
	}
	out := make([]CatalogItem, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// LoadCatalog reads a catalog file. Files ending in .yaml or .yml are parsed
// as YAML, everything else as JSON. The file holds an array of records.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var items []CatalogItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog %s: %w", path, err)
	}
	return NewCatalog(items), nil
}

// DisplayName derives a readable name from an item ID ("rusty_key" becomes
// "Rusty Key").
func DisplayName(id string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(id)
	return cases.Title(language.English).String(strings.TrimSpace(s))
}
