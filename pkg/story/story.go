package story

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/conditionals"
	"github.com/jwebster45206/story-runtime/pkg/storage"
)

// DefaultStart is the start node used when a graph declares none
const DefaultStart = "start"

// Graph is an authored story: a mapping from node ID to Node.
// It is treated as immutable during play.
type Graph struct {
	Title string           `json:"title" yaml:"title"`
	Start string           `json:"start,omitempty" yaml:"start,omitempty"`
	Nodes map[string]*Node `json:"nodes" yaml:"nodes"`
}

// Node is a single narrative unit
type Node struct {
	ID      string           `json:"id" yaml:"id"`
	Title   string           `json:"title,omitempty" yaml:"title,omitempty"`
	Text    string           `json:"text" yaml:"text"`
	Image   string           `json:"image,omitempty" yaml:"image,omitempty"`
	Choices []Choice         `json:"choices" yaml:"choices"`
	Actions []actions.Action `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Choice is a labeled edge to another node. Without conditions it is
// always available.
type Choice struct {
	Label      string                   `json:"label" yaml:"label"`
	Target     string                   `json:"target" yaml:"target"`
	Conditions []conditionals.Condition `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// StartNode returns the declared start node ID, falling back to "start"
func (g *Graph) StartNode() string {
	if g == nil || g.Start == "" {
		return DefaultStart
	}
	return g.Start
}

// Node looks up a node by ID
func (g *Graph) Node(id string) (*Node, bool) {
	if g == nil || g.Nodes == nil {
		return nil, false
	}
	n, ok := g.Nodes[id]
	return n, ok && n != nil
}

// Has reports whether id names a node in the graph
func (g *Graph) Has(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Nodes)
}

// NodeIDs returns every node ID in sorted order
func (g *Graph) NodeIDs() []string {
	if g == nil {
		return nil
	}
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalize fills node IDs from map keys; the map key wins
func (g *Graph) normalize() {
	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}
	for id, n := range g.Nodes {
		if n == nil {
			delete(g.Nodes, id)
			continue
		}
		n.ID = id
	}
}

// Parse decodes a graph from data. format is "yaml" or "json".
func Parse(data []byte, format string) (*Graph, error) {
	var g Graph
	var err error
	switch strings.ToLower(format) {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &g)
	case "json", "":
		err = json.Unmarshal(data, &g)
	default:
		return nil, fmt.Errorf("unsupported story format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal story: %w", err)
	}
	g.normalize()
	return &g, nil
}

// Load reads a story file. The extension picks the format: .yaml and .yml
// are YAML, everything else JSON.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("story not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read story file: %w", err)
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format != "yaml" && format != "yml" {
		format = "json"
	}
	g, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// SaveToStore persists the authored graph under key
func SaveToStore(ctx context.Context, store storage.Storage, key string, g *Graph) error {
	if g == nil {
		return fmt.Errorf("story cannot be nil")
	}
	if err := store.SaveJSON(ctx, key, g); err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// LoadFromStore reads a graph saved with SaveToStore.
// Returns nil, nil when no story is stored under key.
func LoadFromStore(ctx context.Context, store storage.Storage, key string) (*Graph, error) {
	var g Graph
	found, err := store.LoadJSON(ctx, key, &g)
	if err != nil {
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if !found {
		return nil, nil
	}
	g.normalize()
	return &g, nil
}

// Resolve loads the story file at path, validates it and stores it under key
// for later runs. With an empty path the previously stored story is used.
func Resolve(ctx context.Context, path string, store storage.Storage, key string) (*Graph, error) {
	if path != "" {
		g, err := Load(path)
		if err != nil {
			return nil, err
		}
		if report := Validate(g, nil); report.HasErrors() {
			return nil, fmt.Errorf("story is invalid: %s", report.Errors()[0])
		}
		if err := SaveToStore(ctx, store, key, g); err != nil {
			return nil, err
		}
		return g, nil
	}

	g, err := LoadFromStore(ctx, store, key)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("no story given; pass -story or set STORY_FILE")
	}
	return g, nil
}
