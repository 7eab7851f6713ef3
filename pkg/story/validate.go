package story

import (
	"fmt"

	"github.com/jwebster45206/story-runtime/pkg/actions"
	"github.com/jwebster45206/story-runtime/pkg/conditionals"
	"github.com/jwebster45206/story-runtime/pkg/inventory"
)

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is a single validation finding
type Issue struct {
	Severity Severity `json:"severity"`
	NodeID   string   `json:"nodeId,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.NodeID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: node %s: %s", i.Severity, i.NodeID, i.Message)
}

// Report collects validation issues
type Report struct {
	Issues []Issue `json:"issues"`
}

// HasErrors reports whether any issue is an error
func (r *Report) HasErrors() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns error-level issues
func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns warning-level issues
func (r *Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r *Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

func (r *Report) add(s Severity, nodeID, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{Severity: s, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a graph statically. Dangling choice targets are warnings
// since the interpreter tolerates them; unknown tags are errors because they
// silently evaluate false or do nothing at runtime. Item references are only
// checked when a catalog is given.
func Validate(g *Graph, catalog *inventory.Catalog) *Report {
	r := &Report{}
	if g == nil {
		r.add(SeverityError, "", "story is empty")
		return r
	}
	if g.Title == "" {
		r.add(SeverityWarning, "", "story has no title; saves cannot be matched to it")
	}
	if g.Len() == 0 {
		r.add(SeverityError, "", "story has no nodes")
		return r
	}
	if !g.Has(g.StartNode()) {
		r.add(SeverityError, "", "start node %q does not exist", g.StartNode())
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		for ci, c := range n.Choices {
			if c.Target == "" {
				r.add(SeverityError, id, "choice %d (%q) has no target", ci, c.Label)
			} else if !g.Has(c.Target) {
				r.add(SeverityWarning, id, "choice %d (%q) targets missing node %q", ci, c.Label, c.Target)
			}
			for _, cond := range c.Conditions {
				validateCondition(r, id, cond, catalog)
			}
		}
		for _, a := range n.Actions {
			validateAction(r, id, a, catalog)
		}
	}
	return r
}

func validateCondition(r *Report, nodeID string, c conditionals.Condition, catalog *inventory.Catalog) {
	if !c.Type.Known() {
		r.add(SeverityError, nodeID, "unknown condition type %q", c.Type)
		return
	}
	if c.Operator != "" && !c.Operator.Known() {
		r.add(SeverityError, nodeID, "condition %s has unknown operator %q", c.Type, c.Operator)
	}
	switch c.Type {
	case conditionals.HasItem, conditionals.ItemCount:
		checkItem(r, nodeID, string(c.Type), c.ItemID, catalog)
	case conditionals.VariableExists, conditionals.VariableEquals:
		if c.Key == "" {
			r.add(SeverityError, nodeID, "condition %s has no key", c.Type)
		}
	}
}

func validateAction(r *Report, nodeID string, a actions.Action, catalog *inventory.Catalog) {
	if !a.Type.Known() {
		r.add(SeverityError, nodeID, "unknown action type %q", a.Type)
		return
	}
	switch a.Type {
	case actions.AddItem, actions.RemoveItem, actions.UseItem:
		checkItem(r, nodeID, string(a.Type), a.ItemID, catalog)
	case actions.SetVariable:
		if a.Key == "" {
			r.add(SeverityError, nodeID, "set_variable has no key")
		}
		if !a.Operation.Known() {
			r.add(SeverityError, nodeID, "set_variable has unknown operation %q", a.Operation)
		}
	case actions.PlayBGM, actions.PlaySFX:
		if a.URL == "" {
			r.add(SeverityWarning, nodeID, "%s has no url", a.Type)
		}
	}
	if a.Effect != nil {
		if !a.Effect.Type.Known() {
			r.add(SeverityError, nodeID, "unknown effect type %q", a.Effect.Type)
		} else if a.Effect.Type == actions.EffectSetVar && !a.Effect.Operation.Known() {
			r.add(SeverityError, nodeID, "set_variable effect has unknown operation %q", a.Effect.Operation)
		}
	}
}

func checkItem(r *Report, nodeID, kind, itemID string, catalog *inventory.Catalog) {
	if itemID == "" {
		r.add(SeverityError, nodeID, "%s has no itemId", kind)
		return
	}
	if catalog != nil {
		if _, ok := catalog.Get(itemID); !ok {
			r.add(SeverityWarning, nodeID, "%s references item %q missing from catalog", kind, itemID)
		}
	}
}
