package engine

// Autosave notification reasons
const (
	ReasonNavigate = "navigate"
	ReasonBack     = "back"
	ReasonForward  = "forward"
	ReasonReset    = "reset"
	ReasonLoad     = "load"
)

// SetNode moves to id. A missing id is logged and nothing changes.
//
// The target's actions run while NodeID still holds the previous node, then
// NodeID is updated. Moving always clears the forward stack.
func (e *Engine) SetNode(id string) bool {
	node, ok := e.graph.Node(id)
	if !ok {
		e.logger.Warn("Node not found", "node_id", id, "current", e.state.NodeID)
		return false
	}

	prev := e.state.NodeID
	if prev != "" && prev != id {
		e.state.History = append(e.state.History, prev)
	}
	e.state.Forward = []string{}

	e.executor.ExecuteAll(node.Actions, e.state, e.persist)

	e.state.NodeID = id
	e.state.PlayerState.Visit(id)
	e.logger.Debug("Node entered", "node_id", id, "from", prev)

	e.persist()
	e.notify(ReasonNavigate)
	return true
}

// CanGoBack reports whether the back stack has entries
func (e *Engine) CanGoBack() bool {
	return len(e.state.History) > 0
}

// GoBack returns to the previous node. The popped entry is consumed even
// when it names a node that no longer exists.
func (e *Engine) GoBack() bool {
	if !e.CanGoBack() {
		return false
	}
	last := len(e.state.History) - 1
	id := e.state.History[last]
	e.state.History = e.state.History[:last]

	if !e.graph.Has(id) {
		e.logger.Warn("Back target missing, entry dropped", "node_id", id)
		return false
	}
	e.state.Forward = append(e.state.Forward, e.state.NodeID)
	e.state.NodeID = id

	e.persist()
	e.notify(ReasonBack)
	return true
}

// CanGoForward reports whether the forward stack has entries
func (e *Engine) CanGoForward() bool {
	return len(e.state.Forward) > 0
}

// GoForward redoes the last GoBack. The popped entry is consumed even when
// it names a node that no longer exists.
func (e *Engine) GoForward() bool {
	if !e.CanGoForward() {
		return false
	}
	last := len(e.state.Forward) - 1
	id := e.state.Forward[last]
	e.state.Forward = e.state.Forward[:last]

	if !e.graph.Has(id) {
		e.logger.Warn("Forward target missing, entry dropped", "node_id", id)
		return false
	}
	e.state.History = append(e.state.History, e.state.NodeID)
	e.state.NodeID = id

	e.persist()
	e.notify(ReasonForward)
	return true
}

// Reset returns to the start node with empty stacks and a fresh player state
func (e *Engine) Reset() {
	e.state.NodeID = e.graph.StartNode()
	e.state.History = []string{}
	e.state.Forward = []string{}
	e.state.PlayerState = e.freshPlayer()
	e.logger.Info("Engine reset", "session_id", e.state.SessionID, "node_id", e.state.NodeID)

	e.persist()
	e.notify(ReasonReset)
}
