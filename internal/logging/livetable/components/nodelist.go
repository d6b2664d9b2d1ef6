package components

import "time"

// NodeState is one node row for rendering.
type NodeState struct {
	ID       string
	Status   string
	Message  string
	Duration time.Duration
}

// NodeEntry pairs an id with its current state.
type NodeEntry struct {
	ID    string
	State NodeState
}

// NodeList renders the plan's nodes with their current status.
type NodeList struct {
	entries []NodeEntry
}

// NewNodeList constructs a node list component in plan order.
func NewNodeList(order []string, nodes map[string]NodeState) NodeList {
	entries := make([]NodeEntry, 0, len(order))
	for _, id := range order {
		entries = append(entries, NodeEntry{ID: id, State: nodes[id]})
	}
	return NodeList{entries: entries}
}

// Entries returns the ordered node entries.
func (n NodeList) Entries() []NodeEntry {
	clone := make([]NodeEntry, len(n.entries))
	copy(clone, n.entries)
	return clone
}
